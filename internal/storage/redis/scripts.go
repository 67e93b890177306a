package redis

const (
	// appendAlertScript atomically appends an alert to the journal and
	// trims entries past the retention cutoff, so the journal cannot
	// grow unbounded even if the rollover trim never runs.
	appendAlertScript = `
local journal = KEYS[1]     -- playwarden:alerts

local payload = ARGV[1]
local score = ARGV[2]       -- event time, unix milliseconds
local cutoff = ARGV[3]      -- retention cutoff, unix milliseconds

redis.call('ZADD', journal, score, payload)
redis.call('ZREMRANGEBYSCORE', journal, '-inf', '(' .. cutoff)

return redis.call('ZCARD', journal)
`

	// putSummaryScript atomically stores a daily summary and indexes its
	// date so List can walk days newest-first.
	putSummaryScript = `
local summary_key = KEYS[1] -- playwarden:summary:{date}
local index_key = KEYS[2]   -- playwarden:summaries

local date = ARGV[1]
local payload = ARGV[2]
local score = ARGV[3]       -- date as unix milliseconds

redis.call('SET', summary_key, payload)
redis.call('ZADD', index_key, score, date)

return 'OK'
`
)
