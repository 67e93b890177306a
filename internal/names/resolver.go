// Package names resolves process names to display names for dashboard
// views. Known launchers and games map through a fixed table; anything
// else is prettified from its executable name.
package names

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// knownGames maps process names to display names for titles whose
// executables don't carry a readable name.
var knownGames = map[string]string{
	"steam.exe":              "Steam",
	"League of Legends.exe":  "League of Legends",
	"RiotClientServices.exe": "Riot Games",
	"Valorant.exe":           "Valorant",
	"csgo.exe":               "Counter-Strike: Global Offensive",
	"dota2.exe":              "Dota 2",
	"RocketLeague.exe":       "Rocket League",
	"destiny2.exe":           "Destiny 2",
	"overwatch.exe":          "Overwatch",
	"wow.exe":                "World of Warcraft",
	"minecraft.exe":          "Minecraft",
	"epicgameslauncher.exe":  "Epic Games Launcher",
	"battle.net.exe":         "Battle.net",
	"origin.exe":             "EA Origin",
	"uplay.exe":              "Ubisoft Connect",
}

const defaultCacheSize = 256

// Resolver resolves display names, caching prettified results so the
// per-second poll loop doesn't re-derive the same names.
type Resolver struct {
	cache *lru.Cache[string, string]
}

// NewResolver creates a resolver with the given cache size (0 uses the
// default).
func NewResolver(cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}

	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}

	return &Resolver{cache: cache}, nil
}

// Resolve returns the display name for a process name.
func (r *Resolver) Resolve(processName string) string {
	if processName == "" {
		return ""
	}

	if display, ok := knownGames[processName]; ok {
		return display
	}

	if display, ok := r.cache.Get(processName); ok {
		return display
	}

	display := Prettify(processName)
	r.cache.Add(processName, display)
	return display
}

// Prettify derives a readable name from an executable name: strip the
// .exe suffix, turn separators into spaces, title-case each word.
func Prettify(processName string) string {
	name := strings.TrimSuffix(processName, ".exe")
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")

	words := strings.Fields(name)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}

	return strings.Join(words, " ")
}
