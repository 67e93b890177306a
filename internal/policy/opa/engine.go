// Package opa wraps the OPA rego engine for session eligibility
// evaluation. A default policy ships compiled in; a policy directory
// of .rego files replaces it when configured.
package opa

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"
)

//go:embed default.rego
var defaultPolicy string

// countableQuery is the decision entrypoint every policy set must
// provide.
const countableQuery = "data.playwarden.session.countable"

// Config configures the OPA engine.
type Config struct {
	// PolicyDir is a directory of .rego files overriding the built-in
	// policy. Empty means use the built-in policy.
	PolicyDir string
}

// Engine evaluates session facts against the countable query.
type Engine struct {
	policyDir string
	logger    zerolog.Logger

	// mu guards the prepared query and modules across Reload.
	mu        sync.RWMutex
	countable rego.PreparedEvalQuery
	modules   map[string]*ast.Module
}

// NewEngine loads and compiles policies and prepares the countable
// query.
func NewEngine(cfg Config, logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policyDir: cfg.PolicyDir,
		logger:    logger.With().Str("component", "opa").Logger(),
	}

	modules, err := e.loadPolicies()
	if err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	query, err := prepareQuery(modules)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare countable query: %w", err)
	}

	e.modules = modules
	e.countable = query

	source := "builtin"
	if cfg.PolicyDir != "" {
		source = cfg.PolicyDir
	}
	e.logger.Info().Str("source", source).Int("modules", len(modules)).Msg("OPA engine initialized")

	return e, nil
}

// loadPolicies parses the built-in policy, or every .rego file in the
// configured directory.
func (e *Engine) loadPolicies() (map[string]*ast.Module, error) {
	modules := make(map[string]*ast.Module)

	if e.policyDir == "" {
		module, err := ast.ParseModule("default.rego", defaultPolicy)
		if err != nil {
			return nil, fmt.Errorf("failed to parse built-in policy: %w", err)
		}
		modules["default.rego"] = module
		return modules, nil
	}

	files, err := filepath.Glob(filepath.Join(e.policyDir, "*.rego"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob policy files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no policy files found in %s", e.policyDir)
	}

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file %s: %w", file, err)
		}

		module, err := ast.ParseModule(file, string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse policy file %s: %w", file, err)
		}

		modules[file] = module
		e.logger.Debug().Str("file", file).Str("package", module.Package.Path.String()).Msg("Loaded policy module")
	}

	return modules, nil
}

func prepareQuery(modules map[string]*ast.Module) (rego.PreparedEvalQuery, error) {
	opts := []func(*rego.Rego){rego.Query(countableQuery)}
	for name, module := range modules {
		opts = append(opts, rego.Module(name, module.String()))
	}

	return rego.New(opts...).PrepareForEval(context.Background())
}

// Countable evaluates the countable query for the given session facts.
func (e *Engine) Countable(ctx context.Context, input map[string]interface{}) (bool, error) {
	e.mu.RLock()
	query := e.countable
	e.mu.RUnlock()

	startTime := time.Now()

	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("countable query evaluation failed: %w", err)
	}

	e.logger.Debug().Dur("duration_ms", time.Since(startTime)).Msg("Countable query evaluated")

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, fmt.Errorf("no results from countable query")
	}

	countable, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("countable is not a boolean: %T", results[0].Expressions[0].Value)
	}

	return countable, nil
}

// Reload reloads policies from disk and re-prepares the query. The
// previous policy set stays active if reloading fails.
func (e *Engine) Reload() error {
	e.logger.Info().Msg("Reloading OPA policies")

	modules, err := e.loadPolicies()
	if err != nil {
		return fmt.Errorf("failed to reload policies: %w", err)
	}

	query, err := prepareQuery(modules)
	if err != nil {
		return fmt.Errorf("failed to re-prepare countable query: %w", err)
	}

	e.mu.Lock()
	e.modules = modules
	e.countable = query
	e.mu.Unlock()

	e.logger.Info().Int("modules", len(modules)).Msg("OPA policies reloaded")

	return nil
}
