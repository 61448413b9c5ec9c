package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the configuration required for the given mode is
// present. Modes: "analyze" (anything that calls the model), "serve"
// (the HTTP API, implies analyze), "store" (store-only commands like
// analyses/export).
func (c *Config) Validate(mode string) error {
	var problems []string

	checkStore := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				problems = append(problems, "store.path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	}

	checkAnalyze := func() {
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Anthropic.ClassifyModel == "" {
			problems = append(problems, "anthropic.classify_model is required")
		}
		if c.Anthropic.ScoreModel == "" {
			problems = append(problems, "anthropic.score_model is required")
		}
		if c.Scoring.MinPassingScore < 0 || c.Scoring.MinPassingScore > 1 {
			problems = append(problems, "scoring.min_passing_score must be in [0, 1]")
		}
		if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 50 {
			problems = append(problems, "batch.max_concurrent must be between 1 and 50")
		}
	}

	switch mode {
	case "analyze":
		checkAnalyze()
		checkStore()
	case "serve":
		checkAnalyze()
		checkStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "store":
		checkStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
