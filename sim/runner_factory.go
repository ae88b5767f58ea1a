package sim

import (
	"fmt"

	"options-mm-go/config"
	"options-mm-go/internal/app"
)

// Harness is a fully wired app with its synthetic market: the reference
// pricer, memory books shared with the flow model, and a runner feeding
// both. cmd/simulate and the end-to-end tests build one and go.
type Harness struct {
	App    *app.App
	Runner *Runner
	Books  *BookSet
}

// BuildHarness assembles an app around the simulator's collaborators.
// The app is built but not started.
func BuildHarness(cfg config.AppConfig, rcfg RunnerConfig) (*Harness, error) {
	books := NewBookSet()
	a, err := app.NewFromConfig(cfg, app.Options{
		Pricer:      NewModel(),
		BookFactory: books.Factory,
	})
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	if err := a.Build(); err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	runner, err := NewRunner(rcfg, a.Handler(), a.Board(), books, a.OnFill)
	if err != nil {
		return nil, err
	}
	return &Harness{App: a, Runner: runner, Books: books}, nil
}
