package runner

import (
	"context"
	"fmt"
)

// ProjectionRefresher rebuilds denormalized read projections after
// actions that touch their source entities.
type ProjectionRefresher interface {
	Refresh(ctx context.Context, projection string, entities []string) error
}

// PgRefresher refreshes projections through the in-database helper
// that compiled refresh steps also call.
type PgRefresher struct {
	runner *Runner
}

// NewPgRefresher creates a refresher over an existing runner.
func NewPgRefresher(r *Runner) *PgRefresher {
	return &PgRefresher{runner: r}
}

// Refresh rebuilds one projection, recording which entities triggered
// the rebuild.
func (p *PgRefresher) Refresh(ctx context.Context, projection string, entities []string) error {
	if !p.runner.IsConnected() {
		return fmt.Errorf("not connected")
	}
	if entities == nil {
		entities = []string{}
	}
	_, err := p.runner.pool.Exec(ctx,
		"SELECT app.refresh_table_view($1, $2)", projection, entities)
	if err != nil {
		return fmt.Errorf("failed to refresh projection %s: %w", projection, err)
	}
	return nil
}
