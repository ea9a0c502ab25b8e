// Package store persists workflow statuses and finished research records.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-mcp/internal/model"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned when no row matches.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Ticker string      `json:"ticker,omitempty"`
	Stage  model.Stage `json:"stage,omitempty"`
	Limit  int         `json:"limit,omitempty"`
}

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return 20
	}
	return f.Limit
}

// Store defines the persistence interface for research runs.
type Store interface {
	// Statuses
	SaveStatus(ctx context.Context, st model.WorkflowStatus) error
	GetStatus(ctx context.Context, threadID string) (*model.WorkflowStatus, error)
	ListStatuses(ctx context.Context, filter RunFilter) ([]model.WorkflowStatus, error)

	// Records
	SaveRecord(ctx context.Context, rec *model.ResearchRecord) error
	GetRecord(ctx context.Context, threadID string) (*model.ResearchRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver. The memory driver returns a nil Store:
// the tracker keeps runs in process only.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverMemory:
		return nil, nil
	case DriverSQLite:
		return NewSQLite(dsn)
	case DriverPostgres:
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
