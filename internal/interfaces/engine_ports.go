package interfaces

import (
	"context"

	"github.com/Victor-armando18/product-configurator/internal/domain"
	"github.com/Victor-armando18/product-configurator/internal/domain/pricing"
)

// CatalogLoader resolves a configuration id to a validated catalog (disk,
// network, ...).
type CatalogLoader interface {
	Load(ctx context.Context, configurationID string) (*domain.Configuration, error)
}

// SessionStore persists session snapshots. Load returns
// domain.ErrSessionNotFound for unknown or expired sessions.
type SessionStore interface {
	Save(ctx context.Context, snap domain.Snapshot) error
	Load(ctx context.Context, sessionID string) (domain.Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

type TaxCalculator = pricing.TaxCalculator

// Metrics records session and evaluation counters.
type Metrics interface {
	IncSessionsStarted(configurationID string)
	IncSelections(configurationID, outcome string)
	IncSessionsFinished(configurationID, status string)
	ObserveEvaluation(configurationID string, passes int, durationSeconds float64)
	IncPipelineErrors(configurationID, kind string)
}

// StartOptions are the order terms and initial choices of a new session.
type StartOptions struct {
	Quantity     int
	Jurisdiction string
	Selections   []domain.SelectionChangeRequest
}

// SessionFacade is the entry point exposed to the outside world.
type SessionFacade interface {
	StartSession(ctx context.Context, configurationID string, opts StartOptions) (*domain.SessionResult, error)
	ApplySelection(ctx context.Context, sessionID string, req domain.SelectionChangeRequest) (*domain.SessionResult, error)
	ApplyPatch(ctx context.Context, sessionID string, patch []byte) (*domain.SessionResult, error)
	SetQuantity(ctx context.Context, sessionID string, quantity int) (*domain.SessionResult, error)
	SetJurisdiction(ctx context.Context, sessionID, jurisdiction string) (*domain.SessionResult, error)
	Complete(ctx context.Context, sessionID string) (*domain.SessionResult, error)
	Abandon(ctx context.Context, sessionID string) (*domain.SessionResult, error)
	Get(ctx context.Context, sessionID string) (*domain.SessionResult, error)
}
