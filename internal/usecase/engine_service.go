package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Victor-armando18/product-configurator/internal/domain"
	"github.com/Victor-armando18/product-configurator/internal/domain/engine"
	"github.com/Victor-armando18/product-configurator/internal/infrastructure"
	"github.com/Victor-armando18/product-configurator/internal/infrastructure/diff"
	"github.com/Victor-armando18/product-configurator/internal/infrastructure/metrics"
	"github.com/Victor-armando18/product-configurator/internal/interfaces"
	"github.com/Victor-armando18/product-configurator/internal/usecase/session"
)

const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// SessionService runs configuration sessions on top of a snapshot store.
// Every call restores the session from its last stored snapshot, so a call
// that fails leaves the stored state untouched. Writes to the same session
// must be serialized by the caller.
type SessionService struct {
	loader   interfaces.CatalogLoader
	store    interfaces.SessionStore
	pipeline *engine.Pipeline
	metrics  interfaces.Metrics
	log      zerolog.Logger
	differ   *diff.Differ
	newID    func() string

	jurisdiction string

	mu       sync.RWMutex
	catalogs map[string]*domain.Configuration
}

type ServiceOption func(*SessionService)

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *SessionService) { s.log = l }
}

func WithMetrics(m interfaces.Metrics) ServiceOption {
	return func(s *SessionService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *SessionService) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithDefaultJurisdiction is used when a session is started without one.
func WithDefaultJurisdiction(code string) ServiceOption {
	return func(s *SessionService) { s.jurisdiction = code }
}

func NewSessionService(loader interfaces.CatalogLoader, store interfaces.SessionStore, pipeline *engine.Pipeline, opts ...ServiceOption) *SessionService {
	if pipeline == nil {
		pipeline = engine.NewPipeline(nil, nil)
	}
	s := &SessionService{
		loader:   loader,
		store:    store,
		pipeline: pipeline,
		metrics:  metrics.Noop{},
		log:      zerolog.Nop(),
		differ:   &diff.Differ{},
		newID:    uuid.NewString,
		catalogs: make(map[string]*domain.Configuration),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ interfaces.SessionFacade = (*SessionService)(nil)

// configuration returns the cached catalog, loading it on first use.
func (s *SessionService) configuration(ctx context.Context, configurationID string) (*domain.Configuration, error) {
	s.mu.RLock()
	cfg, ok := s.catalogs[configurationID]
	s.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	cfg, err := s.loader.Load(ctx, configurationID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if cached, ok := s.catalogs[configurationID]; ok {
		cfg = cached
	} else {
		s.catalogs[configurationID] = cfg
	}
	s.mu.Unlock()
	return cfg, nil
}

func (s *SessionService) StartSession(ctx context.Context, configurationID string, opts interfaces.StartOptions) (*domain.SessionResult, error) {
	cfg, err := s.configuration(ctx, configurationID)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	quantity := opts.Quantity
	if quantity == 0 {
		quantity = 1
	}
	jurisdiction := opts.Jurisdiction
	if jurisdiction == "" {
		jurisdiction = s.jurisdiction
	}

	started := time.Now()
	sess, err := session.Start(cfg,
		session.WithID(s.newID()),
		session.WithPipeline(s.pipeline),
		session.WithQuantity(quantity),
		session.WithJurisdiction(jurisdiction),
	)
	if err != nil {
		s.recordFailure(configurationID, err)
		return nil, fmt.Errorf("start session: %w", err)
	}
	for _, req := range opts.Selections {
		if _, err := sess.ApplySelection(req.ComponentID, req.OptionIDs); err != nil {
			s.recordFailure(configurationID, err)
			return nil, fmt.Errorf("start session: %w", err)
		}
	}
	snap := sess.Snapshot()
	s.metrics.ObserveEvaluation(configurationID, snap.Effects.Passes, time.Since(started).Seconds())

	if err := s.store.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save session %s: %w", snap.SessionID, err)
	}
	s.metrics.IncSessionsStarted(configurationID)
	s.logger(snap).Info().Bool("valid", snap.Validation.Valid).Int64("total", snap.Price.Total).Msg("session started")
	return s.result(nil, snap)
}

func (s *SessionService) ApplySelection(ctx context.Context, sessionID string, req domain.SelectionChangeRequest) (*domain.SessionResult, error) {
	return s.mutate(ctx, sessionID, "apply selection", func(sess *session.Session) (domain.Snapshot, error) {
		return sess.ApplySelection(req.ComponentID, req.OptionIDs)
	})
}

// ApplyPatch applies a merge patch (or JSON patch) to the selection map and
// feeds the resulting changes to the session one component at a time.
func (s *SessionService) ApplyPatch(ctx context.Context, sessionID string, patch []byte) (*domain.SessionResult, error) {
	return s.mutate(ctx, sessionID, "apply patch", func(sess *session.Session) (domain.Snapshot, error) {
		current := sess.Snapshot()
		changes, err := infrastructure.ApplySelectionPatch(current.Selection.Selections, patch)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("%w: %w", domain.ErrSelectionRejected, err)
		}
		snap := current
		for _, c := range changes {
			if snap, err = sess.ApplySelection(c.ComponentID, c.OptionIDs); err != nil {
				return domain.Snapshot{}, err
			}
		}
		return snap, nil
	})
}

func (s *SessionService) SetQuantity(ctx context.Context, sessionID string, quantity int) (*domain.SessionResult, error) {
	return s.mutate(ctx, sessionID, "set quantity", func(sess *session.Session) (domain.Snapshot, error) {
		return sess.SetQuantity(quantity)
	})
}

func (s *SessionService) SetJurisdiction(ctx context.Context, sessionID, jurisdiction string) (*domain.SessionResult, error) {
	return s.mutate(ctx, sessionID, "set jurisdiction", func(sess *session.Session) (domain.Snapshot, error) {
		return sess.SetJurisdiction(jurisdiction)
	})
}

func (s *SessionService) Complete(ctx context.Context, sessionID string) (*domain.SessionResult, error) {
	res, err := s.mutate(ctx, sessionID, "complete", func(sess *session.Session) (domain.Snapshot, error) {
		return sess.Complete()
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncSessionsFinished(res.Snapshot.ConfigurationID, string(domain.StatusCompleted))
	s.logger(res.Snapshot).Info().Int64("total", res.Snapshot.Price.Total).Msg("session completed")
	return res, nil
}

func (s *SessionService) Abandon(ctx context.Context, sessionID string) (*domain.SessionResult, error) {
	res, err := s.mutate(ctx, sessionID, "abandon", func(sess *session.Session) (domain.Snapshot, error) {
		return sess.Abandon()
	})
	if err != nil {
		return nil, err
	}
	if res.ServerDelta {
		s.metrics.IncSessionsFinished(res.Snapshot.ConfigurationID, string(domain.StatusAbandoned))
		s.logger(res.Snapshot).Info().Msg("session abandoned")
	}
	return res, nil
}

func (s *SessionService) Get(ctx context.Context, sessionID string) (*domain.SessionResult, error) {
	snap, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &domain.SessionResult{Snapshot: snap}, nil
}

// mutate restores the session, runs fn and stores the new snapshot. Nothing
// is saved when fn fails.
func (s *SessionService) mutate(ctx context.Context, sessionID, op string, fn func(*session.Session) (domain.Snapshot, error)) (*domain.SessionResult, error) {
	before, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.configuration(ctx, before.ConfigurationID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sess, err := session.Restore(cfg, before, session.WithPipeline(s.pipeline))
	if err != nil {
		s.recordFailure(cfg.ID, err)
		return nil, fmt.Errorf("%s: restore session %s: %w", op, sessionID, err)
	}

	started := time.Now()
	snap, err := fn(sess)
	if err != nil {
		s.recordFailure(cfg.ID, err)
		s.logger(before).Debug().Err(err).Str("op", op).Msg("change refused")
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.ObserveEvaluation(cfg.ID, snap.Effects.Passes, time.Since(started).Seconds())
	s.metrics.IncSelections(cfg.ID, outcomeAccepted)

	if err := s.store.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save session %s: %w", sessionID, err)
	}
	if snap.Revision != before.Revision {
		s.logger(snap).Debug().Str("op", op).Bool("valid", snap.Validation.Valid).Msg("session updated")
	}
	return s.result(&before, snap)
}

// result attaches the merge patch from before to snap.
func (s *SessionService) result(before *domain.Snapshot, snap domain.Snapshot) (*domain.SessionResult, error) {
	var from any
	if before != nil {
		from = before
	}
	delta, err := s.differ.Diff(from, snap)
	if err != nil {
		return nil, fmt.Errorf("session delta: %w", err)
	}
	return &domain.SessionResult{Snapshot: snap, Delta: delta, ServerDelta: len(delta) > 0}, nil
}

func (s *SessionService) recordFailure(configurationID string, err error) {
	switch {
	case errors.Is(err, domain.ErrSelectionRejected), errors.Is(err, domain.ErrSessionState), errors.Is(err, domain.ErrSessionInvalid):
		s.metrics.IncSelections(configurationID, outcomeRejected)
	case errors.Is(err, domain.ErrRuleCycle):
		s.metrics.IncSelections(configurationID, outcomeFailed)
		s.metrics.IncPipelineErrors(configurationID, "rule_cycle")
		s.log.Error().Err(err).Str("configuration_id", configurationID).Msg("rule evaluation did not converge")
	default:
		s.metrics.IncSelections(configurationID, outcomeFailed)
		s.metrics.IncPipelineErrors(configurationID, "pipeline")
		s.log.Error().Err(err).Str("configuration_id", configurationID).Msg("pipeline failed")
	}
}

func (s *SessionService) logger(snap domain.Snapshot) *zerolog.Logger {
	l := s.log.With().
		Str("session_id", snap.SessionID).
		Str("configuration_id", snap.ConfigurationID).
		Int("revision", snap.Revision).
		Logger()
	return &l
}
