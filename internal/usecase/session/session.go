// Package session orchestrates one configuration session: every accepted
// change re-runs rules, validation and pricing and yields a new snapshot.
package session

import (
	"fmt"

	"github.com/Victor-armando18/product-configurator/internal/domain"
	"github.com/Victor-armando18/product-configurator/internal/domain/engine"
	"github.com/Victor-armando18/product-configurator/internal/domain/pricing"
)

// Session is single-writer: it must not be used from several goroutines at
// once. The Configuration it references is shared read-only.
type Session struct {
	id           string
	cfg          *domain.Configuration
	pipeline     *engine.Pipeline
	status       domain.SessionStatus
	revision     int
	quantity     int
	jurisdiction string
	selection    domain.Selection
	outcome      *engine.Outcome
}

type Option func(*Session)

func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

func WithPipeline(p *engine.Pipeline) Option {
	return func(s *Session) { s.pipeline = p }
}

func WithQuantity(n int) Option {
	return func(s *Session) { s.quantity = n }
}

func WithJurisdiction(code string) Option {
	return func(s *Session) { s.jurisdiction = code }
}

func newSession(cfg *domain.Configuration, opts []Option) *Session {
	s := &Session{cfg: cfg, status: domain.StatusInitializing, quantity: 1}
	for _, opt := range opts {
		opt(s)
	}
	if s.pipeline == nil {
		s.pipeline = engine.NewPipeline(nil, nil)
	}
	return s
}

// Start applies the catalog defaults, evaluates them once and activates the
// session.
func Start(cfg *domain.Configuration, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("start session: nil configuration")
	}
	s := newSession(cfg, opts)
	if s.quantity < 1 {
		return nil, &domain.SelectionRejectedError{Reason: domain.RejectInvalidQuantity}
	}
	s.selection = cfg.DefaultSelection()

	outcome, err := s.run(s.selection, s.quantity, s.jurisdiction)
	if err != nil {
		return nil, err
	}
	s.outcome = outcome
	s.status = domain.StatusActive
	return s, nil
}

// Restore rebuilds a session from a stored snapshot. Derived state is
// recomputed, which yields the stored values because evaluation is pure.
func Restore(cfg *domain.Configuration, snap domain.Snapshot, opts ...Option) (*Session, error) {
	if cfg == nil || cfg.ID != snap.ConfigurationID {
		return nil, fmt.Errorf("restore session %s: configuration mismatch", snap.SessionID)
	}
	switch snap.Status {
	case domain.StatusActive, domain.StatusCompleted, domain.StatusAbandoned:
	default:
		return nil, &domain.SessionStateError{Op: "Restore", State: snap.Status}
	}

	s := newSession(cfg, append([]Option{
		WithID(snap.SessionID),
		WithQuantity(snap.Quantity),
		WithJurisdiction(snap.Jurisdiction),
	}, opts...))
	if s.quantity < 1 {
		s.quantity = 1
	}
	s.selection = snap.Selection.Selections.Clone()
	s.revision = snap.Revision

	outcome, err := s.run(s.selection, s.quantity, s.jurisdiction)
	if err != nil {
		return nil, err
	}
	s.outcome = outcome
	s.status = snap.Status
	return s, nil
}

func (s *Session) ID() string                           { return s.id }
func (s *Session) Status() domain.SessionStatus         { return s.status }
func (s *Session) Revision() int                        { return s.revision }
func (s *Session) Configuration() *domain.Configuration { return s.cfg }

// ApplySelection replaces the options chosen for one component. An empty
// list clears the component. Rejected or failing changes leave the session
// untouched.
func (s *Session) ApplySelection(componentID string, optionIDs []string) (domain.Snapshot, error) {
	if s.status != domain.StatusActive {
		return domain.Snapshot{}, &domain.SessionStateError{Op: "ApplySelection", State: s.status}
	}
	normalized, err := s.check(componentID, optionIDs)
	if err != nil {
		return domain.Snapshot{}, err
	}

	next := s.selection.Clone()
	if len(normalized) == 0 {
		delete(next, componentID)
	} else {
		next[componentID] = normalized
	}
	return s.commit(next, s.quantity, s.jurisdiction)
}

// check resolves a change request against the catalog and the current
// effects, returning the normalized option list.
func (s *Session) check(componentID string, optionIDs []string) ([]string, error) {
	comp, ok := s.cfg.Component(componentID)
	if !ok {
		return nil, &domain.SelectionRejectedError{ComponentID: componentID, Reason: domain.RejectUnknownComponent}
	}
	for _, o := range optionIDs {
		if _, ok := s.cfg.Option(componentID, o); !ok {
			return nil, &domain.SelectionRejectedError{ComponentID: componentID, OptionID: o, Reason: domain.RejectUnknownOption}
		}
	}
	normalized := s.cfg.NormalizeOptions(componentID, optionIDs)

	effects := s.outcome.Effects
	if len(normalized) > 0 && !effects.IsVisible(componentID) {
		return nil, &domain.SelectionRejectedError{ComponentID: componentID, Reason: domain.RejectHiddenComponent}
	}
	for _, o := range normalized {
		// options already held may stay; validation reports them
		if effects.IsDisabled(componentID, o) && !s.selection.Has(componentID, o) {
			return nil, &domain.SelectionRejectedError{ComponentID: componentID, OptionID: o, Reason: domain.RejectDisabledOption}
		}
	}
	if (!comp.AllowMultiple && len(normalized) > 1) ||
		(comp.AllowMultiple && comp.MaxSelections > 0 && len(normalized) > comp.MaxSelections) {
		return nil, &domain.SelectionRejectedError{ComponentID: componentID, Reason: domain.RejectWrongMultiplicity}
	}
	return normalized, nil
}

// SetQuantity changes the ordered quantity and re-prices the session.
func (s *Session) SetQuantity(n int) (domain.Snapshot, error) {
	if s.status != domain.StatusActive {
		return domain.Snapshot{}, &domain.SessionStateError{Op: "SetQuantity", State: s.status}
	}
	if n < 1 {
		return domain.Snapshot{}, &domain.SelectionRejectedError{Reason: domain.RejectInvalidQuantity}
	}
	return s.commit(s.selection, n, s.jurisdiction)
}

// SetJurisdiction changes the tax jurisdiction and re-prices the session.
func (s *Session) SetJurisdiction(code string) (domain.Snapshot, error) {
	if s.status != domain.StatusActive {
		return domain.Snapshot{}, &domain.SessionStateError{Op: "SetJurisdiction", State: s.status}
	}
	return s.commit(s.selection, s.quantity, code)
}

// commit re-runs the pipeline for the candidate state and adopts it. The
// revision only moves when something actually changed.
func (s *Session) commit(next domain.Selection, quantity int, jurisdiction string) (domain.Snapshot, error) {
	if next.Equal(s.selection) && quantity == s.quantity && jurisdiction == s.jurisdiction {
		return s.Snapshot(), nil
	}
	outcome, err := s.run(next, quantity, jurisdiction)
	if err != nil {
		return domain.Snapshot{}, err
	}
	s.selection = next
	s.quantity = quantity
	s.jurisdiction = jurisdiction
	s.outcome = outcome
	s.revision++
	return s.Snapshot(), nil
}

func (s *Session) run(sel domain.Selection, quantity int, jurisdiction string) (*engine.Outcome, error) {
	return s.pipeline.Run(s.cfg, sel, pricing.Terms{Quantity: quantity, Jurisdiction: jurisdiction})
}

// Complete finalizes a valid session.
func (s *Session) Complete() (domain.Snapshot, error) {
	switch s.status {
	case domain.StatusCompleted:
		return domain.Snapshot{}, domain.ErrSessionAlreadyCompleted
	case domain.StatusActive:
	default:
		return domain.Snapshot{}, &domain.SessionStateError{Op: "Complete", State: s.status}
	}
	if !s.outcome.Validation.Valid {
		return domain.Snapshot{}, fmt.Errorf("%w: %d validation errors", domain.ErrSessionInvalid, len(s.outcome.Validation.Errors))
	}
	s.status = domain.StatusCompleted
	return s.Snapshot(), nil
}

// Abandon ends an active session without an order. Abandoning twice is a
// no-op.
func (s *Session) Abandon() (domain.Snapshot, error) {
	switch s.status {
	case domain.StatusAbandoned:
	case domain.StatusActive:
		s.status = domain.StatusAbandoned
	default:
		return domain.Snapshot{}, &domain.SessionStateError{Op: "Abandon", State: s.status}
	}
	return s.Snapshot(), nil
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() domain.Snapshot {
	o := s.outcome
	return domain.Snapshot{
		SessionID:       s.id,
		ConfigurationID: s.cfg.ID,
		Status:          s.status,
		Revision:        s.revision,
		Quantity:        s.quantity,
		Jurisdiction:    s.jurisdiction,
		Selection:       cloneState(o.State),
		Effects:         *o.Effects.Clone(),
		Validation: domain.ValidationResult{
			Valid:    o.Validation.Valid,
			Errors:   append([]domain.ValidationError{}, o.Validation.Errors...),
			Warnings: append([]domain.ValidationError{}, o.Validation.Warnings...),
		},
		Price: clonePrice(o.Price),
	}
}

func cloneState(st domain.SelectionState) domain.SelectionState {
	return domain.SelectionState{
		Selections:        st.Selections.Clone(),
		Effective:         st.Effective.Clone(),
		VisibleComponents: append([]string{}, st.VisibleComponents...),
		DisabledOptions:   append([]domain.OptionRef{}, st.DisabledOptions...),
		ForcedSelections:  append([]domain.ForcedSelection{}, st.ForcedSelections...),
	}
}

func clonePrice(p domain.PriceBreakdown) domain.PriceBreakdown {
	p.Lines = append([]domain.LineItem{}, p.Lines...)
	return p
}
