package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedCatalog        = errors.New("malformed catalog")
	ErrCatalogNotFound         = errors.New("catalog not found")
	ErrRuleCycle               = errors.New("rule cycle")
	ErrSelectionRejected       = errors.New("selection rejected")
	ErrSessionState            = errors.New("invalid session state")
	ErrSessionAlreadyCompleted = fmt.Errorf("%w: session already completed", ErrSessionState)
	ErrSessionInvalid          = errors.New("configuration is not valid")
	ErrSessionNotFound         = errors.New("session not found")
)

// CatalogError identifies the offending id of a refused catalog.
type CatalogError struct {
	ID     string
	Reason string
}

func (e *CatalogError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s", ErrMalformedCatalog, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrMalformedCatalog, e.ID, e.Reason)
}

func (e *CatalogError) Unwrap() error { return ErrMalformedCatalog }

// RuleCycleError is returned when forced selections keep changing after the
// configured number of evaluation passes.
type RuleCycleError struct {
	RuleIDs []string
	Passes  int
}

func (e *RuleCycleError) Error() string {
	return fmt.Sprintf("%s: no fixed point after %d passes, looping rules [%s]",
		ErrRuleCycle, e.Passes, strings.Join(e.RuleIDs, ", "))
}

func (e *RuleCycleError) Unwrap() error { return ErrRuleCycle }

type RejectReason string

const (
	RejectUnknownComponent  RejectReason = "unknown_component"
	RejectUnknownOption     RejectReason = "unknown_option"
	RejectHiddenComponent   RejectReason = "hidden_component"
	RejectDisabledOption    RejectReason = "disabled_option"
	RejectWrongMultiplicity RejectReason = "wrong_multiplicity"
	RejectInvalidQuantity   RejectReason = "invalid_quantity"
)

// SelectionRejectedError explains why a change was refused. The session is
// left untouched.
type SelectionRejectedError struct {
	ComponentID string
	OptionID    string
	Reason      RejectReason
}

func (e *SelectionRejectedError) Error() string {
	if e.OptionID != "" {
		return fmt.Sprintf("%s: %s (component %s, option %s)", ErrSelectionRejected, e.Reason, e.ComponentID, e.OptionID)
	}
	return fmt.Sprintf("%s: %s (component %s)", ErrSelectionRejected, e.Reason, e.ComponentID)
}

func (e *SelectionRejectedError) Unwrap() error { return ErrSelectionRejected }

// SessionStateError reports a call made outside the state that allows it.
type SessionStateError struct {
	Op    string
	State SessionStatus
}

func (e *SessionStateError) Error() string {
	return fmt.Sprintf("%s: %s not allowed in state %s", ErrSessionState, e.Op, e.State)
}

func (e *SessionStateError) Unwrap() error { return ErrSessionState }

// IsRecoverable reports whether the caller may correct the request and try
// again. Malformed catalogs and rule cycles are fatal.
func IsRecoverable(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrMalformedCatalog), errors.Is(err, ErrRuleCycle):
		return false
	}
	return true
}
