// Package engine is the public entry point of the product configurator: it
// re-exports the domain types callers exchange with the session service and
// wires the service from runtime configuration.
package engine

import (
	"github.com/Victor-armando18/product-configurator/internal/domain"
	"github.com/Victor-armando18/product-configurator/internal/interfaces"
)

type (
	Configuration          = domain.Configuration
	Component              = domain.Component
	Option                 = domain.Option
	Selection              = domain.Selection
	SelectionChangeRequest = domain.SelectionChangeRequest
	Snapshot               = domain.Snapshot
	SessionResult          = domain.SessionResult
	PriceBreakdown         = domain.PriceBreakdown
	ValidationResult       = domain.ValidationResult
	ExportedChoice         = domain.ExportedChoice
	StartOptions           = interfaces.StartOptions
	Facade                 = interfaces.SessionFacade
)

var (
	ErrMalformedCatalog        = domain.ErrMalformedCatalog
	ErrCatalogNotFound         = domain.ErrCatalogNotFound
	ErrRuleCycle               = domain.ErrRuleCycle
	ErrSelectionRejected       = domain.ErrSelectionRejected
	ErrSessionState            = domain.ErrSessionState
	ErrSessionAlreadyCompleted = domain.ErrSessionAlreadyCompleted
	ErrSessionInvalid          = domain.ErrSessionInvalid
	ErrSessionNotFound         = domain.ErrSessionNotFound
)
