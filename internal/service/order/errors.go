package order

import "errors"

// Machine codes carried by recoverable finalization failures. The dialog
// engine switches on the code, never on error identity beyond the type.
const (
	CodeProductNotFound    = "product-not-found"
	CodeProductUnavailable = "product-unavailable"
	CodeVariantNotFound    = "variant-not-found"
	CodeStockUnavailable   = "stock-unavailable"
	CodeModifierNotFound   = "modifier-not-found"
	CodePricingFailed      = "pricing-failed"
	CodeSlotFull           = "slot-unavailable"
)

// ProcessingError is a recoverable domain failure raised while finalizing
// an order: the dialog returns to collecting with the caller-facing
// Message, and nothing has been committed.
type ProcessingError struct {
	Code    string
	Message string
}

// Error returns the caller-facing message.
func (e *ProcessingError) Error() string { return e.Message }

// NewProcessingError builds a ProcessingError with a machine code and a
// message safe to speak back to the caller.
func NewProcessingError(code, message string) *ProcessingError {
	return &ProcessingError{Code: code, Message: message}
}

// AsProcessingError unwraps err looking for a domain failure.
func AsProcessingError(err error) (*ProcessingError, bool) {
	var perr *ProcessingError
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}
