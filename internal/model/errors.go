package model

import "errors"

// Domain error taxonomy. Callers wrap these with eris for context and match
// with errors.Is; the HTTP layer maps them to status codes.
var (
	ErrIngredientNotFound = errors.New("ingredient not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrQuoteNotFound      = errors.New("quote not found")
	ErrQuoteExpired       = errors.New("quote expired")
	ErrAlreadyNegotiated  = errors.New("quote already negotiated")
	ErrInvalidProposal    = errors.New("invalid proposal")
	ErrPriceExceedsMax    = errors.New("price exceeds maximum acceptable price")
	ErrOrderNotFound      = errors.New("order not found")
	ErrPersistence        = errors.New("persistence failure")
)
