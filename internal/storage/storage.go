package storage

import "errors"

// Sentinel errors shared by all store implementations. Callers branch on
// these with errors.Is instead of inspecting driver errors.
var (
	ErrNotFound          = errors.New("storage: not found")
	ErrAlreadyExists     = errors.New("storage: already exists")
	ErrInsufficientFunds = errors.New("storage: insufficient funds")
)
