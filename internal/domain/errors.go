package domain

import "errors"

// Sentinel errors used across the Media Pipeline. Components check these
// with errors.Is rather than comparing error strings.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrInputCorrupt       = errors.New("input corrupt")
	ErrMissingSource      = errors.New("source video file not found")
	ErrNoRungsSucceeded   = errors.New("no rungs succeeded")
	ErrTransientExternal  = errors.New("transient external failure")
)
