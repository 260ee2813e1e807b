package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrOutOfRange         = errors.New("index out of range")
	ErrEmptyGeneration    = errors.New("generation returned no images")
	ErrProviderFailure    = errors.New("provider failure")
	ErrDuplicateOperation = errors.New("duplicate operation")
	ErrInvalidArtifact    = errors.New("invalid artifact")
	ErrInvalidImage       = errors.New("invalid image")
	ErrEmptyMask          = errors.New("mask selects no pixels")
	ErrInvalidPrompt      = errors.New("invalid prompt")
	ErrStaleArtifact      = errors.New("artifact changed since the work started")
)
