package core

import (
	"errors"

	"github.com/git-pkgs/feedchooser/client"
)

var (
	// ErrInvalidSource is returned when a source URL cannot name a feed.
	ErrInvalidSource = errors.New("invalid package source")

	// ErrUnknownKind is returned when no factory is registered for a feed kind.
	ErrUnknownKind = errors.New("unknown feed kind")

	// ErrNotFound is returned when a package or version is not found.
	ErrNotFound = client.ErrNotFound
)

// Error types shared with the HTTP client.
type (
	HTTPError      = client.HTTPError
	NotFoundError  = client.NotFoundError
	RateLimitError = client.RateLimitError
)
