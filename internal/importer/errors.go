package importer

import "errors"

// Sentinel errors returned by an import run. Messages are matched by MapError,
// so keep them in sync with errorPatterns.
var (
	ErrInvalidOptions   = errors.New("invalid import options")
	ErrNoFile           = errors.New("no file provided")
	ErrFileNotFound     = errors.New("file not found")
	ErrFileTooLarge     = errors.New("file too large")
	ErrEmptyFile        = errors.New("empty file")
	ErrInvalidHeader    = errors.New("invalid csv header")
	ErrUnknownNamespace = errors.New("unknown namespace")
)
