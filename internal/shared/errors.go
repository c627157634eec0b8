package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Request errors, mapped to 400/404 at the handler boundary
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrNotFound        = fmt.Errorf("not found")

	// Upstream errors; enrichment degrades instead of propagating these
	ErrUpstream = fmt.Errorf("upstream request failed")
	ErrTimeout  = fmt.Errorf("operation timed out")

	// Pipeline errors
	ErrFilesystem        = fmt.Errorf("filesystem operation failed")
	ErrTagWrite          = fmt.Errorf("tag write failed")
	ErrUnsupportedFormat = fmt.Errorf("unsupported audio format")
)
