package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Locking
	ErrRunInProgress = fmt.Errorf("another sync run is in progress")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrSearchNotFound     = fmt.Errorf("search not found")
	ErrDownloadRejected   = fmt.Errorf("download rejected")

	// Filesystem errors
	ErrIndexNotFound = fmt.Errorf("library index not found")

	// Persistence errors
	ErrRunNotFound = fmt.Errorf("run not found")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
