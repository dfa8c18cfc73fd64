package browsers

import "errors"

var (
	// ErrUnsupportedPlatform is returned for an OS family without known browser paths.
	// Callers treat it as "browser absent".
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrMissingArtifact means an expected browser file or directory does not exist
	ErrMissingArtifact = errors.New("missing artifact")

	// ErrMalformedArtifact means a browser file exists but is unreadable or has the wrong shape
	ErrMalformedArtifact = errors.New("malformed artifact")

	// ErrUnexpectedCatalogShape means a locale catalog entry is neither a string nor a message object
	ErrUnexpectedCatalogShape = errors.New("unexpected locale catalog shape")

	// ErrPermissionType means a permissions block is present but is not the expected mapping or list
	ErrPermissionType = errors.New("unexpected permissions type")
)
