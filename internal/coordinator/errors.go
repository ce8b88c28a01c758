package coordinator

import "errors"

var (
	// ErrInvalidRoot is returned by StartScan when the root does not exist
	// or is not a directory.
	ErrInvalidRoot = errors.New("invalid scan root")

	// ErrScanCancelled is carried by the error notification of a scan whose
	// token was cancelled before it finished.
	ErrScanCancelled = errors.New("scan cancelled")

	// ErrPoolProvisioning is carried by the error notification of a scan
	// whose worker pool could not be created.
	ErrPoolProvisioning = errors.New("worker pool provisioning failed")
)
