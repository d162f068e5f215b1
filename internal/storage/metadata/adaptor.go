package metadata

import (
	"context"
	"time"
)

// Adaptor is the narrow interface the study configuration manager needs
// from the metadata backend.
//
// Consistency contract: LockStudy provides mutual exclusion across every
// process sharing the backend, and Get observes any Update completed before
// the call returned.
type Adaptor interface {
	// Get returns the configuration of a study, or nil when the caller's
	// cachedTimestamp is still current, sparing the deserialization.
	Get(ctx context.Context, studyID int, cachedTimestamp int64) (*StudyConfiguration, error)

	// GetByName is Get keyed by study name.
	GetByName(ctx context.Context, name string, cachedTimestamp int64) (*StudyConfiguration, error)

	// Update persists the configuration, bumping its timestamp.
	Update(ctx context.Context, config *StudyConfiguration) error

	// LockStudy blocks until the study's advisory lock is acquired or the
	// timeout elapses (Timeout error). The lock auto-expires after
	// duration.
	LockStudy(ctx context.Context, studyID int, duration, timeout time.Duration) (string, error)

	// UnlockStudy releases the lock. Expired or foreign tokens are
	// ignored; releasing is idempotent.
	UnlockStudy(ctx context.Context, studyID int, token string) error

	Close(ctx context.Context) error
}
