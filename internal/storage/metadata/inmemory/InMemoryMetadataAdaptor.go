// Package metadata_inmemory keeps study configurations in process memory
// with real advisory-lock semantics (tokens, expiry, acquisition polling),
// mirroring the MongoDB adaptor for unit tests and demo mode.
package metadata_inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nicholsn/opencga/internal/common"
	"github.com/nicholsn/opencga/internal/storage/metadata"
)

const pollInterval = 10 * time.Millisecond

type lockState struct {
	token   string
	expires time.Time
}

// InMemoryMetadataAdaptor implements metadata.Adaptor over maps.
type InMemoryMetadataAdaptor struct {
	mu      sync.Mutex
	configs map[int]*metadata.StudyConfiguration
	byName  map[string]int
	locks   map[int]lockState
	clock   int64
}

func NewInMemoryMetadataAdaptor() *InMemoryMetadataAdaptor {
	return &InMemoryMetadataAdaptor{
		configs: make(map[int]*metadata.StudyConfiguration),
		byName:  make(map[string]int),
		locks:   make(map[int]lockState),
	}
}

func (a *InMemoryMetadataAdaptor) Close(ctx context.Context) error { return nil }

func (a *InMemoryMetadataAdaptor) Get(ctx context.Context, studyID int, cachedTimestamp int64) (*metadata.StudyConfiguration, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	config, ok := a.configs[studyID]
	if !ok {
		return nil, common.NewErrNotFound("study configuration %d not found", studyID)
	}
	if cachedTimestamp != 0 && config.Timestamp == cachedTimestamp {
		return nil, nil
	}
	return config.Copy(), nil
}

func (a *InMemoryMetadataAdaptor) GetByName(ctx context.Context, name string, cachedTimestamp int64) (*metadata.StudyConfiguration, error) {
	a.mu.Lock()
	id, ok := a.byName[name]
	a.mu.Unlock()
	if !ok {
		return nil, common.NewErrNotFound("study configuration '%s' not found", name)
	}
	return a.Get(ctx, id, cachedTimestamp)
}

func (a *InMemoryMetadataAdaptor) Update(ctx context.Context, config *metadata.StudyConfiguration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clock++
	stored := config.Copy()
	stored.Timestamp = a.clock
	config.Timestamp = a.clock
	a.configs[config.ID] = stored
	a.byName[config.Name] = config.ID
	return nil
}

// LockStudy polls until the study lock is free or expired, then claims it
// with a fresh token that auto-expires after duration.
func (a *InMemoryMetadataAdaptor) LockStudy(ctx context.Context, studyID int, duration, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		if token, ok := a.tryLock(studyID, duration); ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", common.NewErrTimeout("could not acquire the lock on study %d within %s", studyID, timeout)
		}
		select {
		case <-ctx.Done():
			return "", common.NewErrTimeout("lock acquisition on study %d cancelled", studyID)
		case <-time.After(pollInterval):
		}
	}
}

func (a *InMemoryMetadataAdaptor) tryLock(studyID int, duration time.Duration) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	state, held := a.locks[studyID]
	if held && time.Now().Before(state.expires) {
		return "", false
	}
	token := uuid.NewString()
	a.locks[studyID] = lockState{token: token, expires: time.Now().Add(duration)}
	return token, true
}

// UnlockStudy releases the lock when the token still owns it. Expired or
// foreign tokens release silently.
func (a *InMemoryMetadataAdaptor) UnlockStudy(ctx context.Context, studyID int, token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if state, held := a.locks[studyID]; held && state.token == token {
		delete(a.locks, studyID)
	}
	return nil
}
