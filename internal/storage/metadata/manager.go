package metadata

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nicholsn/opencga/internal/common"
)

// Default lock parameters. Operations expected to outlive the duration must
// re-acquire; there is no renewal API.
const (
	DefaultLockDuration = 20 * time.Second
	DefaultLockTimeout  = 10 * time.Second
)

// Manager serves study configurations with a dual-keyed process cache and
// the study lock protocol. Cache writes happen while the writer holds the
// study lock; reads are lock-free and hand out defensive copies unless the
// caller asks for a read-only view.
type Manager struct {
	adaptor      Adaptor
	lockDuration time.Duration
	lockTimeout  time.Duration

	mu     sync.RWMutex
	byID   map[int]*StudyConfiguration
	byName map[string]*StudyConfiguration

	opMu    sync.Mutex
	pending []pendingOperation
}

// pendingOperation identifies a batch operation this process admitted and
// has not yet seen complete.
type pendingOperation struct {
	studyID int
	name    string
	fileIDs []int
	opType  string
}

func (p pendingOperation) matches(studyID int, name string, fileIDs []int, opType string) bool {
	if p.studyID != studyID || p.name != name || p.opType != opType || len(p.fileIDs) != len(fileIDs) {
		return false
	}
	for i := range fileIDs {
		if p.fileIDs[i] != fileIDs[i] {
			return false
		}
	}
	return true
}

// NewManager wraps an adaptor with the default lock parameters.
func NewManager(adaptor Adaptor) *Manager {
	return NewManagerWithLocks(adaptor, DefaultLockDuration, DefaultLockTimeout)
}

// NewManagerWithLocks overrides the lock duration and acquisition timeout.
func NewManagerWithLocks(adaptor Adaptor, lockDuration, lockTimeout time.Duration) *Manager {
	return &Manager{
		adaptor:      adaptor,
		lockDuration: lockDuration,
		lockTimeout:  lockTimeout,
		byID:         make(map[int]*StudyConfiguration),
		byName:       make(map[string]*StudyConfiguration),
	}
}

// GetStudyConfiguration returns a study configuration by id, refreshing the
// cache when the stored document moved past the cached timestamp.
func (m *Manager) GetStudyConfiguration(ctx context.Context, studyID int, opts common.QueryOptions) (*StudyConfiguration, error) {
	m.mu.RLock()
	cached := m.byID[studyID]
	m.mu.RUnlock()

	var cachedTimestamp int64
	if cached != nil {
		cachedTimestamp = cached.Timestamp
	}
	fresh, err := m.adaptor.Get(ctx, studyID, cachedTimestamp)
	if err != nil {
		return nil, err
	}
	return m.afterRead(cached, fresh, opts), nil
}

// GetStudyConfigurationByName is GetStudyConfiguration keyed by name.
func (m *Manager) GetStudyConfigurationByName(ctx context.Context, name string, opts common.QueryOptions) (*StudyConfiguration, error) {
	m.mu.RLock()
	cached := m.byName[name]
	m.mu.RUnlock()

	var cachedTimestamp int64
	if cached != nil {
		cachedTimestamp = cached.Timestamp
	}
	fresh, err := m.adaptor.GetByName(ctx, name, cachedTimestamp)
	if err != nil {
		return nil, err
	}
	return m.afterRead(cached, fresh, opts), nil
}

// afterRead merges an adaptor response into the cache. A nil fresh result
// means the cache is current.
func (m *Manager) afterRead(cached, fresh *StudyConfiguration, opts common.QueryOptions) *StudyConfiguration {
	config := cached
	if fresh != nil {
		config = fresh
		m.storeCache(fresh)
	}
	if config == nil {
		return nil
	}
	if opts.ReadOnly {
		return config
	}
	return config.Copy()
}

// storeCache updates both cache keys consistently.
func (m *Manager) storeCache(config *StudyConfiguration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[config.ID] = config
	m.byName[config.Name] = config
}

// Lock acquires the study's advisory lock with the manager defaults.
func (m *Manager) Lock(ctx context.Context, studyID int) (string, error) {
	return m.adaptor.LockStudy(ctx, studyID, m.lockDuration, m.lockTimeout)
}

// Unlock releases the advisory lock. Expired tokens release silently.
func (m *Manager) Unlock(ctx context.Context, studyID int, token string) error {
	return m.adaptor.UnlockStudy(ctx, studyID, token)
}

// LockAndUpdate runs fn over a fresh configuration while holding the study
// lock and persists the result. The lock is released on every exit path;
// nothing is persisted when fn fails.
func (m *Manager) LockAndUpdate(ctx context.Context, studyID int, fn func(config *StudyConfiguration) error) (*StudyConfiguration, error) {
	token, err := m.Lock(ctx, studyID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if uerr := m.Unlock(ctx, studyID, token); uerr != nil {
			log.Printf("failed to release lock on study %d: %v", studyID, uerr)
		}
	}()

	// Bypass the cache: the lock holder must see the latest write.
	config, err := m.adaptor.Get(ctx, studyID, 0)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, common.NewErrNotFound("study configuration %d not found", studyID)
	}
	if err := fn(config); err != nil {
		return nil, err
	}
	if err := m.adaptor.Update(ctx, config); err != nil {
		return nil, err
	}
	m.storeCache(config)
	return config.Copy(), nil
}

// RequestBatchOperation admits a batch operation under the study lock and
// persists the RUNNING record (scenario: a loader registering an index or
// annotation run before touching any data). Admitted operations are tracked
// until a terminal status lands, so AbortPendingOperations can flag them on
// shutdown.
func (m *Manager) RequestBatchOperation(ctx context.Context, studyID int, req OperationRequest) (BatchOperation, error) {
	var admitted BatchOperation
	_, err := m.LockAndUpdate(ctx, studyID, func(config *StudyConfiguration) error {
		op, err := config.AddBatchOperation(req)
		if err != nil {
			return err
		}
		admitted = op.copy()
		return nil
	})
	if err == nil && admitted.CurrentStatus() == OperationRunning {
		m.trackPending(studyID, req)
	}
	return admitted, err
}

func (m *Manager) trackPending(studyID int, req OperationRequest) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	for _, p := range m.pending {
		if p.matches(studyID, req.Name, req.FileIDs, req.Type) {
			return
		}
	}
	m.pending = append(m.pending, pendingOperation{
		studyID: studyID,
		name:    req.Name,
		fileIDs: append([]int(nil), req.FileIDs...),
		opType:  req.Type,
	})
}

func (m *Manager) forgetPending(studyID int, name string, fileIDs []int, opType string) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	for i, p := range m.pending {
		if p.matches(studyID, name, fileIDs, opType) {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

// SetBatchOperationStatus appends a status transition to an existing
// operation under the study lock. A terminal status releases the operation
// from the shutdown tracking.
func (m *Manager) SetBatchOperationStatus(ctx context.Context, studyID int, name string, fileIDs []int, opType string, status OperationStatus) error {
	_, err := m.LockAndUpdate(ctx, studyID, func(config *StudyConfiguration) error {
		op := config.FindBatchOperation(name, fileIDs, opType)
		if op == nil {
			return common.NewErrNotFound("operation '%s' not found in study %d", name, studyID)
		}
		op.AddStatus(status)
		return nil
	})
	if err == nil && (status == OperationDone || status == OperationError) {
		m.forgetPending(studyID, name, fileIDs, opType)
	}
	return err
}

// AbortPendingOperations marks every operation this process admitted and
// never completed as ERROR. The daemon calls it on shutdown so interrupted
// runs do not stay RUNNING forever. Returns the first persistence failure,
// after attempting every operation.
func (m *Manager) AbortPendingOperations(ctx context.Context) error {
	m.opMu.Lock()
	pending := m.pending
	m.pending = nil
	m.opMu.Unlock()

	var firstErr error
	for _, p := range pending {
		_, err := m.LockAndUpdate(ctx, p.studyID, func(config *StudyConfiguration) error {
			op := config.FindBatchOperation(p.name, p.fileIDs, p.opType)
			if op == nil || op.CurrentStatus() != OperationRunning {
				return nil
			}
			op.AddStatus(OperationError)
			return nil
		})
		if err != nil {
			log.Printf("failed to abort operation '%s' on study %d: %v", p.name, p.studyID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// RegisterFile runs the file/sample admission checks and persists the
// updated bimaps under the study lock.
func (m *Manager) RegisterFile(ctx context.Context, studyID int, file FileMetadata, sampleMapping map[string]int) (*StudyConfiguration, error) {
	return m.LockAndUpdate(ctx, studyID, func(config *StudyConfiguration) error {
		return CheckAndUpdateStudyConfiguration(config, file, sampleMapping)
	})
}

// GetStudyID resolves a study reference: a numeric id, a study name, or
// either prefixed with "!" marking the study as excluded in query filters.
func (m *Manager) GetStudyID(ctx context.Context, ref string) (id int, negated bool, err error) {
	if strings.HasPrefix(ref, "!") {
		negated = true
		ref = ref[1:]
	}
	if ref == "" {
		return 0, false, common.NewErrInvalidArgument("empty study reference")
	}
	if n, convErr := strconv.Atoi(ref); convErr == nil {
		return n, negated, nil
	}
	config, err := m.GetStudyConfigurationByName(ctx, ref, common.QueryOptions{ReadOnly: true})
	if err != nil {
		return 0, false, err
	}
	if config == nil {
		return 0, false, common.NewErrNotFound("study '%s' not found", ref)
	}
	return config.ID, negated, nil
}

// GetFileID resolves "study:file" or a bare file name through the bimaps.
func (m *Manager) GetFileID(ctx context.Context, defaultStudyID int, ref string) (int, error) {
	return m.resolveScopedID(ctx, defaultStudyID, ref, func(sc *StudyConfiguration) map[string]int { return sc.FileIDs }, "file")
}

// GetSampleID resolves "study:sample" or a bare sample name.
func (m *Manager) GetSampleID(ctx context.Context, defaultStudyID int, ref string) (int, error) {
	return m.resolveScopedID(ctx, defaultStudyID, ref, func(sc *StudyConfiguration) map[string]int { return sc.SampleIDs }, "sample")
}

// GetCohortID resolves "study:cohort" or a bare cohort name.
func (m *Manager) GetCohortID(ctx context.Context, defaultStudyID int, ref string) (int, error) {
	return m.resolveScopedID(ctx, defaultStudyID, ref, func(sc *StudyConfiguration) map[string]int { return sc.CohortIDs }, "cohort")
}

func (m *Manager) resolveScopedID(ctx context.Context, studyID int, ref string, bimap func(*StudyConfiguration) map[string]int, kind string) (int, error) {
	name := ref
	if idx := strings.Index(ref, ":"); idx >= 0 {
		id, _, err := m.GetStudyID(ctx, ref[:idx])
		if err != nil {
			return 0, err
		}
		studyID = id
		name = ref[idx+1:]
	}
	if n, err := strconv.Atoi(name); err == nil {
		return n, nil
	}
	config, err := m.GetStudyConfiguration(ctx, studyID, common.QueryOptions{ReadOnly: true})
	if err != nil {
		return 0, err
	}
	if config == nil {
		return 0, common.NewErrNotFound("study configuration %d not found", studyID)
	}
	if id, ok := bimap(config)[name]; ok {
		return id, nil
	}
	return 0, common.NewErrNotFound("%s '%s' not found in study %d", kind, name, studyID)
}

// Close releases the adaptor.
func (m *Manager) Close(ctx context.Context) error {
	return m.adaptor.Close(ctx)
}
