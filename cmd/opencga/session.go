package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/nicholsn/opencga/internal/common"
)

// Session is the persisted client state. Logins overwrite it, logout
// removes it.
type Session struct {
	URL   string `json:"url"`
	User  string `json:"user"`
	Saved string `json:"saved"`
}

// sessionStore reads and writes the session file under an advisory file
// lock so concurrent invocations do not interleave writes.
type sessionStore struct {
	path string
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".opencga", "session.json")
}

func newSessionStore(path string) *sessionStore {
	if path == "" {
		path = defaultSessionPath()
	}
	return &sessionStore{path: path}
}

func (s *sessionStore) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return common.NewInternalServerError(err, "error preparing session directory")
	}
	lock := flock.New(s.path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ok, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return common.NewInternalServerError(err, "error locking session file")
	}
	if !ok {
		return common.NewErrTimeout("timed out waiting for the session file lock")
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

func (s *sessionStore) Load() (Session, error) {
	var session Session
	err := s.withLock(func() error {
		raw, err := os.ReadFile(s.path)
		if os.IsNotExist(err) {
			return common.NewErrPrecondition("no active session, run 'opencga login' first")
		}
		if err != nil {
			return common.NewInternalServerError(err, "error reading session file")
		}
		if err := json.Unmarshal(raw, &session); err != nil {
			return common.NewInternalServerError(err, "error parsing session file")
		}
		return nil
	})
	return session, err
}

func (s *sessionStore) Save(session Session) error {
	return s.withLock(func() error {
		session.Saved = time.Now().UTC().Format(time.RFC3339)
		raw, err := json.MarshalIndent(session, "", "  ")
		if err != nil {
			return common.NewInternalServerError(err, "error encoding session")
		}
		if err := os.WriteFile(s.path, raw, 0o600); err != nil {
			return common.NewInternalServerError(err, "error writing session file")
		}
		return nil
	})
}

func (s *sessionStore) Clear() error {
	return s.withLock(func() error {
		err := os.Remove(s.path)
		if err != nil && !os.IsNotExist(err) {
			return common.NewInternalServerError(err, "error removing session file")
		}
		return nil
	})
}
