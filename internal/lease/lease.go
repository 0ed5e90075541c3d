// Package lease serialises migrations per artist.
//
// A lease is held in-process through a keyed map and across processes through
// a flock file under the state directory. Acquisition never blocks: a held
// key is reported as ErrHeld immediately.
package lease

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// ErrHeld indicates another migration owns the artist.
var ErrHeld = errors.New("migration already in progress")

// Manager hands out per-artist leases.
type Manager struct {
	dir  string
	mu   sync.Mutex
	held map[string]*Lease
}

// NewManager creates a manager storing lock files in dir. An empty dir
// limits leases to the current process.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, held: make(map[string]*Lease)}
}

// Lease is an acquired exclusive hold on one artist.
type Lease struct {
	key     string
	manager *Manager
	file    *flock.Flock
	once    sync.Once
}

// Key returns the artist id the lease covers.
func (l *Lease) Key() string {
	if l == nil {
		return ""
	}
	return l.key
}

// Acquire takes the lease for key or fails with ErrHeld.
func (m *Manager) Acquire(key string) (*Lease, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("lease key is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrHeld, key)
	}

	lease := &Lease{key: key, manager: m}
	if m.dir != "" {
		if err := os.MkdirAll(m.dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock dir: %w", err)
		}
		fl := flock.New(filepath.Join(m.dir, lockName(key)))
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if !locked {
			return nil, fmt.Errorf("%w: %s (held by another process)", ErrHeld, key)
		}
		lease.file = fl
	}
	m.held[key] = lease
	return lease, nil
}

// Held reports whether key is currently leased by this process.
func (m *Manager) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[key]
	return ok
}

// Release gives the lease back. Safe to call more than once.
func (l *Lease) Release() error {
	if l == nil {
		return nil
	}
	var err error
	l.once.Do(func() {
		m := l.manager
		m.mu.Lock()
		delete(m.held, l.key)
		m.mu.Unlock()
		if l.file != nil {
			err = l.file.Unlock()
		}
	})
	return err
}

func lockName(key string) string {
	replacer := strings.NewReplacer("/", "_", string(os.PathSeparator), "_")
	return replacer.Replace(key) + ".lock"
}
