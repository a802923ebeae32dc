package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/image-uploader/backend/internal/models"
	"github.com/image-uploader/backend/internal/storage"
	"github.com/image-uploader/backend/internal/widget"
)

// DefaultMaxWidgets limits how many widgets can be mounted at once.
const DefaultMaxWidgets = 100

// WidgetKeepAliveWindow protects recently used widgets from cleanup.
const WidgetKeepAliveWindow = 5 * time.Minute

// ErrNotFound is returned for unknown widget IDs.
var ErrNotFound = errors.New("widget not found")

// Manager owns the mounted widgets. Each page mounts its own widget; no
// state is shared between widgets.
type Manager struct {
	widgets    map[string]*WidgetState
	mu         sync.RWMutex
	store      storage.Store
	transport  widget.Transport
	allowed    widget.AllowList
	maxWidgets int
}

// WidgetState holds a mounted widget and its bookkeeping.
type WidgetState struct {
	Widget       *widget.Widget
	MountedAt    time.Time
	LastAccessed time.Time
}

// NewManager creates a widget manager. maxWidgets <= 0 uses DefaultMaxWidgets.
func NewManager(store storage.Store, transport widget.Transport, allowed widget.AllowList, maxWidgets int) *Manager {
	if maxWidgets <= 0 {
		maxWidgets = DefaultMaxWidgets
	}
	return &Manager{
		widgets:    make(map[string]*WidgetState),
		store:      store,
		transport:  transport,
		allowed:    allowed,
		maxWidgets: maxWidgets,
	}
}

// Store returns the staging store backing the widgets' files.
func (m *Manager) Store() storage.Store {
	return m.store
}

// Mount creates a new widget.
func (m *Manager) Mount() *widget.Widget {
	m.evictIfNeeded()

	id := uuid.New().String()
	w := widget.New(id, m.transport, m.store, m.allowed)
	w.OnRelease(m.Release)

	now := time.Now()
	m.mu.Lock()
	m.widgets[id] = &WidgetState{Widget: w, MountedAt: now, LastAccessed: now}
	m.mu.Unlock()

	fmt.Printf("[Widget %s] Mounted\n", id[:8])
	return w
}

// Get returns a widget by ID and marks it as used.
func (m *Manager) Get(id string) (*widget.Widget, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.widgets[id]
	if !ok {
		return nil, false
	}
	state.LastAccessed = time.Now()
	return state.Widget, true
}

// Touch updates the LastAccessed timestamp of a widget.
func (m *Manager) Touch(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// Count returns the number of mounted widgets.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.widgets)
}

// Unmount discards a widget and releases its staged files.
func (m *Manager) Unmount(id string) error {
	m.mu.Lock()
	state, ok := m.widgets[id]
	if ok {
		delete(m.widgets, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	m.Release(state.Widget.Close())
	fmt.Printf("[Widget %s] Unmounted\n", models.ShortID(id))
	return nil
}

// Release deletes staged files that no widget references any more.
func (m *Manager) Release(files []models.FileHandle) {
	if len(files) == 0 {
		return
	}
	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	if err := m.store.DeleteAll(ids); err != nil {
		fmt.Printf("[Manager] Failed to release %d staged file(s): %v\n", len(ids), err)
	}
}

// CleanupOldSessions unmounts widgets idle for longer than maxAge. Widgets
// that are uploading or were used within WidgetKeepAliveWindow are kept.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-WidgetKeepAliveWindow)

	var stale []string
	m.mu.RLock()
	for id, state := range m.widgets {
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.Widget.Snapshot().Phase == models.PhaseUploading {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		if err := m.Unmount(id); err == nil {
			fmt.Printf("[Manager] Cleaned up idle widget %s\n", models.ShortID(id))
		}
	}
	return len(stale)
}

// evictIfNeeded unmounts the least recently used widgets that are not
// uploading when the manager is at capacity.
func (m *Manager) evictIfNeeded() {
	m.mu.RLock()
	if len(m.widgets) < m.maxWidgets {
		m.mu.RUnlock()
		return
	}

	var candidates []*WidgetState
	for _, state := range m.widgets {
		if state.Widget.Snapshot().Phase != models.PhaseUploading {
			candidates = append(candidates, state)
		}
	}
	toFree := len(m.widgets) - m.maxWidgets + 1
	m.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LastAccessed.Before(candidates[j].LastAccessed)
	})

	for i := 0; i < toFree && i < len(candidates); i++ {
		id := candidates[i].Widget.ID()
		if err := m.Unmount(id); err == nil {
			fmt.Printf("[Manager] Evicted widget %s to stay under %d mounted widgets\n", models.ShortID(id), m.maxWidgets)
		}
	}
}
