package session

import (
	"context"
	"testing"
	"time"

	"github.com/image-uploader/backend/internal/models"
	"github.com/image-uploader/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, max int) (*Manager, *testutil.MockStorage, *testutil.MockTransport) {
	t.Helper()
	store := testutil.NewMockStorage()
	tr := &testutil.MockTransport{}
	return NewManager(store, tr, nil, max), store, tr
}

func stage(store *testutil.MockStorage, id, name, mimeType string) models.FileHandle {
	return store.AddFile(id, name, mimeType, []byte(name)).Handle()
}

func age(m *Manager, id string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.widgets[id].LastAccessed = time.Now().Add(-d)
}

func TestManager_MountAndGet(t *testing.T) {
	m, _, _ := newTestManager(t, 0)

	w := m.Mount()
	require.NotNil(t, w)
	assert.Equal(t, 1, m.Count())

	got, ok := m.Get(w.ID())
	require.True(t, ok)
	assert.Same(t, w, got)

	_, ok = m.Get("missing")
	assert.False(t, ok)
	assert.False(t, m.Touch("missing"))
}

func TestManager_WidgetsAreIndependent(t *testing.T) {
	m, store, _ := newTestManager(t, 0)

	a := m.Mount()
	b := m.Mount()
	_, err := a.SelectFiles(models.SourcePicker, []models.FileHandle{stage(store, "f1", "a.png", "image/png")})
	require.NoError(t, err)

	assert.Len(t, a.Snapshot().Files, 1)
	assert.Empty(t, b.Snapshot().Files)
}

func TestManager_UnmountReleasesFiles(t *testing.T) {
	m, store, _ := newTestManager(t, 0)

	w := m.Mount()
	_, err := w.SelectFiles(models.SourcePicker, []models.FileHandle{
		stage(store, "f1", "a.png", "image/png"),
		stage(store, "f2", "b.png", "image/png"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, store.GetFileCount())

	require.NoError(t, m.Unmount(w.ID()))
	assert.Equal(t, 0, store.GetFileCount())
	assert.Equal(t, 0, m.Count())

	assert.ErrorIs(t, m.Unmount(w.ID()), ErrNotFound)
}

func TestManager_UnmountDuringUploadReleasesAfterSettle(t *testing.T) {
	store := testutil.NewMockStorage()
	gate := make(chan struct{})
	m := NewManager(store, &testutil.MockTransport{Gate: gate}, nil, 0)

	w := m.Mount()
	_, err := w.SelectFiles(models.SourcePicker, []models.FileHandle{stage(store, "f1", "a.png", "image/png")})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Upload(context.Background()) }()
	require.Eventually(t, func() bool {
		return w.Snapshot().Phase == models.PhaseUploading
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Unmount(w.ID()))
	assert.True(t, store.HasFile("f1"), "file is still being uploaded")

	close(gate)
	require.NoError(t, <-done)
	assert.False(t, store.HasFile("f1"))
}

func TestManager_CleanupOldSessions(t *testing.T) {
	m, store, _ := newTestManager(t, 0)

	fresh := m.Mount()
	stale := m.Mount()
	_, err := stale.SelectFiles(models.SourcePicker, []models.FileHandle{stage(store, "f1", "a.png", "image/png")})
	require.NoError(t, err)

	age(m, stale.ID(), time.Hour)

	removed := m.CleanupOldSessions(30 * time.Minute)
	assert.Equal(t, 1, removed)

	_, ok := m.Get(fresh.ID())
	assert.True(t, ok)
	_, ok = m.Get(stale.ID())
	assert.False(t, ok)
	assert.False(t, store.HasFile("f1"))
}

func TestManager_CleanupKeepsUploadingWidgets(t *testing.T) {
	store := testutil.NewMockStorage()
	gate := make(chan struct{})
	defer close(gate)
	m := NewManager(store, &testutil.MockTransport{Gate: gate}, nil, 0)

	w := m.Mount()
	_, _ = w.SelectFiles(models.SourcePicker, []models.FileHandle{stage(store, "f1", "a.png", "image/png")})
	go w.Upload(context.Background())
	require.Eventually(t, func() bool {
		return w.Snapshot().Phase == models.PhaseUploading
	}, time.Second, 5*time.Millisecond)

	age(m, w.ID(), time.Hour)
	assert.Equal(t, 0, m.CleanupOldSessions(time.Minute))
	assert.Equal(t, 1, m.Count())
}

func TestManager_EvictsLeastRecentlyUsed(t *testing.T) {
	m, _, _ := newTestManager(t, 2)

	first := m.Mount()
	second := m.Mount()
	age(m, first.ID(), 10*time.Minute)
	age(m, second.ID(), time.Minute)

	third := m.Mount()
	assert.Equal(t, 2, m.Count())

	_, ok := m.Get(first.ID())
	assert.False(t, ok)
	_, ok = m.Get(second.ID())
	assert.True(t, ok)
	_, ok = m.Get(third.ID())
	assert.True(t, ok)
}
