// Package widget holds the server-side state of an image upload widget: the
// file selection, drag state, upload progress and status line.
package widget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/image-uploader/backend/internal/models"
	"github.com/image-uploader/backend/internal/uploader"
)

var (
	// ErrNoFiles is returned by Upload when nothing is selected.
	ErrNoFiles = errors.New("no file selected")
	// ErrUploadInProgress is returned when the widget is busy uploading.
	ErrUploadInProgress = errors.New("upload already in progress")
	// ErrRejected is returned when a drop contains no allowed file type.
	ErrRejected = errors.New("no allowed file types in drop")
	// ErrClosed is returned when files arrive for an unmounted widget.
	ErrClosed = errors.New("widget closed")
)

// Transport sends the multipart upload and reports progress.
type Transport interface {
	Upload(ctx context.Context, parts []uploader.Part, progress uploader.ProgressFunc) (*uploader.Result, error)
}

// Opener gives access to the staged bytes of a selected file.
type Opener interface {
	Open(id string) (io.ReadCloser, error)
}

// Observer is called after every state change with a fresh snapshot.
// Observers run while the widget lock is held: they must not block and must
// not call back into the widget.
type Observer func(models.WidgetSnapshot)

// Widget is one mounted upload widget.
type Widget struct {
	id        string
	transport Transport
	opener    Opener
	allowed   AllowList

	mu         sync.Mutex
	phase      models.Phase
	files      []models.FileHandle
	dragActive bool
	progress   models.UploadProgress
	message    *string

	observers    map[int]Observer
	nextObserver int

	closed  bool
	release func([]models.FileHandle)
}

// New creates a widget in the idle phase. An empty allow list falls back to
// DefaultAllowedTypes.
func New(id string, transport Transport, opener Opener, allowed AllowList) *Widget {
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}
	return &Widget{
		id:        id,
		transport: transport,
		opener:    opener,
		allowed:   allowed,
		phase:     models.PhaseIdle,
		observers: make(map[int]Observer),
	}
}

// ID returns the widget ID.
func (w *Widget) ID() string {
	return w.id
}

// Snapshot returns a copy of the current state.
func (w *Widget) Snapshot() models.WidgetSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Subscribe registers an observer and returns a func that removes it.
func (w *Widget) Subscribe(fn Observer) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextObserver
	w.nextObserver++
	w.observers[id] = fn

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.observers, id)
	}
}

// SelectFiles replaces the file selection.
//
// Drop selections are filtered against the allow list; if nothing survives,
// the status line shows the rejection message, the previous selection stays
// and ErrRejected is returned. Picker selections are taken as is.
//
// The returned handles are no longer referenced by the widget (filtered out,
// rejected or replaced) and may be released by the caller.
func (w *Widget) SelectFiles(source models.Source, files []models.FileHandle) ([]models.FileHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectLocked(source, files)
}

func (w *Widget) selectLocked(source models.Source, files []models.FileHandle) ([]models.FileHandle, error) {
	if w.closed {
		return files, ErrClosed
	}
	if w.phase == models.PhaseUploading {
		return files, ErrUploadInProgress
	}

	kept := files
	var released []models.FileHandle
	if source == models.SourceDrop {
		kept, released = w.allowed.Filter(files)
		if len(kept) == 0 {
			msg := models.MessageRejected
			w.message = &msg
			w.notifyLocked()
			return files, ErrRejected
		}
	}

	released = append(released, w.files...)
	w.files = append([]models.FileHandle(nil), kept...)
	w.phase = models.PhaseSelected
	w.message = nil
	w.progress = models.UploadProgress{}
	w.notifyLocked()

	return released, nil
}

// DragEnter marks a drag hovering the dropzone.
func (w *Widget) DragEnter() {
	w.setDrag(true)
}

// DragOver keeps the drag state active while the pointer moves over the dropzone.
func (w *Widget) DragOver() {
	w.setDrag(true)
}

// DragLeave clears the drag state, but only when the pointer left the
// dropzone subtree rather than moving between its children.
func (w *Widget) DragLeave(leftZone bool) {
	if leftZone {
		w.setDrag(false)
	}
}

// Drop clears the drag state and selects the dropped files.
func (w *Widget) Drop(files []models.FileHandle) ([]models.FileHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dragActive {
		w.dragActive = false
		w.notifyLocked()
	}
	return w.selectLocked(models.SourceDrop, files)
}

func (w *Widget) setDrag(active bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dragActive == active {
		return
	}
	w.dragActive = active
	w.notifyLocked()
}

// Upload sends the current selection as a single multipart POST, with parts
// named file1..fileN in selection order. It blocks until the request settles.
func (w *Widget) Upload(ctx context.Context) error {
	p, err := w.Begin()
	if err != nil {
		return err
	}
	return p.Run(ctx)
}

// Pending is an upload that has been started but not yet sent.
type Pending struct {
	w     *Widget
	parts []uploader.Part
}

// Begin moves the widget into the uploading phase and returns the request
// to run. Nothing changes when the selection is empty or an upload is
// already in flight.
func (w *Widget) Begin() (*Pending, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.files) == 0 {
		fmt.Printf("[Widget %s] No file selected\n", models.ShortID(w.id))
		return nil, ErrNoFiles
	}
	if w.phase == models.PhaseUploading {
		fmt.Printf("[Widget %s] Upload ignored, one is already in flight\n", models.ShortID(w.id))
		return nil, ErrUploadInProgress
	}

	msg := models.MessageUploading
	w.phase = models.PhaseUploading
	w.message = &msg
	w.progress = models.UploadProgress{Started: true, Percent: 0}
	w.notifyLocked()

	return &Pending{w: w, parts: w.partsLocked()}, nil
}

// FileCount returns the number of parts in the request.
func (p *Pending) FileCount() int {
	return len(p.parts)
}

// Run issues the POST and settles the widget on success or failure. A
// panicking transport settles the widget as failed.
func (p *Pending) Run(ctx context.Context) (err error) {
	w := p.w
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Widget %s] Upload panicked: %v\n", models.ShortID(w.id), r)
			w.settle(models.PhaseFailed, models.MessageFailed)
			err = fmt.Errorf("uploading files: panic: %v", r)
		}
	}()

	fmt.Printf("[Widget %s] Uploading %d file(s)\n", models.ShortID(w.id), len(p.parts))

	res, err := w.transport.Upload(ctx, p.parts, w.reportProgress)
	if err != nil {
		fmt.Printf("[Widget %s] Upload failed: %v\n", models.ShortID(w.id), err)
		w.settle(models.PhaseFailed, models.MessageFailed)
		return fmt.Errorf("uploading files: %w", err)
	}

	fmt.Printf("[Widget %s] Upload successful (%d): %s\n", models.ShortID(w.id), res.StatusCode, string(res.Body))
	w.settle(models.PhaseDone, models.MessageSuccess)
	return nil
}

func (w *Widget) partsLocked() []uploader.Part {
	parts := make([]uploader.Part, len(w.files))
	for i, f := range w.files {
		id := f.ID
		parts[i] = uploader.Part{
			FieldName:   fmt.Sprintf("file%d", i+1),
			FileName:    f.Name,
			ContentType: f.MIMEType,
			Open: func() (io.ReadCloser, error) {
				return w.opener.Open(id)
			},
		}
	}
	return parts
}

// reportProgress recomputes the percentage from cumulative bytes. The value
// never decreases within one upload and stays within [0, 100].
func (w *Widget) reportProgress(loaded, total int64) {
	if total <= 0 {
		return
	}
	pc := Percent(loaded, total)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase != models.PhaseUploading || pc <= w.progress.Percent {
		return
	}
	w.progress.Percent = pc
	w.notifyLocked()
}

// Percent returns round(loaded/total*100) clamped to [0, 100].
func Percent(loaded, total int64) int {
	if total <= 0 {
		return 0
	}
	pc := int(math.Round(float64(loaded) / float64(total) * 100))
	if pc < 0 {
		return 0
	}
	if pc > 100 {
		return 100
	}
	return pc
}

func (w *Widget) settle(phase models.Phase, message string) {
	orphaned, release := w.finish(phase, message)
	if len(orphaned) > 0 {
		release(orphaned)
	}
}

// finish records the final phase and, for a closed widget, detaches the
// files that must be released.
func (w *Widget) finish(phase models.Phase, message string) ([]models.FileHandle, func([]models.FileHandle)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.phase = phase
	w.message = &message

	var orphaned []models.FileHandle
	if w.closed && w.release != nil {
		orphaned, w.files = w.files, nil
	}
	w.notifyLocked()

	return orphaned, w.release
}

// OnRelease sets the func that receives files a closed widget stops
// referencing once its in-flight upload settles.
func (w *Widget) OnRelease(fn func([]models.FileHandle)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.release = fn
}

// Close drops every observer and hands back the selected files so the
// caller can release them. While an upload is in flight nothing is handed
// back; the files go to the OnRelease func when the upload settles.
func (w *Widget) Close() []models.FileHandle {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	w.observers = make(map[int]Observer)
	if w.phase == models.PhaseUploading {
		return nil
	}
	files := w.files
	w.files = nil
	return files
}

func (w *Widget) snapshotLocked() models.WidgetSnapshot {
	snap := models.WidgetSnapshot{
		ID:         w.id,
		Phase:      w.phase,
		Files:      append([]models.FileHandle{}, w.files...),
		DragActive: w.dragActive,
		Progress:   w.progress,
	}
	if w.message != nil {
		msg := *w.message
		snap.Message = &msg
	}
	return snap
}

func (w *Widget) notifyLocked() {
	if len(w.observers) == 0 {
		return
	}
	snap := w.snapshotLocked()
	for _, fn := range w.observers {
		fn(snap)
	}
}
