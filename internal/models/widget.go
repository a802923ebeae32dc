package models

// Phase is the upload lifecycle phase of a widget.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSelected  Phase = "selected"
	PhaseUploading Phase = "uploading"
	PhaseDone      Phase = "done"
	PhaseFailed    Phase = "failed"
)

// Source identifies where a file selection came from.
type Source string

const (
	SourcePicker Source = "picker"
	SourceDrop   Source = "drop"
)

// ParseSource maps a query value to a Source.
func ParseSource(s string) (Source, bool) {
	switch Source(s) {
	case SourcePicker, SourceDrop:
		return Source(s), true
	}
	return "", false
}

// Status messages shown on the widget's status line.
const (
	MessageUploading = "Uploading..."
	MessageSuccess   = "Upload successful"
	MessageFailed    = "Upload failed"
	MessageRejected  = "Only .png and .jpeg files are allowed"
)

// UploadProgress tracks a single upload cycle.
type UploadProgress struct {
	Started bool `json:"started" msgpack:"started"`
	Percent int  `json:"percent" msgpack:"percent"` // 0-100
}

// WidgetSnapshot is a point-in-time copy of a widget's state, used for rendering.
type WidgetSnapshot struct {
	ID         string         `json:"id" msgpack:"id"`
	Phase      Phase          `json:"phase" msgpack:"phase"`
	Files      []FileHandle   `json:"files" msgpack:"files"`
	DragActive bool           `json:"dragActive" msgpack:"dragActive"`
	Progress   UploadProgress `json:"progress" msgpack:"progress"`
	Message    *string        `json:"message" msgpack:"message"`
}

// FileNames returns the names of the selected files in selection order.
func (s WidgetSnapshot) FileNames() []string {
	names := make([]string, len(s.Files))
	for i, f := range s.Files {
		names[i] = f.Name
	}
	return names
}

// ShortID returns the first 8 characters of an ID for log lines.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
