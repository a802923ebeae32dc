package models

import "time"

// FileInfo represents metadata about a staged file.
type FileInfo struct {
	ID          string    `json:"id" msgpack:"id"`
	Name        string    `json:"name" msgpack:"name"`
	ContentType string    `json:"contentType" msgpack:"contentType"`
	Size        int64     `json:"size" msgpack:"size"`
	UploadedAt  time.Time `json:"uploadedAt" msgpack:"uploadedAt"`
	Status      string    `json:"status" msgpack:"status"` // "staged"
}

// FileHandle is one entry of a widget's file selection. The bytes live in
// storage under ID.
type FileHandle struct {
	ID       string `json:"id" msgpack:"id"`
	Name     string `json:"name" msgpack:"name"`
	MIMEType string `json:"mimeType" msgpack:"mimeType"`
	Size     int64  `json:"size" msgpack:"size"`
}

// Handle returns the selection handle for a staged file.
func (f *FileInfo) Handle() FileHandle {
	return FileHandle{
		ID:       f.ID,
		Name:     f.Name,
		MIMEType: f.ContentType,
		Size:     f.Size,
	}
}
