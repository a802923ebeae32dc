package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"3f2a9c1e-7b4d-4e21-9a0f-1c2d3e4f5a6b", "3f2a9c1e"},
		{"12345678", "12345678"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShortID(tt.id))
	}
}

func TestWidgetSnapshot_FileNames(t *testing.T) {
	snap := WidgetSnapshot{Files: []FileHandle{{Name: "a.png"}, {Name: "b.jpeg"}}}
	assert.Equal(t, []string{"a.png", "b.jpeg"}, snap.FileNames())
	assert.Equal(t, []string{}, WidgetSnapshot{}.FileNames())
}
