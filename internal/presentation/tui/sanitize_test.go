package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Plain", "hello\tworld\n", "hello\tworld\n"},
		{"ANSI Escape", "\x1b[31mred\x1b[0m", "[31mred[0m"},
		{"Bell And Null", "a\x07b\x00c", "abc"},
		{"Carriage Return Kept", "50%\r100%", "50%\r100%"},
		{"Unicode", "héllo 😀", "héllo 😀"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}
