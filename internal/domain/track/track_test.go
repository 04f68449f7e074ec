package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Spotify URI format",
			input:    "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify URL format",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify URL with intl path and query",
			input:    "https://open.spotify.com/intl-ja/track/4uLU6hMCjMI75M1A2tKUQC?si=abc123",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Plain track ID with spaces",
			input:    "  4uLU6hMCjMI75M1A2tKUQC ",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractID(tt.input))
		})
	}
}

func TestTrack_URIAndTitle(t *testing.T) {
	tr := &Track{
		ID:       "abc",
		Name:     "Test Song",
		Artists:  []string{"Artist 1", "Artist 2"},
		Duration: 3 * time.Minute,
	}

	assert.Equal(t, "spotify:track:abc", tr.URI())
	assert.Equal(t, "Artist 1, Artist 2 - Test Song", tr.Title())

	tr.Artists = nil
	assert.Equal(t, "Test Song", tr.Title())
}
