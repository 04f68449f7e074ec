// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"
)

// Track represents the media currently loaded in a remote player.
type Track struct {
	ID          string        // Spotify Track ID
	Name        string        // Track name
	Artists     []string      // Artist names
	Album       string        // Album name
	AlbumArtURL string        // Album art URL
	Duration    time.Duration // Track duration
	URL         string        // Spotify URL
}

// URI returns the Spotify URI of the track.
func (t *Track) URI() string {
	return URIFromID(t.ID)
}

// Title returns "Artist1, Artist2 - Name", or Name without artists.
func (t *Track) Title() string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return strings.Join(t.Artists, ", ") + " - " + t.Name
}

// URIFromID returns the Spotify URI for a track ID.
func URIFromID(id string) string {
	return "spotify:track:" + id
}

// ExtractID extracts the track ID from a Spotify track URL or URI.
func ExtractID(input string) string {
	input = strings.TrimSpace(input)
	// Handle Spotify URI format: spotify:track:TRACK_ID
	if strings.HasPrefix(input, "spotify:track:") {
		return strings.TrimPrefix(input, "spotify:track:")
	}

	// Handle URL format: https://open.spotify.com/track/TRACK_ID or https://open.spotify.com/intl-XX/track/TRACK_ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/track/") {
		parts := strings.Split(input, "/track/")
		if len(parts) >= 2 {
			id := strings.Split(parts[len(parts)-1], "?")[0]
			id = strings.TrimRight(id, "/")
			return id
		}
	}

	// Assume it's already a track ID
	return input
}
