package tracker

import (
	"strings"

	"github.com/tallybot/app/internal/storage"
	"golang.org/x/text/unicode/norm"
)

// Marker is a recognized status token found in a reply.
type Marker int

const (
	MarkerNone Marker = iota
	MarkerCompleted
	MarkerFailed
)

const (
	// MarkerCompletedEmoji marks a task as done.
	MarkerCompletedEmoji = "✅"
	// MarkerFailedEmoji marks a task as failed.
	MarkerFailedEmoji = "❌"
)

// ClassifyMarker scans free-form reply text for a status marker. The text
// is NFC-normalized first so composed emoji variants still match. When a
// message somehow carries both markers, completed wins.
func ClassifyMarker(text string) Marker {
	normalized := norm.NFC.String(text)
	if strings.Contains(normalized, MarkerCompletedEmoji) {
		return MarkerCompleted
	}
	if strings.Contains(normalized, MarkerFailedEmoji) {
		return MarkerFailed
	}
	return MarkerNone
}

// Status maps a marker onto the stored task status.
func (m Marker) Status() string {
	switch m {
	case MarkerCompleted:
		return storage.TaskStatusCompleted
	case MarkerFailed:
		return storage.TaskStatusFailed
	default:
		return ""
	}
}

// Emoji returns the reaction emoji used to acknowledge the marker.
func (m Marker) Emoji() string {
	switch m {
	case MarkerCompleted:
		return "👍"
	case MarkerFailed:
		return "😢"
	default:
		return ""
	}
}
