package task

import (
	"fmt"
	"strings"
)

// MaxTextLength is the maximum number of characters in a task's text.
const MaxTextLength = 50

// Color names one of the sticky-note palette entries.
type Color string

const (
	Color1 Color = "color-1"
	Color2 Color = "color-2"
	Color3 Color = "color-3"
)

// Palette is the fixed rotation order for new tasks.
var Palette = [...]Color{Color1, Color2, Color3}

// NormalizeIndex maps any integer onto a valid palette index.
func NormalizeIndex(i int) int {
	n := len(Palette)
	return ((i % n) + n) % n
}

// NextIndex returns the rotation index that follows i.
func NextIndex(i int) int {
	return NormalizeIndex(i + 1)
}

// PaletteColor returns the palette entry at rotation index i.
func PaletteColor(i int) Color {
	return Palette[NormalizeIndex(i)]
}

// Task is a single sticky note as stored by the data server.
type Task struct {
	ID        int    `json:"id,omitempty"`
	Task      string `json:"task"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Completed bool   `json:"completed"`
	Color     Color  `json:"color"`
}

// IsPersisted returns true once the server has assigned an id.
func (t *Task) IsPersisted() bool {
	return t.ID > 0
}

// TruncateText cuts s to at most MaxTextLength characters.
func TruncateText(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxTextLength {
		return s
	}
	return string(runes[:MaxTextLength])
}

// SortKey selects the board ordering.
type SortKey string

const (
	SortStart    SortKey = "start"
	SortDeadline SortKey = "deadline"
	SortComplete SortKey = "complete"
)

// DefaultSortKey is the ordering used when none is configured.
const DefaultSortKey = SortStart

// SortKeys returns the sort keys in selector order.
func SortKeys() []SortKey {
	return []SortKey{SortStart, SortDeadline, SortComplete}
}

// ParseSortKey parses a user-supplied sort key.
func ParseSortKey(s string) (SortKey, error) {
	key := SortKey(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range SortKeys() {
		if key == k {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q, must be one of: start, deadline, complete", s)
}

// Field returns the server-side field name passed as _sort.
func (k SortKey) Field() string {
	if k == SortComplete {
		return "completed"
	}
	return string(k)
}

// Label returns the selector caption for k.
func (k SortKey) Label() string {
	switch k {
	case SortStart:
		return "Start"
	case SortDeadline:
		return "Deadline"
	case SortComplete:
		return "Completed"
	}
	return string(k)
}
