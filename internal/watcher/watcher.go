package watcher

import (
	"time"
)

// Operation is the kind of change applied to a note.
type Operation int

const (
	// OpCreate indicates a new note.
	OpCreate Operation = iota
	// OpModify indicates changed note content.
	OpModify
	// OpDelete indicates a removed note, or a removed or renamed-away
	// directory whose notes are all gone.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one change to a vault path.
type FileEvent struct {
	// Path is slash-separated and relative to the vault root.
	Path string

	Operation Operation

	// Timestamp is when the change was observed.
	Timestamp time.Time
}

// Filter decides which paths produce events. *vault.Vault satisfies it.
type Filter interface {
	// Includes reports whether rel is an indexable note.
	Includes(rel string) bool
	// Excluded reports whether the directory rel is skipped.
	Excluded(rel string) bool
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the quiet period per path before its event is emitted.
	// Default: 500ms
	DebounceWindow time.Duration

	// PollInterval is the scan interval when polling.
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the size of the batch channel buffer.
	// Default: 64
	EventBufferSize int

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 64,
	}
}

// WithDefaults returns options with defaults applied for zero values.
// A negative DebounceWindow means no debouncing.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.DebounceWindow < 0 {
		o.DebounceWindow = 0
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
