// Package history keeps the most recent finalized sentences of a device.
package history

import (
	"sync"
	"time"

	"handspeak/core"
)

// DefaultCapacity is how many sentences a Log keeps.
const DefaultCapacity = 5

// Entry is one finalized sentence. Original is the key.
type Entry struct {
	Original  string    `json:"original" yaml:"original" msgpack:"original"`
	Corrected string    `json:"corrected" yaml:"corrected" msgpack:"corrected"`
	Enhanced  string    `json:"enhanced" yaml:"enhanced" msgpack:"enhanced"`
	Tone      core.Tone `json:"tone" yaml:"tone" msgpack:"tone"`
	Fallback  bool      `json:"fallback,omitempty" yaml:"fallback,omitempty" msgpack:"fallback"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at" msgpack:"updated_at"`
}

// EntryFromEnhancement builds the history record for a finalized sentence.
func EntryFromEnhancement(e core.Enhancement, at time.Time) Entry {
	return Entry{
		Original:  e.Original,
		Corrected: e.GrammarCorrected,
		Enhanced:  e.ToneAdjusted,
		Tone:      e.Tone,
		Fallback:  e.Fallback,
		UpdatedAt: at,
	}
}

// Log is a most-recent-first list with unique originals and bounded length.
type Log struct {
	mu       sync.RWMutex
	capacity int
	entries  []Entry
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity, entries: make([]Entry, 0, capacity)}
}

// Push inserts e at the front. An entry with the same original is replaced
// and moved to the front; the oldest entry is evicted past capacity.
// It returns a snapshot of the log after the update.
func (l *Log) Push(e Entry) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.entries {
		if l.entries[i].Original == e.Original {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			break
		}
	}
	l.entries = append(l.entries, Entry{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = e
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
	return l.snapshot()
}

// Restore replaces the log contents, keeping the first occurrence of each
// original and at most capacity entries.
func (l *Log) Restore(entries []Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]struct{}, len(entries))
	l.entries = l.entries[:0]
	for _, e := range entries {
		if _, dup := seen[e.Original]; dup {
			continue
		}
		seen[e.Original] = struct{}{}
		l.entries = append(l.entries, e)
		if len(l.entries) == l.capacity {
			break
		}
	}
}

// Entries returns a copy, most recent first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot()
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Log) Capacity() int { return l.capacity }

func (l *Log) snapshot() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
