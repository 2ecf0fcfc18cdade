// Package stream implements the ordered event channel between the
// transfer engine and the batching pipeline. Entries are flat string maps
// delivered to named consumer groups with explicit acknowledgement:
// an entry that was read but never acked is redelivered on the next read,
// giving at-least-once, in-order delivery within the process. A durable
// broker satisfies the same contract in a deployed system.
package stream

import (
	"sort"
	"sync"
)

// Entry is one message on the stream.
type Entry struct {
	ID     uint64
	Values map[string]string
}

// Stream is an append-only in-process event log with consumer groups.
type Stream struct {
	mu      sync.Mutex
	entries []Entry
	nextID  uint64
	groups  map[string]*group
}

// group tracks a consumer group's position and unacknowledged entries.
type group struct {
	cursor  int
	pending map[uint64]int
}

// New constructs an empty stream.
func New() *Stream {
	return &Stream{
		nextID: 1,
		groups: make(map[string]*group),
	}
}

// Add appends an entry to the stream and returns its id.
func (s *Stream) Add(values map[string]string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.entries = append(s.entries, Entry{ID: id, Values: values})

	return id
}

// Read delivers up to count entries to the consumer group: entries that
// were delivered before but never acknowledged come first, followed by new
// entries. Order always follows the append order.
func (s *Stream) Read(groupName string, count int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.group(groupName)

	ids := make([]uint64, 0, len(g.pending))
	for id := range g.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []Entry
	for _, id := range ids {
		if len(out) == count {
			return out
		}
		out = append(out, s.entries[g.pending[id]])
	}

	for g.cursor < len(s.entries) && len(out) < count {
		entry := s.entries[g.cursor]
		g.pending[entry.ID] = g.cursor
		g.cursor++
		out = append(out, entry)
	}

	return out
}

// Ack acknowledges an entry for the consumer group so it is never
// redelivered.
func (s *Stream) Ack(groupName string, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.group(groupName).pending, id)
}

// Len returns the total number of entries ever added.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// PendingCount returns the number of delivered-but-unacked entries for
// the consumer group.
func (s *Stream) PendingCount(groupName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.group(groupName).pending)
}

func (s *Stream) group(name string) *group {
	g, exists := s.groups[name]
	if !exists {
		g = &group{pending: make(map[uint64]int)}
		s.groups[name] = g
	}
	return g
}
