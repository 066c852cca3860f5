package usecase

import (
	"sync"

	"sitespeak/internal/domain"
)

// TranscriptStore is the append-only conversation log. Entries are never
// mutated or deleted; readers get a copy.
type TranscriptStore struct {
	mu      sync.Mutex
	entries []domain.MessageEntry
}

func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{}
}

func (s *TranscriptStore) Append(entry domain.MessageEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

// Snapshot returns a copy of the transcript in insertion order.
func (s *TranscriptStore) Snapshot() []domain.MessageEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MessageEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
