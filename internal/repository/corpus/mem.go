package corpus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mizan-legal/mizan/internal/domain"
)

// Mem is an in-memory corpus accessor for tests and single-shot CLI runs.
type Mem struct {
	mu       sync.RWMutex
	passages map[int64]domain.Passage
	metas    map[int64]domain.Metadata
	snapshot []byte
}

// NewMem creates an empty in-memory corpus.
func NewMem() *Mem {
	return &Mem{
		passages: make(map[int64]domain.Passage),
		metas:    make(map[int64]domain.Metadata),
	}
}

// Put stores one passage with its metadata.
func (m *Mem) Put(_ context.Context, p *domain.Passage, meta *domain.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passages[p.ID] = *p
	if meta != nil {
		m.metas[p.ID] = *meta
	}
	return nil
}

// PutMulti stores multiple passages.
func (m *Mem) PutMulti(ctx context.Context, passages []domain.Passage, metas []domain.Metadata) error {
	if len(passages) != len(metas) {
		return fmt.Errorf("passages and metadata length mismatch: %d vs %d", len(passages), len(metas))
	}
	for i := range passages {
		if err := m.Put(ctx, &passages[i], &metas[i]); err != nil {
			return err
		}
	}
	return nil
}

// ListEmbedded returns all passages matching the filter, ordered by id.
func (m *Mem) ListEmbedded(_ context.Context, filter domain.Filter) ([]domain.Passage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Passage, 0, len(m.passages))
	for id, p := range m.passages {
		meta := m.metas[id]
		if !filter.Matches(p.SourceRef, meta.Jurisdiction) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetPassages fetches the given passages, skipping missing ids.
func (m *Mem) GetPassages(_ context.Context, ids []int64) ([]domain.Passage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Passage, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.passages[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// SaveIndexSnapshot keeps the serialized index for the process lifetime.
func (m *Mem) SaveIndexSnapshot(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = append([]byte(nil), data...)
	return nil
}

// LoadIndexSnapshot returns the kept index snapshot, or nil when none exists.
func (m *Mem) LoadIndexSnapshot(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot == nil {
		return nil, nil
	}
	return append([]byte(nil), m.snapshot...), nil
}

// DropIndexSnapshot removes the kept index snapshot.
func (m *Mem) DropIndexSnapshot(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = nil
	return nil
}

// GetMetadata returns the enrichment record for a passage.
func (m *Mem) GetMetadata(_ context.Context, id int64) (domain.Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if meta, ok := m.metas[id]; ok {
		return meta, nil
	}
	if _, ok := m.passages[id]; ok {
		return domain.Metadata{PassageID: id}, nil
	}
	return domain.Metadata{}, fmt.Errorf("passage %d: %w", id, domain.ErrPassageNotFound)
}

// Len returns the number of stored passages.
func (m *Mem) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.passages)
}
