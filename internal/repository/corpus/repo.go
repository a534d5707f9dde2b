// Package corpus stores embedded legal passages and their enrichment
// metadata. The retrieval core consumes it through the accessor contract and
// never writes; the ingest command owns the write side.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mizan-legal/mizan/internal/db"
	"github.com/mizan-legal/mizan/internal/domain"
)

// store is the consumer interface for passages and the index snapshot (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo is the Redis/Valkey-backed corpus accessor.
type Repo struct {
	store     store
	keyPrefix string
	logger    *zap.Logger
}

// New creates a corpus repository.
func New(s store, keyPrefix string, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{store: s, keyPrefix: keyPrefix, logger: logger}
}

// Put stores one passage with its metadata.
func (r *Repo) Put(ctx context.Context, p *domain.Passage, meta *domain.Metadata) error {
	if err := r.store.HSet(ctx, r.passageKey(p.ID), buildHashFields(p, meta)); err != nil {
		return fmt.Errorf("store passage %d: %w", p.ID, err)
	}
	return nil
}

// PutMulti stores multiple passages in one round-trip.
func (r *Repo) PutMulti(ctx context.Context, passages []domain.Passage, metas []domain.Metadata) error {
	if len(passages) != len(metas) {
		return fmt.Errorf("passages and metadata length mismatch: %d vs %d", len(passages), len(metas))
	}
	items := make([]db.HashSetItem, len(passages))
	for i := range passages {
		items[i] = db.HashSetItem{
			Key:    r.passageKey(passages[i].ID),
			Fields: buildHashFields(&passages[i], &metas[i]),
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("store %d passages: %w", len(passages), err)
	}
	return nil
}

// ListEmbedded returns all passages matching the filter, ordered by id.
// Passages with malformed stored vectors are skipped with a warning; one bad
// record must not fail a whole query.
func (r *Repo) ListEmbedded(ctx context.Context, filter domain.Filter) ([]domain.Passage, error) {
	keys, err := r.store.Scan(ctx, r.keyPrefix+"passage:*")
	if err != nil {
		return nil, fmt.Errorf("scan passages: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch passages: %w", err)
	}

	passages := make([]domain.Passage, 0, len(maps))
	for i, m := range maps {
		id, err := r.passageID(keys[i])
		if err != nil {
			r.logger.Warn("Skipping passage with malformed key", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		if !filter.Matches(m[fieldSourceRef], m[fieldJurisdiction]) {
			continue
		}
		p, err := parseHashFields(id, m)
		if err != nil {
			r.logger.Warn("Skipping passage with malformed embedding", zap.Int64("id", id), zap.Error(err))
			continue
		}
		passages = append(passages, p)
	}

	// SCAN order is unspecified; id order keeps downstream tie-breaks stable.
	sort.Slice(passages, func(i, j int) bool { return passages[i].ID < passages[j].ID })
	return passages, nil
}

// GetPassages fetches the given passages in one pipelined round-trip. Missing
// ids and malformed records are skipped with a warning, matching ListEmbedded.
func (r *Repo) GetPassages(ctx context.Context, ids []int64) ([]domain.Passage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.passageKey(id)
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch %d passages: %w", len(ids), err)
	}

	passages := make([]domain.Passage, 0, len(ids))
	for i, m := range maps {
		if len(m) == 0 {
			r.logger.Warn("Skipping missing passage", zap.Int64("id", ids[i]))
			continue
		}
		p, err := parseHashFields(ids[i], m)
		if err != nil {
			r.logger.Warn("Skipping passage with malformed embedding", zap.Int64("id", ids[i]), zap.Error(err))
			continue
		}
		passages = append(passages, p)
	}
	return passages, nil
}

// GetMetadata returns the enrichment record for a passage.
func (r *Repo) GetMetadata(ctx context.Context, id int64) (domain.Metadata, error) {
	m, err := r.store.HGetAll(ctx, r.passageKey(id))
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("fetch metadata %d: %w", id, err)
	}
	if len(m) == 0 {
		return domain.Metadata{}, fmt.Errorf("passage %d: %w", id, domain.ErrPassageNotFound)
	}
	return parseMetadata(id, m), nil
}

// SaveIndexSnapshot persists a serialized fast-path index so later processes
// can restore it without a full rebuild.
func (r *Repo) SaveIndexSnapshot(ctx context.Context, data []byte) error {
	if err := r.store.Set(ctx, r.snapshotKey(), data); err != nil {
		return fmt.Errorf("save index snapshot: %w", err)
	}
	return nil
}

// LoadIndexSnapshot returns the persisted index snapshot, or nil when none
// has been saved.
func (r *Repo) LoadIndexSnapshot(ctx context.Context) ([]byte, error) {
	data, err := r.store.Get(ctx, r.snapshotKey())
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load index snapshot: %w", err)
	}
	return data, nil
}

// DropIndexSnapshot removes the persisted index snapshot.
func (r *Repo) DropIndexSnapshot(ctx context.Context) error {
	if err := r.store.Del(ctx, r.snapshotKey()); err != nil {
		return fmt.Errorf("drop index snapshot: %w", err)
	}
	return nil
}

func (r *Repo) snapshotKey() string {
	return r.keyPrefix + "index:snapshot"
}

func (r *Repo) passageKey(id int64) string {
	return r.keyPrefix + "passage:" + strconv.FormatInt(id, 10)
}

func (r *Repo) passageID(key string) (int64, error) {
	raw := strings.TrimPrefix(key, r.keyPrefix+"passage:")
	return strconv.ParseInt(raw, 10, 64)
}
