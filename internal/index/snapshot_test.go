package index

import (
	"testing"

	"github.com/mizan-legal/mizan/internal/domain"
)

func TestSnapshotRoundTrip(t *testing.T) {
	built := Build([]domain.Passage{
		{ID: 1, Embedding: []float32{1, 0, 0}},
		{ID: 2, Embedding: []float32{0, 1, 0}},
		{ID: 3, Embedding: []float32{0.6, 0.8, 0}},
	})

	restored, err := FromSnapshot(built.Snapshot())
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}
	if restored.Len() != built.Len() || restored.Dim() != built.Dim() {
		t.Fatalf("restored %d/%d, want %d/%d",
			restored.Len(), restored.Dim(), built.Len(), built.Dim())
	}

	query := []float32{0, 1, 0}
	want, err := built.Search(query, 3)
	if err != nil {
		t.Fatalf("Search built: %v", err)
	}
	got, err := restored.Search(query, 3)
	if err != nil {
		t.Fatalf("Search restored: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("restored returned %d hits, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].PassageID != want[i].PassageID || got[i].Score != want[i].Score {
			t.Errorf("hit %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSnapshotEmptyIndex(t *testing.T) {
	restored, err := FromSnapshot(Build(nil).Snapshot())
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}
	if restored.Len() != 0 {
		t.Errorf("restored empty index has %d entries", restored.Len())
	}
}

func TestFromSnapshotRejectsMalformed(t *testing.T) {
	valid := Build([]domain.Passage{{ID: 1, Embedding: []float32{1, 0}}}).Snapshot()

	cases := map[string][]byte{
		"empty":       nil,
		"truncated":   valid[:len(valid)-3],
		"bad version": append([]byte{99}, valid[1:]...),
	}
	for name, data := range cases {
		if _, err := FromSnapshot(data); err == nil {
			t.Errorf("%s snapshot accepted", name)
		}
	}
}
