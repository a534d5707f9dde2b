package corpus

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/mizan-legal/mizan/internal/domain"
)

// Hash field names for a stored passage.
const (
	fieldContent      = "__content"
	fieldVector       = "__vector"
	fieldSourceRef    = "__source_ref"
	fieldVerified     = "__verified"
	fieldCreatedAt    = "__created_at"
	fieldLawName      = "law_name"
	fieldArticleNo    = "article_no"
	fieldJurisdiction = "jurisdiction"
)

// buildHashFields flattens a passage and its metadata into a hash map.
func buildHashFields(p *domain.Passage, meta *domain.Metadata) map[string]string {
	m := map[string]string{
		fieldContent:   p.Content,
		fieldVector:    vectorToBytes(p.Embedding),
		fieldSourceRef: p.SourceRef,
		fieldVerified:  strconv.FormatBool(p.Verified),
		fieldCreatedAt: strconv.FormatInt(p.CreatedAt.Unix(), 10),
	}
	if meta != nil {
		m[fieldLawName] = meta.LawName
		m[fieldArticleNo] = meta.ArticleNo
		m[fieldJurisdiction] = meta.Jurisdiction
	}
	return m
}

// parseHashFields rebuilds a passage from a hash map. A malformed vector is
// reported so the caller can skip the passage without failing the query.
func parseHashFields(id int64, m map[string]string) (domain.Passage, error) {
	p := domain.Passage{ID: id, Content: m[fieldContent], SourceRef: m[fieldSourceRef]}

	if v := m[fieldVerified]; v != "" {
		p.Verified, _ = strconv.ParseBool(v)
	}
	if v := m[fieldCreatedAt]; v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.CreatedAt = time.Unix(sec, 0).UTC()
		}
	}

	vec, err := bytesToVector(m[fieldVector])
	if err != nil {
		return p, fmt.Errorf("passage %d: %w", id, err)
	}
	p.Embedding = vec
	return p, nil
}

// parseMetadata extracts the enrichment record from a hash map.
func parseMetadata(id int64, m map[string]string) domain.Metadata {
	return domain.Metadata{
		PassageID:    id,
		SourceRef:    m[fieldSourceRef],
		LawName:      m[fieldLawName],
		ArticleNo:    m[fieldArticleNo],
		Jurisdiction: m[fieldJurisdiction],
	}
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) ([]float32, error) {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("malformed embedding: %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
