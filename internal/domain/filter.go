package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Filter restricts a search to a source and/or jurisdiction. The zero value
// matches everything.
type Filter struct {
	SourceID     int64
	Jurisdiction string
}

// IsEmpty reports whether the filter matches everything.
func (f Filter) IsEmpty() bool {
	return f.SourceID == 0 && f.Jurisdiction == ""
}

// Validate checks the filter for values the corpus accessor cannot interpret.
func (f Filter) Validate() error {
	if f.SourceID < 0 {
		return fmt.Errorf("%w: source id must be positive, got %d", ErrInvalidFilter, f.SourceID)
	}
	if strings.ContainsAny(f.Jurisdiction, "\n\r\t") {
		return fmt.Errorf("%w: jurisdiction contains control characters", ErrInvalidFilter)
	}
	return nil
}

// Matches reports whether a passage with the given source ref and
// jurisdiction satisfies the filter. Corpus accessors call this when listing.
func (f Filter) Matches(sourceRef, jurisdiction string) bool {
	if f.SourceID != 0 && sourceRef != SourceRef(f.SourceID) {
		return false
	}
	if f.Jurisdiction != "" && !strings.EqualFold(jurisdiction, f.Jurisdiction) {
		return false
	}
	return true
}

// Key returns a canonical cache-key fragment for the filter.
func (f Filter) Key() string {
	if f.IsEmpty() {
		return ""
	}
	return strconv.FormatInt(f.SourceID, 10) + "|" + strings.ToLower(f.Jurisdiction)
}

// SourceRef builds the canonical source reference for a source id.
func SourceRef(sourceID int64) string {
	return "source:" + strconv.FormatInt(sourceID, 10)
}
