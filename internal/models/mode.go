package models

import (
	"encoding/json"
	"fmt"
)

// ModeKind identifies the retrieval strategy of a QueryMode
type ModeKind string

const (
	ModePopular ModeKind = "POPULAR"
	ModeSearch  ModeKind = "SEARCH"
)

// QueryMode is either the popular listing or a text search
type QueryMode struct {
	kind  ModeKind
	query string
}

// PopularMode returns the popular listing mode
func PopularMode() QueryMode {
	return QueryMode{kind: ModePopular}
}

// SearchMode returns a text search mode for query
func SearchMode(query string) QueryMode {
	return QueryMode{kind: ModeSearch, query: query}
}

// Kind returns the mode kind. The zero QueryMode is Popular.
func (m QueryMode) Kind() ModeKind {
	if m.kind == "" {
		return ModePopular
	}
	return m.kind
}

// IsPopular reports whether m is the popular listing
func (m QueryMode) IsPopular() bool {
	return m.Kind() == ModePopular
}

// Query returns the search text, empty for the popular listing
func (m QueryMode) Query() string {
	return m.query
}

// String returns a readable representation used in logs
func (m QueryMode) String() string {
	if m.IsPopular() {
		return "popular"
	}
	return fmt.Sprintf("search(%q)", m.query)
}

// MarshalJSON encodes the mode as {"kind":...,"query":...}
func (m QueryMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  ModeKind `json:"kind"`
		Query string   `json:"query,omitempty"`
	}{
		Kind:  m.Kind(),
		Query: m.query,
	})
}

// Equal reports whether m and other select the same listing
func (m QueryMode) Equal(other QueryMode) bool {
	return m.Kind() == other.Kind() && m.query == other.query
}
