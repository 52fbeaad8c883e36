// Package record defines the units of discovery and the provider contract
// shared by every source of records.
package record

import "iter"

// Record is a discovered, path-addressable unit. Source is its identity:
// two records with the same Source are treated as the same record.
type Record interface {
	Source() string
}

// Leaf is a record backed by a single resource whose content can be fetched.
type Leaf interface {
	Record
	// Content returns the resource as text. It reports false when the
	// content cannot be produced for any reason; it never panics or errors.
	Content() (string, bool)
}

// Container is a record that expands into further records.
type Container interface {
	Record
	// Records lists the immediate children. Every call produces a fresh
	// sequence; the sequence is finite and must not be cached by callers.
	Records() iter.Seq[Record]
}

// Provider turns raw sources into records and finds the records that an
// existing record refers to.
type Provider interface {
	// Claim returns a record for source when the provider can handle it.
	Claim(source string) (Record, bool)
	// Discover yields the records referenced by r. Providers that do not
	// understand r yield nothing.
	Discover(r Record) iter.Seq[Record]
}

// Empty is a sequence that yields nothing.
func Empty(yield func(Record) bool) {}
