// Package domain holds the persisted shapes shared by the store, the
// library and the sync client.
package domain

import "time"

// BookRecord is the durable form of a book.
type BookRecord struct {
	Title         string `json:"title"`
	Creator       string `json:"creator"`
	Language      string `json:"language"`
	Identifier    string `json:"identifier,omitempty"`
	LastReadIndex int    `json:"last_read_index"`
	TotalIndex    int    `json:"total_index"`
	// UpdatedAt is the last position change in unix milliseconds.
	UpdatedAt int64 `json:"updated_at"`
	// AddedAt orders the collection.
	AddedAt  int64  `json:"added_at"`
	Checksum string `json:"checksum,omitempty"`

	// File holds the raw archive bytes. It is stored separately from the
	// record body.
	File []byte `json:"-"`
}

// Progress returns the fraction of paragraphs read, in [0, 1].
func (r *BookRecord) Progress() float64 {
	total := r.TotalIndex
	if total < 1 {
		total = 1
	}
	p := float64(r.LastReadIndex) / float64(total)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

// Item pairs a record with its store key.
type Item struct {
	Key   string
	Value BookRecord
}

// NowMillis returns the current time in unix milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
