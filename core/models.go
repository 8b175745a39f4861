package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored entities.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Candidate is a lightweight reference to a document surfaced by a search
// backend. It carries a relevance score and an excerpt, never the full body.
type Candidate struct {
	ID           string  `json:"page_id"`
	Title        string  `json:"title"`
	Excerpt      string  `json:"matched_content"`
	URL          string  `json:"page_url"`
	LastModified string  `json:"lastModified"`
	Score        float64 `json:"match_score"`
}

// HasID reports whether the candidate carries a document identifier.
// Vector hits whose title lacks the "<id>_" prefix have none.
func (c Candidate) HasID() bool {
	return c.ID != ""
}

// ContentEntry is the fully fetched body of a candidate.
type ContentEntry struct {
	ID          string `json:"page_id"`
	Title       string `json:"title"`
	FullContent string `json:"page_content"`
	URL         string `json:"page_url,omitempty"`
}

// IsEmpty reports whether the entry holds no fetched content.
func (e ContentEntry) IsEmpty() bool {
	return e.FullContent == ""
}

// Usage records model consumption for one or more calls.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"total_cost"`
}

// Add returns the element-wise sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
		Cost:         u.Cost + other.Cost,
	}
}

// IsZero reports whether no consumption has been recorded.
func (u Usage) IsZero() bool {
	return u == Usage{}
}

// Document is a page held in the local document store.
// It is enriched with an embedding vector during ingestion.
type Document struct {
	Id         ID
	PageID     string    // Backend page identifier, e.g. a Confluence page id
	Title      string
	Contents   string
	URL        string
	Vector     []float32 // Embedding vector for semantic search (populated by processors)
	InsertedAt time.Time // When the document was inserted into the store
	UpdatedAt  time.Time // When the document was last updated
}

// SourceTitle renders the "<page_id>_<title>" name used by vector hits.
func (d *Document) SourceTitle() string {
	if d.PageID == "" {
		return d.Title
	}
	return d.PageID + "_" + d.Title
}

// Key returns the content used to derive the document's storage ID.
func (d *Document) Key() string {
	if d.PageID != "" {
		return d.PageID
	}
	return d.Title
}

// SimilarityMatch represents a document match from vector similarity search.
type SimilarityMatch struct {
	DocumentId ID
	Score      float32
}

// SearchResult represents a search result with the full document and relevance score.
type SearchResult struct {
	Document *Document
	Score    float32
}
