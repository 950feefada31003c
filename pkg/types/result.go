package types

import (
	"encoding/json"
	"fmt"
)

// VectorHit is one point returned by the vector index
type VectorHit struct {
	ID      json.RawMessage            // Point ID (integer or UUID)
	Score   float64                    // Similarity score, already >= the score threshold
	Payload map[string]json.RawMessage // Stored payload
	Vector  []float32                  // Stored vector, when requested
}

// SourceText extracts the payload field as a string
func (h VectorHit) SourceText(field string) (string, error) {
	raw, ok := h.Payload[field]
	if !ok {
		return "", &PayloadFieldError{Field: field, Reason: "missing from payload"}
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", &PayloadFieldError{Field: field, Reason: fmt.Sprintf("not a string (%s)", truncate(string(raw), 40))}
	}
	return text, nil
}

// SourceTexts extracts the payload field of every hit, in hit order.
// A hit lacking the field, or holding a non-string value, fails the whole call.
func SourceTexts(hits []VectorHit, field string) ([]string, error) {
	texts := make([]string, 0, len(hits))
	for _, hit := range hits {
		text, err := hit.SourceText(field)
		if err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// KeywordHit is one row returned by the full-text store
type KeywordHit struct {
	ID      int64
	Title   string
	Content string
}

// SourceText returns the row content
func (h KeywordHit) SourceText() string {
	return h.Content
}

// Document is a row to be ingested into a local full-text corpus
type Document struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Validate checks if the document can be indexed
func (d Document) Validate() error {
	if d.Content == "" {
		return ErrEmptyContent
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
