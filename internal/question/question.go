// Package question supplies quiz question content. The engine only depends
// on the Provider interface; the backing store (a libSQL question bank in
// production, a static set in tests and as fallback) is swappable.
package question

import "context"

// Question is a single multiple-choice question.
type Question struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctAnswerIndex"`
	Category     string   `json:"category,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
}

// Filter narrows which questions a Provider returns. Count is an upper
// bound; empty Category/Difficulty match everything.
type Filter struct {
	Count      int
	Category   string
	Difficulty string
}

// Provider returns up to f.Count questions matching the filter.
type Provider interface {
	Fetch(ctx context.Context, f Filter) ([]Question, error)
}
