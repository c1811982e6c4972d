package question

import "context"

// Static serves a fixed in-memory question set. It backs the fallback path
// (a room must never fail to start because the question bank is down) and
// doubles as a deterministic fixture for tests.
type Static struct {
	questions []Question
}

func NewStatic(questions []Question) *Static {
	return &Static{questions: questions}
}

// Fetch returns up to f.Count matching questions, in declaration order.
func (s *Static) Fetch(_ context.Context, f Filter) ([]Question, error) {
	out := make([]Question, 0, f.Count)
	for _, q := range s.questions {
		if f.Category != "" && q.Category != f.Category {
			continue
		}
		if f.Difficulty != "" && q.Difficulty != f.Difficulty {
			continue
		}
		out = append(out, q)
		if f.Count > 0 && len(out) == f.Count {
			break
		}
	}
	return out, nil
}

// DefaultSet is the built-in fallback used when the question bank is
// unreachable or returns nothing.
func DefaultSet() *Static {
	return NewStatic([]Question{
		{
			ID:           "fallback-1",
			Text:         "What is the capital of France?",
			Options:      []string{"London", "Paris", "Berlin", "Madrid"},
			CorrectIndex: 1,
			Category:     "general",
			Difficulty:   "easy",
		},
		{
			ID:           "fallback-2",
			Text:         "How many continents are there?",
			Options:      []string{"5", "6", "7", "8"},
			CorrectIndex: 2,
			Category:     "general",
			Difficulty:   "easy",
		},
		{
			ID:           "fallback-3",
			Text:         "What is 12 x 12?",
			Options:      []string{"124", "144", "142", "164"},
			CorrectIndex: 1,
			Category:     "math",
			Difficulty:   "easy",
		},
		{
			ID:           "fallback-4",
			Text:         "Which planet is known as the Red Planet?",
			Options:      []string{"Venus", "Jupiter", "Mars", "Saturn"},
			CorrectIndex: 2,
			Category:     "science",
			Difficulty:   "easy",
		},
		{
			ID:           "fallback-5",
			Text:         "What is the largest ocean on Earth?",
			Options:      []string{"Atlantic", "Indian", "Arctic", "Pacific"},
			CorrectIndex: 3,
			Category:     "general",
			Difficulty:   "easy",
		},
	})
}
