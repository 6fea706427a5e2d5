package search

import (
	"math"
	"sort"
	"time"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/message"
)

// Weights balances the three score components.
type Weights struct {
	TF              float64
	Recency         float64
	Engagement      float64
	RecencyHalfLife time.Duration
}

// DefaultWeights favour term relevance, then freshness, then engagement.
func DefaultWeights() Weights {
	return Weights{
		TF:              1.0,
		Recency:         0.5,
		Engagement:      0.2,
		RecencyHalfLife: 30 * 24 * time.Hour,
	}
}

// Scored is a candidate with its computed score.
type Scored struct {
	Candidate message.Candidate
	Score     float64
}

// Ranker scores and orders candidates.
type Ranker struct {
	weights Weights
}

func NewRanker(weights Weights) *Ranker {
	if weights.RecencyHalfLife <= 0 {
		weights.RecencyHalfLife = DefaultWeights().RecencyHalfLife
	}
	return &Ranker{weights: weights}
}

// Rank scores candidates against the distinct query terms and sorts them by score desc,
// date desc, id asc. Recency is measured against reference, normally the newest stored
// message, so the relative order of two messages does not depend on which other messages
// matched. A zero reference falls back to the newest candidate.
func (r *Ranker) Rank(candidates []message.Candidate, queryTerms int, reference time.Time) []Scored {
	if len(candidates) == 0 {
		return nil
	}
	if queryTerms <= 0 {
		queryTerms = 1
	}

	if reference.IsZero() {
		for _, c := range candidates {
			if c.Message.Date.After(reference) {
				reference = c.Message.Date
			}
		}
	}

	results := make([]Scored, len(candidates))
	for i, c := range candidates {
		results[i] = Scored{
			Candidate: c,
			Score: r.weights.TF*TermScore(c.Matches, queryTerms) +
				r.weights.Recency*RecencyScore(reference.Sub(c.Message.Date), r.weights.RecencyHalfLife) +
				r.weights.Engagement*EngagementScore(c.Message.Views, c.Message.Forwards),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Candidate.Message.Date.Equal(b.Candidate.Message.Date) {
			return a.Candidate.Message.Date.After(b.Candidate.Message.Date)
		}
		return a.Candidate.Message.ID < b.Candidate.Message.ID
	})
	return results
}

// TermScore sums (1 + ln f) over matched terms in lexical order and normalizes by the query size.
func TermScore(matches map[string]int, queryTerms int) float64 {
	terms := make([]string, 0, len(matches))
	for term := range matches {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var score float64
	for _, term := range terms {
		if freq := matches[term]; freq > 0 {
			score += 1 + math.Log(float64(freq))
		}
	}
	return score / float64(queryTerms)
}

// RecencyScore halves every halfLife of age. Negative ages count as zero.
func RecencyScore(age, halfLife time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	return math.Exp2(-float64(age) / float64(halfLife))
}

// EngagementScore is ln(1 + views + forwards).
func EngagementScore(views, forwards int64) float64 {
	total := views + forwards
	if total < 0 {
		total = 0
	}
	return math.Log1p(float64(total))
}
