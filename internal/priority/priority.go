// Package priority scores queued conversations relative to the candidate
// window they were drawn from.
package priority

import (
	"sort"
	"time"

	"github.com/zulandar/inboxd/internal/models"
)

// Weights are the per-tenant coefficients of the score. Alpha weighs
// message volume, Beta weighs waiting time. Any float is accepted.
type Weights struct {
	Alpha float64
	Beta  float64
}

// DefaultWeights apply when a tenant has no policy row.
var DefaultWeights = Weights{Alpha: 1.0, Beta: 1.0}

// Normalize maps value into [0,1] against [min,max]. A zero-width range
// carries no signal and yields 0.
func Normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (value - min) / (max - min)
}

// DelayMinutes is how long c has waited since its last message. A missing
// timestamp counts as no delay.
func DelayMinutes(c *models.Conversation, now time.Time) float64 {
	if c.LastMessageAt.IsZero() {
		return 0
	}
	return now.Sub(c.LastMessageAt).Minutes()
}

// bounds holds the min/max of each scoring dimension over a candidate set.
type bounds struct {
	minDelay, maxDelay float64
	minCount, maxCount float64
}

func measure(candidates []models.Conversation, now time.Time) bounds {
	var b bounds
	for i := range candidates {
		d := DelayMinutes(&candidates[i], now)
		n := float64(candidates[i].MessageCount)
		if i == 0 {
			b = bounds{minDelay: d, maxDelay: d, minCount: n, maxCount: n}
			continue
		}
		b.minDelay = min(b.minDelay, d)
		b.maxDelay = max(b.maxDelay, d)
		b.minCount = min(b.minCount, n)
		b.maxCount = max(b.maxCount, n)
	}
	return b
}

func (b bounds) score(c *models.Conversation, w Weights, now time.Time) float64 {
	nc := Normalize(float64(c.MessageCount), b.minCount, b.maxCount)
	nd := Normalize(DelayMinutes(c, now), b.minDelay, b.maxDelay)
	return w.Alpha*nc + w.Beta*nd
}

// Score computes the urgency of target relative to candidates, the set it
// was drawn from. An empty set scores 0 and a single candidate scores
// Alpha+Beta.
func Score(target *models.Conversation, candidates []models.Conversation, w Weights, now time.Time) float64 {
	switch len(candidates) {
	case 0:
		return 0
	case 1:
		return w.Alpha + w.Beta
	}
	return measure(candidates, now).score(target, w, now)
}

// Rank scores every candidate in place and sorts them highest score first.
// Ties go to the conversation that has waited longest, then by ID so a
// snapshot always ranks the same way.
func Rank(candidates []models.Conversation, w Weights, now time.Time) {
	switch len(candidates) {
	case 0:
		return
	case 1:
		candidates[0].PriorityScore = w.Alpha + w.Beta
		return
	}

	b := measure(candidates, now)
	for i := range candidates {
		candidates[i].PriorityScore = b.score(&candidates[i], w, now)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, c := &candidates[i], &candidates[j]
		if a.PriorityScore != c.PriorityScore {
			return a.PriorityScore > c.PriorityScore
		}
		if !a.LastMessageAt.Equal(c.LastMessageAt) {
			return a.LastMessageAt.Before(c.LastMessageAt)
		}
		return a.ID < c.ID
	})
}
