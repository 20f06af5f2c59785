// Package scoring turns a round's submissions into a winner, per-author point
// deltas and a daily ranking. Everything here is pure: no I/O, no clocks.
package scoring

import (
	"sort"
	"time"
)

// Entry is one submission as seen by the aggregator.
type Entry struct {
	SubmissionID string
	AuthorID     string
	Text         string
	Votes        int
	CreatedAt    time.Time
}

// Outcome is the result of aggregating a round.
//
// Winner is nil only when there were no entries. Deltas maps author ID to
// points earned and never contains zero values.
type Outcome struct {
	Winner *Entry
	Deltas map[string]int
}

// Standing is an author's placement in a round.
type Standing struct {
	AuthorID string
	Points   int
	Rank     int
}

// Aggregate picks the winner and sums votes per author. The winner has the
// most votes; ties go to the earliest CreatedAt, then the lowest
// SubmissionID, so the result does not depend on input order.
func Aggregate(entries []Entry) Outcome {
	out := Outcome{Deltas: make(map[string]int)}
	for i := range entries {
		e := entries[i]
		if e.Votes > 0 {
			out.Deltas[e.AuthorID] += e.Votes
		}
		if out.Winner == nil || beats(e, *out.Winner) {
			w := e
			out.Winner = &w
		}
	}
	return out
}

func beats(a, b Entry) bool {
	if a.Votes != b.Votes {
		return a.Votes > b.Votes
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.SubmissionID < b.SubmissionID
}

// Rank orders authors by points (highest first, then author ID) and assigns
// competition ranks: equal points share a rank and the next rank skips.
func Rank(deltas map[string]int) []Standing {
	out := make([]Standing, 0, len(deltas))
	for id, pts := range deltas {
		out = append(out, Standing{AuthorID: id, Points: pts})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].AuthorID < out[j].AuthorID
	})
	for i := range out {
		if i > 0 && out[i].Points == out[i-1].Points {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}
	return out
}

var milestones = map[int]struct{}{1: {}, 5: {}, 10: {}, 25: {}, 50: {}}

// IsMilestone reports whether a vote count deserves a notification.
func IsMilestone(n int) bool {
	_, ok := milestones[n]
	return ok
}
