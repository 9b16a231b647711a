// Package analysis turns raw session data into a MeetingAnalysis snapshot.
//
// Analyze is pure and deterministic: it does not read the clock, and the
// same session always yields the same snapshot. Malformed entries are
// excluded from every aggregate instead of failing the call.
package analysis

import (
	"maps"
	"slices"
	"unicode/utf8"

	"github.com/kalambet/hoststyle/internal/profile"
)

// Stats describes what Analyze had to discard.
type Stats struct {
	Skipped int
}

// Analyze extracts the per-meeting metrics from s.
func Analyze(s Session) profile.MeetingAnalysis {
	a, _ := AnalyzeWithStats(s)
	return a
}

// AnalyzeWithStats is Analyze plus a count of skipped entries.
func AnalyzeWithStats(s Session) (profile.MeetingAnalysis, Stats) {
	var stats Stats

	participants := 0
	for _, raw := range s.Participants {
		if isParticipant(raw) {
			participants++
		} else {
			stats.Skipped++
		}
	}

	var (
		comments     []Comment
		hasSummaries bool
		votes        float64
	)
	for _, raw := range s.Questions {
		c, ok := decodeComment(raw)
		if !ok {
			stats.Skipped++
			continue
		}
		// Votes on summaries count toward interaction; the summaries
		// themselves are not comments.
		votes += c.VoteGood + c.VoteBad
		if c.IsAISummary {
			hasSummaries = true
			continue
		}
		comments = append(comments, c)
	}

	perAuthor := make(map[string]int)
	length := 0
	for _, c := range comments {
		length += utf8.RuneCountInString(c.Content)
		if c.Nickname != "" {
			perAuthor[c.Nickname]++
		}
	}

	a := profile.MeetingAnalysis{
		ParticipantCount:   participants,
		CommentCount:       len(comments),
		ParticipantBalance: balance(perAuthor),
		HasAISummaries:     hasSummaries,
		UniqueParticipants: len(perAuthor),
	}
	if n := len(comments); n > 0 {
		a.InteractionLevel = votes / float64(n)
		a.AvgCommentLength = float64(length) / float64(n)
	}
	return a, stats
}

// balance scores how evenly comments are spread across authors:
// 1 − variance/mean², clamped to [0,1]. With fewer than two authors there
// is no imbalance to measure and the score is 1.
func balance(perAuthor map[string]int) float64 {
	if len(perAuthor) < 2 {
		return 1
	}

	// Sorted keys keep the float summation order stable.
	authors := slices.Sorted(maps.Keys(perAuthor))
	counts := make([]float64, len(authors))
	for i, name := range authors {
		counts[i] = float64(perAuthor[name])
	}

	m := mean(counts)
	if m <= 0 {
		return 1
	}
	return clamp(1-variance(counts, m)/(m*m), 0, 1)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// variance is the population variance of xs around m.
func variance(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
