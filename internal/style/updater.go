// Package style holds the pure rules that fold meeting snapshots into a
// host profile and interpret the result: style classification, trend
// detection and advice.
package style

import (
	"time"

	"github.com/kalambet/hoststyle/internal/profile"
)

// maxWeight caps the running-average weight so recent meetings keep
// moving the averages once the history is long.
const maxWeight = 10

// Classification thresholds. All comparisons are strict.
const (
	democraticBalance    = 0.7
	democraticUnique     = 2
	efficientComments    = 15
	efficientInteraction = 0.3
	engagingInteraction  = 0.6
	structuredLength     = 30
)

// Apply folds one meeting into p: it bumps the meeting counter, updates the
// damped averages, increments every style the meeting exhibits, and appends
// the stamped snapshot to the bounded history. It returns the styles that
// fired in canonical order.
func Apply(p *profile.Profile, a profile.MeetingAnalysis, now time.Time) []profile.Style {
	p.Normalize()

	p.TotalMeetings++
	updated := now.UTC()
	p.LastUpdated = &updated

	w := float64(min(p.TotalMeetings, maxWeight))
	p.Patterns.AvgParticipants = damp(p.Patterns.AvgParticipants, float64(a.ParticipantCount), w)
	p.Patterns.AvgComments = damp(p.Patterns.AvgComments, float64(a.CommentCount), w)
	p.Patterns.AvgInteraction = damp(p.Patterns.AvgInteraction, a.InteractionLevel, w)
	p.Patterns.AvgBalance = damp(p.Patterns.AvgBalance, a.ParticipantBalance, w)

	fired := Classify(a)
	for _, s := range fired {
		p.Styles[s]++
	}

	a.Timestamp = updated
	a.MeetingNumber = p.TotalMeetings
	p.RecentMeetings = append(p.RecentMeetings, a)
	if n := len(p.RecentMeetings); n > profile.MaxRecentMeetings {
		p.RecentMeetings = append([]profile.MeetingAnalysis(nil), p.RecentMeetings[n-profile.MaxRecentMeetings:]...)
	}

	return fired
}

// Classify reports which styles a single meeting exhibits. A meeting may
// exhibit several styles or none.
func Classify(a profile.MeetingAnalysis) []profile.Style {
	var out []profile.Style
	if a.ParticipantBalance > democraticBalance && a.UniqueParticipants > democraticUnique {
		out = append(out, profile.Democratic)
	}
	if a.CommentCount > efficientComments && a.InteractionLevel > efficientInteraction {
		out = append(out, profile.Efficient)
	}
	if a.InteractionLevel > engagingInteraction {
		out = append(out, profile.Engaging)
	}
	if a.HasAISummaries && a.AvgCommentLength > structuredLength {
		out = append(out, profile.Structured)
	}
	return out
}

// Dominant returns the style with the highest count. Ties go to the style
// that comes first in profile.Styles.
func Dominant(counts map[profile.Style]int) profile.Style {
	best := profile.Styles[0]
	for _, s := range profile.Styles[1:] {
		if counts[s] > counts[best] {
			best = s
		}
	}
	return best
}

func damp(avg, sample, weight float64) float64 {
	return (avg*(weight-1) + sample) / weight
}
