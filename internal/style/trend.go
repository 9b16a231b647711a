package style

import (
	"strings"

	"github.com/kalambet/hoststyle/internal/profile"
)

// Trend labels.
const (
	TrendStable = "stable"

	interactionRising   = "interaction rising"
	interactionFalling  = "interaction falling"
	balanceImproving    = "participation more balanced"
	balanceConcentrated = "participation more concentrated"
	discussionActive    = "discussion more active"
	discussionSubdued   = "discussion more subdued"
)

const (
	deltaThreshold = 0.1
	ratioHigh      = 1.2
	ratioLow       = 0.8
)

// DetectTrend compares the two most recent meetings in p's history. It
// reports ok=false when fewer than two meetings are recorded; otherwise
// the label lists every axis that moved, or TrendStable when none did.
func DetectTrend(p profile.Profile) (string, bool) {
	n := len(p.RecentMeetings)
	if n < 2 {
		return "", false
	}
	prev, cur := p.RecentMeetings[n-2], p.RecentMeetings[n-1]

	var labels []string
	switch d := cur.InteractionLevel - prev.InteractionLevel; {
	case d > deltaThreshold:
		labels = append(labels, interactionRising)
	case d < -deltaThreshold:
		labels = append(labels, interactionFalling)
	}
	switch d := cur.ParticipantBalance - prev.ParticipantBalance; {
	case d > deltaThreshold:
		labels = append(labels, balanceImproving)
	case d < -deltaThreshold:
		labels = append(labels, balanceConcentrated)
	}
	switch r := float64(cur.CommentCount) / float64(max(prev.CommentCount, 1)); {
	case r > ratioHigh:
		labels = append(labels, discussionActive)
	case r < ratioLow:
		labels = append(labels, discussionSubdued)
	}

	if len(labels) == 0 {
		return TrendStable, true
	}
	return strings.Join(labels, ", "), true
}
