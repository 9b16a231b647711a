package style

import "github.com/kalambet/hoststyle/internal/profile"

const (
	stabilizedAfter = 5
	masteredAfter   = 10
)

// Advice returns coaching text for the dominant style s given the host's
// running averages. Longer tenures append remarks about stabilization.
func Advice(s profile.Style, p profile.Patterns, totalMeetings int) string {
	var text string
	switch s {
	case profile.Democratic:
		if p.AvgComments < 10 {
			text = "Ask more guiding questions to encourage more members to speak up"
		} else {
			text = "You keep a democratic atmosphere in the discussion, keep it up"
		}
	case profile.Efficient:
		if p.AvgInteraction < 0.5 {
			text = "While staying efficient, leave a little more time for interaction"
		} else {
			text = "Efficiency and participation are well balanced, worth continuing"
		}
	case profile.Engaging:
		if p.AvgBalance < 0.6 {
			text = "Watch out for a few voices dominating; try a round-robin speaking order"
		} else {
			text = "You create a lively and balanced discussion environment"
		}
	case profile.Structured:
		if p.AvgComments > 20 {
			text = "Rich structured discussions; consider summarizing key points in stages"
		} else {
			text = "Try more analysis tools and summarization techniques"
		}
	default:
		text = "Still observing, learning your facilitation style"
	}

	if totalMeetings >= stabilizedAfter {
		text += ". After several discussions your style has stabilized"
	}
	if totalMeetings >= masteredAfter {
		text += ", consider trying new facilitation techniques to improve further"
	}
	return text
}

// Description is the one-line characterization of each style used in
// reports.
func Description(s profile.Style) string {
	switch s {
	case profile.Democratic:
		return "values every participant's voice and balances differing opinions"
	case profile.Efficient:
		return "focuses on discussion efficiency and keeps the conversation moving"
	case profile.Engaging:
		return "builds an interactive atmosphere and motivates participants"
	case profile.Structured:
		return "prefers structured discussion with in-depth analysis and summaries"
	default:
		return "not yet characterized"
	}
}
