package composer

import (
	"fmt"
	"math"
	"strings"

	"github.com/kalambet/hoststyle/internal/profile"
	"github.com/kalambet/hoststyle/internal/style"
)

// Composer renders the style report for a profile. All rounding and
// percentage formatting happens here; the profile keeps raw floats.
type Composer struct {
	clock profile.Clock
}

// New creates a Composer. If clock is nil, the system clock is used.
func New(clock profile.Clock) *Composer {
	if clock == nil {
		clock = profile.SystemClock()
	}
	return &Composer{clock: clock}
}

// Compose builds the report for p and stores it as p.CurrentPrompt. It
// returns nil, leaving p untouched, when no meeting has been tracked yet.
func (c *Composer) Compose(p *profile.Profile) *profile.Report {
	if p == nil || p.TotalMeetings == 0 {
		return nil
	}

	dominant := style.Dominant(p.Styles)
	strength := Strength(p.Styles[dominant], p.TotalMeetings)

	iterations := p.Metadata.IterationCount
	if iterations == 0 {
		iterations = p.TotalMeetings
	}

	trend, _ := style.DetectTrend(*p)

	r := &profile.Report{
		Timestamp:      c.clock.Now(),
		MeetingCount:   p.TotalMeetings,
		IterationCount: iterations,
		DominantStyle:  dominant,
		StyleStrength:  strength,
		Trend:          trend,
		Text:           render(p, dominant, strength, trend),
	}
	p.CurrentPrompt = r
	return r
}

// Strength is the share of meetings that exhibited a style, as an integer
// percentage in [0,100].
func Strength(count, total int) int {
	if total <= 0 {
		return 0
	}
	return min(max(percent(float64(count)/float64(total)), 0), 100)
}

func render(p *profile.Profile, dominant profile.Style, strength int, trend string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "[Discussion style analysis #%d]\n\n", p.TotalMeetings)
	fmt.Fprintf(&sb, "Primary style: %s (%d%% tendency)\n\n", style.Description(dominant), strength)

	sb.WriteString("Current performance:\n")
	fmt.Fprintf(&sb, "- Average participants: %.1f\n", p.Patterns.AvgParticipants)
	fmt.Fprintf(&sb, "- Average comments: %.1f\n", p.Patterns.AvgComments)
	fmt.Fprintf(&sb, "- Interaction: %d%%\n", percent(p.Patterns.AvgInteraction))
	fmt.Fprintf(&sb, "- Participation balance: %d%%\n", percent(p.Patterns.AvgBalance))

	if trend != "" {
		fmt.Fprintf(&sb, "\nTrend: %s\n", trend)
	}

	fmt.Fprintf(&sb, "\nAdvice: %s", style.Advice(dominant, p.Patterns, p.TotalMeetings))
	return sb.String()
}

func percent(ratio float64) int {
	return int(math.Round(ratio * 100))
}
