package profile

import (
	"time"

	"github.com/google/uuid"
)

// Version tags the persisted profile format.
const Version = "1.0"

// Engine identifies the writer of a profile in its metadata.
const Engine = "hoststyle"

// DefaultHostID is the identity used by the single-host API routes.
const DefaultHostID = "host_default"

// MaxRecentMeetings bounds the sliding window of meeting snapshots.
const MaxRecentMeetings = 5

// Style is a facilitation-style category.
type Style string

const (
	Democratic Style = "democratic"
	Efficient  Style = "efficient"
	Engaging   Style = "engaging"
	Structured Style = "structured"
)

// Styles is the canonical style order. Dominant-style ties resolve to the
// earliest entry.
var Styles = []Style{Democratic, Efficient, Engaging, Structured}

// Profile is the long-lived behavioral record of one host.
type Profile struct {
	Version        string            `json:"version"`
	CreatedAt      time.Time         `json:"createdAt"`
	LastUpdated    *time.Time        `json:"lastUpdated"`
	TotalMeetings  int               `json:"totalMeetings"`
	Styles         map[Style]int     `json:"styles"`
	Patterns       Patterns          `json:"patterns"`
	RecentMeetings []MeetingAnalysis `json:"recentMeetings"`
	CurrentPrompt  *Report           `json:"currentPrompt"`
	Metadata       Metadata          `json:"metadata"`
}

// Patterns holds the damped running averages of per-meeting metrics.
type Patterns struct {
	AvgParticipants float64 `json:"avgParticipants"`
	AvgComments     float64 `json:"avgComments"`
	AvgInteraction  float64 `json:"avgInteraction"`
	AvgBalance      float64 `json:"avgBalance"`
}

// Metadata identifies the host and counts saves.
type Metadata struct {
	HostID         string `json:"hostId"`
	Engine         string `json:"engine"`
	IterationCount int    `json:"iterationCount"`
}

// MeetingAnalysis is the metric snapshot of one completed session.
// Timestamp and MeetingNumber are stamped when the snapshot is applied.
type MeetingAnalysis struct {
	ParticipantCount   int       `json:"participantCount"`
	CommentCount       int       `json:"commentCount"`
	InteractionLevel   float64   `json:"interactionLevel"`
	ParticipantBalance float64   `json:"participantBalance"`
	AvgCommentLength   float64   `json:"avgCommentLength"`
	HasAISummaries     bool      `json:"hasAISummaries"`
	UniqueParticipants int       `json:"uniqueParticipants"`
	Timestamp          time.Time `json:"timestamp"`
	MeetingNumber      int       `json:"meetingNumber"`
}

// Report is the human-readable style report stored as the current prompt.
type Report struct {
	Timestamp      time.Time `json:"timestamp"`
	MeetingCount   int       `json:"meetingCount"`
	IterationCount int       `json:"iterationCount"`
	DominantStyle  Style     `json:"dominantStyle"`
	StyleStrength  int       `json:"styleStrength"`
	Trend          string    `json:"trend,omitempty"`
	Text           string    `json:"text"`
}

// New returns a default profile for hostID with every counter at zero.
func New(hostID string, now time.Time) Profile {
	p := Profile{
		Version:   Version,
		CreatedAt: now.UTC(),
		Metadata: Metadata{
			HostID: hostID,
			Engine: Engine,
		},
	}
	p.Normalize()
	return p
}

// NewHostID generates a fresh host identity.
func NewHostID() string {
	return "host_" + uuid.New().String()
}

// Normalize repairs a decoded profile so every canonical style is present,
// collections are non-nil, and the history window holds at most
// MaxRecentMeetings entries.
func (p *Profile) Normalize() {
	if p.Version == "" {
		p.Version = Version
	}
	if p.Styles == nil {
		p.Styles = make(map[Style]int, len(Styles))
	}
	for _, s := range Styles {
		p.Styles[s] = max(p.Styles[s], 0)
	}
	if p.RecentMeetings == nil {
		p.RecentMeetings = []MeetingAnalysis{}
	}
	if n := len(p.RecentMeetings); n > MaxRecentMeetings {
		p.RecentMeetings = append([]MeetingAnalysis(nil), p.RecentMeetings[n-MaxRecentMeetings:]...)
	}
	if p.Metadata.Engine == "" {
		p.Metadata.Engine = Engine
	}
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	cp := p
	if p.LastUpdated != nil {
		t := *p.LastUpdated
		cp.LastUpdated = &t
	}
	if p.Styles != nil {
		cp.Styles = make(map[Style]int, len(p.Styles))
		for k, v := range p.Styles {
			cp.Styles[k] = v
		}
	}
	if p.RecentMeetings != nil {
		cp.RecentMeetings = make([]MeetingAnalysis, len(p.RecentMeetings))
		copy(cp.RecentMeetings, p.RecentMeetings)
	}
	if p.CurrentPrompt != nil {
		r := *p.CurrentPrompt
		cp.CurrentPrompt = &r
	}
	return cp
}
