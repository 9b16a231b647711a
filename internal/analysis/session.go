package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Session is the raw data of one completed discussion. Entries stay as raw
// JSON so a single malformed entry can be skipped without rejecting the
// whole session.
type Session struct {
	Participants []json.RawMessage `json:"participants"`
	Questions    []json.RawMessage `json:"questions"`
}

// Comment is one decoded question/comment entry.
type Comment struct {
	Nickname    string
	Content     string
	VoteGood    float64
	VoteBad     float64
	IsAISummary bool
}

// ParseSession decodes the JSON wire form of a session. Only a malformed
// top-level document is an error; bad list entries are tolerated here and
// skipped during analysis.
func ParseSession(data []byte) (Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("decoding session: %w", err)
	}
	return s, nil
}

// decodeComment reads a question entry field by field. Non-object entries
// report ok=false; individual fields of the wrong type fall back to zero.
func decodeComment(raw json.RawMessage) (Comment, bool) {
	if !isObject(raw) {
		return Comment{}, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Comment{}, false
	}
	return Comment{
		Nickname:    stringField(fields, "nickname"),
		Content:     stringField(fields, "content"),
		VoteGood:    voteField(fields, "vote_good"),
		VoteBad:     voteField(fields, "vote_bad"),
		IsAISummary: boolField(fields, "isAISummary"),
	}, true
}

// isParticipant accepts nickname strings and participant objects.
func isParticipant(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case '{':
		return true
	case '"':
		var s string
		return json.Unmarshal(trimmed, &s) == nil && s != ""
	default:
		return false
	}
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func stringField(fields map[string]json.RawMessage, key string) string {
	var s string
	if v, ok := fields[key]; ok && json.Unmarshal(v, &s) == nil {
		return s
	}
	return ""
}

// maxVote caps a single vote field so sums stay finite.
const maxVote = math.MaxInt32

// voteField reads a vote count as a float clamped to [0, maxVote].
// Missing, non-numeric and negative values count as zero.
func voteField(fields map[string]json.RawMessage, key string) float64 {
	var f float64
	if v, ok := fields[key]; ok && json.Unmarshal(v, &f) == nil && f > 0 {
		return min(f, maxVote)
	}
	return 0
}

func boolField(fields map[string]json.RawMessage, key string) bool {
	var b bool
	if v, ok := fields[key]; ok && json.Unmarshal(v, &b) == nil {
		return b
	}
	return false
}
