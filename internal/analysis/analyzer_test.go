package analysis

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSession(t *testing.T, doc string) Session {
	t.Helper()
	s, err := ParseSession([]byte(doc))
	require.NoError(t, err)
	return s
}

func TestAnalyze_WorkedExample(t *testing.T) {
	s := mustSession(t, `{
		"participants": ["a", "b", "c"],
		"questions": [
			{"nickname": "a", "content": "first"},
			{"nickname": "a", "content": "second"},
			{"nickname": "b", "content": "third"}
		]
	}`)

	a := Analyze(s)

	assert.Equal(t, 3, a.ParticipantCount)
	assert.Equal(t, 3, a.CommentCount)
	assert.Equal(t, 0.0, a.InteractionLevel)
	assert.Equal(t, 2, a.UniqueParticipants)
	assert.InDelta(t, 1-0.25/2.25, a.ParticipantBalance, 1e-9)
	assert.False(t, a.HasAISummaries)
}

func TestAnalyze_EmptySession(t *testing.T) {
	a := Analyze(Session{})

	assert.Equal(t, 0, a.CommentCount)
	assert.Equal(t, 0.0, a.InteractionLevel)
	assert.Equal(t, 0.0, a.AvgCommentLength)
	assert.Equal(t, 1.0, a.ParticipantBalance, "no comments means no imbalance signal")
}

func TestAnalyze_SingleCommenter(t *testing.T) {
	s := mustSession(t, `{"questions": [
		{"nickname": "solo", "content": "x"},
		{"nickname": "solo", "content": "y"},
		{"nickname": "solo", "content": "z"}
	]}`)

	a := Analyze(s)
	assert.Equal(t, 1.0, a.ParticipantBalance)
	assert.Equal(t, 1, a.UniqueParticipants)
}

func TestAnalyze_SkewedCountsNearZero(t *testing.T) {
	var qs []string
	for i := 0; i < 100; i++ {
		qs = append(qs, `{"nickname":"loud","content":"c"}`)
	}
	qs = append(qs, `{"nickname":"quiet","content":"c"}`)
	s := mustSession(t, `{"questions":[`+strings.Join(qs, ",")+`]}`)

	a := Analyze(s)
	assert.GreaterOrEqual(t, a.ParticipantBalance, 0.0)
	assert.Less(t, a.ParticipantBalance, 0.05)
}

func TestAnalyze_BalanceClampedAtZero(t *testing.T) {
	var qs []string
	for i := 0; i < 100; i++ {
		qs = append(qs, `{"nickname":"loud"}`)
	}
	qs = append(qs, `{"nickname":"b"}`, `{"nickname":"c"}`)
	s := mustSession(t, `{"questions":[`+strings.Join(qs, ",")+`]}`)

	a := Analyze(s)
	assert.Equal(t, 0.0, a.ParticipantBalance)
}

func TestAnalyze_EvenSpreadIsPerfectBalance(t *testing.T) {
	s := mustSession(t, `{"questions": [
		{"nickname": "a"}, {"nickname": "b"}, {"nickname": "c"},
		{"nickname": "a"}, {"nickname": "b"}, {"nickname": "c"}
	]}`)

	assert.Equal(t, 1.0, Analyze(s).ParticipantBalance)
}

func TestAnalyze_AISummariesExcludedFromComments(t *testing.T) {
	s := mustSession(t, `{"questions": [
		{"nickname": "a", "content": "hello", "vote_good": 2},
		{"nickname": "AI", "content": "a very long generated summary", "isAISummary": true, "vote_good": 50}
	]}`)

	a := Analyze(s)
	assert.Equal(t, 1, a.CommentCount)
	assert.True(t, a.HasAISummaries)
	assert.Equal(t, 52.0, a.InteractionLevel, "summary votes count, summaries do not")
	assert.Equal(t, 5.0, a.AvgCommentLength)
	assert.Equal(t, 1, a.UniqueParticipants)
}

func TestAnalyze_SummaryVotesOverPlainComments(t *testing.T) {
	s := mustSession(t, `{"questions": [
		{"nickname": "a", "content": "x"},
		{"nickname": "AI", "content": "summary", "isAISummary": true, "vote_good": 4}
	]}`)

	assert.Equal(t, 4.0, Analyze(s).InteractionLevel)
}

func TestAnalyze_OnlySummariesHaveNoInteraction(t *testing.T) {
	s := mustSession(t, `{"questions": [
		{"nickname": "AI", "content": "summary", "isAISummary": true, "vote_good": 9}
	]}`)

	a := Analyze(s)
	assert.Equal(t, 0, a.CommentCount)
	assert.Equal(t, 0.0, a.InteractionLevel)
}

func TestAnalyze_HugeVotesStayNonNegative(t *testing.T) {
	s := mustSession(t, `{"questions": [
		{"nickname": "a", "content": "x", "vote_good": 1e20},
		{"nickname": "b", "content": "y", "vote_good": 9e18, "vote_bad": 9e18}
	]}`)

	a := Analyze(s)
	assert.GreaterOrEqual(t, a.InteractionLevel, 0.0)
	assert.InDelta(t, 3*float64(maxVote)/2, a.InteractionLevel, 1e-6, "each vote field is capped")
}

func TestAnalyze_FractionalVotesKept(t *testing.T) {
	s := mustSession(t, `{"questions": [
		{"nickname": "a", "vote_good": 1.9},
		{"nickname": "b", "vote_bad": 0.3}
	]}`)

	assert.InDelta(t, 1.1, Analyze(s).InteractionLevel, 1e-9)
}

func TestAnalyze_InteractionAndLength(t *testing.T) {
	s := mustSession(t, `{"questions": [
		{"nickname": "a", "content": "你好", "vote_good": 3, "vote_bad": 1},
		{"nickname": "b", "content": "abcd", "vote_good": 0, "vote_bad": 2}
	]}`)

	a := Analyze(s)
	assert.Equal(t, 3.0, a.InteractionLevel)
	assert.Equal(t, 3.0, a.AvgCommentLength, "length counts characters, not bytes")
}

func TestAnalyzeWithStats_SkipsMalformedEntries(t *testing.T) {
	s := mustSession(t, `{
		"participants": ["a", null, 7, {"nickname": "b"}, ""],
		"questions": [
			null,
			"not an object",
			42,
			[1, 2],
			{"nickname": "a", "content": "ok", "vote_good": "many", "vote_bad": -3},
			{"nickname": 5, "content": "anonymous"}
		]
	}`)

	a, stats := AnalyzeWithStats(s)

	assert.Equal(t, 2, a.ParticipantCount)
	assert.Equal(t, 2, a.CommentCount)
	assert.Equal(t, 0.0, a.InteractionLevel, "non-numeric and negative votes count as zero")
	assert.Equal(t, 1, a.UniqueParticipants, "comments without a usable author are not grouped")
	assert.Equal(t, 7, stats.Skipped)
}

func TestAnalyze_Deterministic(t *testing.T) {
	doc := `{"participants":["a","b","c","d"],"questions":[
		{"nickname":"a","vote_good":1},{"nickname":"b"},{"nickname":"c","vote_bad":2},
		{"nickname":"d"},{"nickname":"a"},{"nickname":"b","content":"longer text here"}
	]}`
	first := Analyze(mustSession(t, doc))
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Analyze(mustSession(t, doc)))
	}
}

func TestParseSession_InvalidDocument(t *testing.T) {
	_, err := ParseSession([]byte(`{"questions": [`))
	assert.Error(t, err)
}

func TestParseSession_RoundTripsRawEntries(t *testing.T) {
	s := mustSession(t, `{"participants":["x"],"questions":[{"nickname":"x"}]}`)
	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"participants":["x"],"questions":[{"nickname":"x"}]}`, string(out))
}
