package style

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kalambet/hoststyle/internal/profile"
)

func withHistory(ms ...profile.MeetingAnalysis) profile.Profile {
	p := profile.New("host_a", epoch)
	p.RecentMeetings = ms
	return p
}

func TestDetectTrend_NeedsTwoMeetings(t *testing.T) {
	_, ok := DetectTrend(withHistory())
	assert.False(t, ok)

	_, ok = DetectTrend(withHistory(profile.MeetingAnalysis{CommentCount: 4}))
	assert.False(t, ok)
}

func TestDetectTrend(t *testing.T) {
	tests := []struct {
		name      string
		prev, cur profile.MeetingAnalysis
		want      string
	}{
		{
			name: "identical meetings are stable",
			prev: profile.MeetingAnalysis{CommentCount: 10, InteractionLevel: 0.5, ParticipantBalance: 0.5},
			cur:  profile.MeetingAnalysis{CommentCount: 10, InteractionLevel: 0.5, ParticipantBalance: 0.5},
			want: TrendStable,
		},
		{
			name: "small deltas are stable",
			prev: profile.MeetingAnalysis{CommentCount: 10, InteractionLevel: 0.5, ParticipantBalance: 0.5},
			cur:  profile.MeetingAnalysis{CommentCount: 11, InteractionLevel: 0.55, ParticipantBalance: 0.45},
			want: TrendStable,
		},
		{
			name: "interaction rising",
			prev: profile.MeetingAnalysis{CommentCount: 10, InteractionLevel: 0.2},
			cur:  profile.MeetingAnalysis{CommentCount: 10, InteractionLevel: 0.5},
			want: "interaction rising",
		},
		{
			name: "every axis moves",
			prev: profile.MeetingAnalysis{CommentCount: 10, InteractionLevel: 0.9, ParticipantBalance: 0.2},
			cur:  profile.MeetingAnalysis{CommentCount: 20, InteractionLevel: 0.1, ParticipantBalance: 0.9},
			want: "interaction falling, participation more balanced, discussion more active",
		},
		{
			name: "fewer comments and concentration",
			prev: profile.MeetingAnalysis{CommentCount: 10, ParticipantBalance: 0.9},
			cur:  profile.MeetingAnalysis{CommentCount: 5, ParticipantBalance: 0.3},
			want: "participation more concentrated, discussion more subdued",
		},
		{
			name: "zero previous comments divides by one",
			prev: profile.MeetingAnalysis{CommentCount: 0},
			cur:  profile.MeetingAnalysis{CommentCount: 2},
			want: "discussion more active",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectTrend(withHistory(profile.MeetingAnalysis{CommentCount: 99}, tt.prev, tt.cur))
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
