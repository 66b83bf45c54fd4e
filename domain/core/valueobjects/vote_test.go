package valueobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjudicate(t *testing.T) {
	tests := []struct {
		name     string
		live     int
		die      int
		minVotes int
		want     Verdict
	}{
		{name: "tie resolves to live", live: 1, die: 1, minVotes: 2, want: VerdictLive},
		{name: "die majority over threshold", live: 1, die: 2, minVotes: 3, want: VerdictDie},
		{name: "tie at threshold resolves to live", live: 3, die: 3, minVotes: 3, want: VerdictLive},
		{name: "die majority under threshold survives", live: 0, die: 2, minVotes: 3, want: VerdictLive},
		{name: "no votes", live: 0, die: 0, minVotes: 3, want: VerdictLive},
		{name: "live majority", live: 5, die: 2, minVotes: 3, want: VerdictLive},
		{name: "unanimous die at threshold", live: 0, die: 3, minVotes: 3, want: VerdictDie},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Adjudicate(tt.live, tt.die, tt.minVotes))
		})
	}
}

func TestParseVoteChoice(t *testing.T) {
	choice, err := ParseVoteChoice("live")
	require.NoError(t, err)
	assert.Equal(t, ChoiceLive, choice)

	choice, err = ParseVoteChoice("die")
	require.NoError(t, err)
	assert.Equal(t, ChoiceDie, choice)

	_, err = ParseVoteChoice("abstain")
	assert.Error(t, err)
}

func TestVoterFingerprint(t *testing.T) {
	_, err := NewVoterFingerprint("")
	assert.Error(t, err)

	fp, err := NewVoterFingerprint("abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", fp.String())
}
