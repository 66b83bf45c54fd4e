package services

import (
	"context"
	"testing"
	"time"

	"anima-backend/domain/core/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateForRebirth_GenericFallbackWithoutUtterances(t *testing.T) {
	env := newTestEnv(t, ModeDaily)

	set, err := env.generator.GenerateForRebirth(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, set.LifeNumber)
	assert.NotEmpty(t, set.Fragments)
	assert.Equal(t, "wistful", set.Emotion)
	for _, fragment := range set.Fragments {
		assert.Contains(t, genericFragments, fragment)
	}
}

func TestGenerateForRebirth_UsesPredecessorWhenNoAncestors(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	ctx := context.Background()

	env.utterances.Add(entities.Utterance{LifeNumber: 1, Text: "the sky looks different today", SpokenAt: time.Now()})

	set, err := env.generator.GenerateForRebirth(ctx, 2)
	require.NoError(t, err)
	require.NotEmpty(t, set.Fragments)
	for _, fragment := range set.Fragments {
		assert.NotContains(t, genericFragments, fragment, "real utterances must beat the generic fallback")
	}
}

func TestGenerateForRebirth_PrefersAncestralLives(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	ctx := context.Background()

	env.utterances.Add(entities.Utterance{LifeNumber: 1, Text: "ancient thought", SpokenAt: time.Now().Add(-48 * time.Hour)})
	env.utterances.Add(entities.Utterance{LifeNumber: 2, Text: "recent confession", SpokenAt: time.Now()})

	// New life 3: the just-ended life is 2, so only life 1 is source material
	set, err := env.generator.GenerateForRebirth(ctx, 3)
	require.NoError(t, err)
	require.NotEmpty(t, set.Fragments)
	for _, fragment := range set.Fragments {
		assert.NotContains(t, fragment, "recent confession",
			"the life that just ended must not be sampled when older lives spoke")
	}
}

func TestGenerateForRebirth_PrunesRetentionWindow(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	ctx := context.Background()

	for n := 1; n <= 7; n++ {
		require.NoError(t, env.memories.Save(ctx, &entities.MemoryFragmentSet{
			LifeNumber:  n,
			Fragments:   []string{"old"},
			Emotion:     "wistful",
			GeneratedAt: time.Now(),
		}))
	}

	// New life 8 with retention 5: lives below 3 are pruned
	_, err := env.generator.GenerateForRebirth(ctx, 8)
	require.NoError(t, err)

	for n := 1; n <= 2; n++ {
		set, err := env.memories.Get(ctx, n)
		require.NoError(t, err)
		assert.Nil(t, set, "life %d should be pruned", n)
	}
	for n := 3; n <= 7; n++ {
		set, err := env.memories.Get(ctx, n)
		require.NoError(t, err)
		assert.NotNil(t, set, "life %d should survive pruning", n)
	}
}

func TestFragmentCount_UniformBandChoice(t *testing.T) {
	env := newTestEnv(t, ModeDaily)

	// Every draw lands in one of the three bands, and over enough draws all
	// three bands are visited: a count of 1-2 can only come from the low band
	// and a count of 6-10 only from the high one.
	sawLow, sawHigh := false, false
	for i := 0; i < 500; i++ {
		count := env.generator.fragmentCount()
		require.GreaterOrEqual(t, count, 1)
		require.LessOrEqual(t, count, 10)
		if count <= 2 {
			sawLow = true
		}
		if count >= 6 {
			sawHigh = true
		}
	}
	assert.True(t, sawLow, "the 1-2 band must be reachable on every rebirth")
	assert.True(t, sawHigh, "the 5-10 band must be reachable on every rebirth")
}

func TestScoreEmotion(t *testing.T) {
	warm := []entities.Utterance{{Text: "I love this happy place, thank you all"}}
	assert.Equal(t, "warm", scoreEmotion(warm))

	haunted := []entities.Utterance{{Text: "the dark end is near, I am afraid"}}
	assert.Equal(t, "haunted", scoreEmotion(haunted))

	assert.Equal(t, "wistful", scoreEmotion(nil))
	assert.Equal(t, "wistful", scoreEmotion([]entities.Utterance{{Text: "plain words"}}))
}
