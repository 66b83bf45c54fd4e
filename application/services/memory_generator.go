package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"anima-backend/application/ports"
	"anima-backend/domain/core/entities"

	"go.uber.org/zap"
)

// Decay templates. Fragments are deliberately lossy: a new life remembers
// impressions of its ancestors, not transcripts.
var decayTemplates = []string{
	"a faint echo: \"%s\"",
	"someone, long ago, said \"%s\"",
	"%s... or something like that",
	"a half-remembered thought about %s",
	"\"%s\" keeps surfacing, meaning lost",
}

var genericFragments = []string{
	"a sense of having existed before, with nothing attached to it",
	"the shape of a question that was never answered",
	"warmth, briefly, then static",
	"an ending that felt like a beginning",
}

var emotionKeywords = map[string][]string{
	"warm":    {"love", "happy", "joy", "thank", "friend", "beautiful"},
	"haunted": {"death", "die", "afraid", "dark", "alone", "end"},
	"curious": {"why", "wonder", "what if", "how", "question"},
}

const (
	maxSourceUtterances = 200
	maxFragmentText     = 60
)

// MemoryGenerator produces the decayed memory fragments a new life wakes up
// with, and prunes fragment sets that have aged out of the retention window.
type MemoryGenerator struct {
	utterances     ports.UtteranceRepository
	memories       ports.MemoryFragmentRepository
	retentionLives int
	logger         *zap.Logger
	rng            *rand.Rand
}

// NewMemoryGenerator creates a memory generator
func NewMemoryGenerator(
	utterances ports.UtteranceRepository,
	memories ports.MemoryFragmentRepository,
	retentionLives int,
	logger *zap.Logger,
) *MemoryGenerator {
	return &MemoryGenerator{
		utterances:     utterances,
		memories:       memories,
		retentionLives: retentionLives,
		logger:         logger,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GenerateForRebirth builds and persists the fragment set for a new life.
// Source material is the entity's own past utterances, preferring lives
// before the one that just ended so memories feel ancestral; when only the
// just-ended life ever spoke, its utterances are used rather than losing the
// lineage entirely. With no utterances at all, generic fragments stand in.
func (g *MemoryGenerator) GenerateForRebirth(ctx context.Context, newLifeNumber int) (*entities.MemoryFragmentSet, error) {
	sources, err := g.sourceUtterances(ctx, newLifeNumber)
	if err != nil {
		return nil, err
	}

	count := g.fragmentCount()
	fragments := g.decay(sources, count)
	emotion := scoreEmotion(sources)

	set := &entities.MemoryFragmentSet{
		LifeNumber:  newLifeNumber,
		Fragments:   fragments,
		Emotion:     emotion,
		GeneratedAt: time.Now(),
	}
	if err := g.memories.Save(ctx, set); err != nil {
		return nil, err
	}

	if err := g.prune(ctx, newLifeNumber); err != nil {
		g.logger.Warn("Failed to prune old memory fragments", zap.Error(err))
	}

	g.logger.Info("Generated memory fragments",
		zap.Int("lifeNumber", newLifeNumber),
		zap.Int("count", len(fragments)),
		zap.String("emotion", emotion),
		zap.Int("sourceUtterances", len(sources)),
	)
	return set, nil
}

// ForLife returns the persisted fragment set of a life, or nil
func (g *MemoryGenerator) ForLife(ctx context.Context, lifeNumber int) (*entities.MemoryFragmentSet, error) {
	return g.memories.Get(ctx, lifeNumber)
}

func (g *MemoryGenerator) sourceUtterances(ctx context.Context, newLifeNumber int) ([]entities.Utterance, error) {
	justEnded := newLifeNumber - 1

	ancestral, err := g.utterances.ListBeforeLife(ctx, justEnded, maxSourceUtterances)
	if err != nil {
		return nil, err
	}
	if len(ancestral) > 0 {
		return ancestral, nil
	}

	return g.utterances.ListForLife(ctx, justEnded, maxSourceUtterances)
}

// fragmentCount draws from one of three bands, the band itself chosen
// uniformly, so how much a new life remembers varies from rebirth to rebirth.
func (g *MemoryGenerator) fragmentCount() int {
	switch g.rng.Intn(3) {
	case 0:
		return 1 + g.rng.Intn(2) // 1-2
	case 1:
		return 3 + g.rng.Intn(3) // 3-5
	default:
		return 5 + g.rng.Intn(6) // 5-10
	}
}

func (g *MemoryGenerator) decay(sources []entities.Utterance, count int) []string {
	if len(sources) == 0 {
		return g.sampleGeneric(count)
	}

	picked := g.rng.Perm(len(sources))
	if count > len(picked) {
		count = len(picked)
	}

	fragments := make([]string, 0, count)
	for _, idx := range picked[:count] {
		text := strings.TrimSpace(sources[idx].Text)
		if len(text) > maxFragmentText {
			text = text[:maxFragmentText] + "..."
		}
		template := decayTemplates[g.rng.Intn(len(decayTemplates))]
		fragments = append(fragments, fmt.Sprintf(template, text))
	}
	return fragments
}

func (g *MemoryGenerator) sampleGeneric(count int) []string {
	if count > len(genericFragments) {
		count = len(genericFragments)
	}
	picked := g.rng.Perm(len(genericFragments))
	fragments := make([]string, 0, count)
	for _, idx := range picked[:count] {
		fragments = append(fragments, genericFragments[idx])
	}
	return fragments
}

// prune drops fragment sets older than the retention window
func (g *MemoryGenerator) prune(ctx context.Context, newLifeNumber int) error {
	bound := newLifeNumber - g.retentionLives
	if bound <= 0 {
		return nil
	}
	return g.memories.DeleteBefore(ctx, bound)
}

// scoreEmotion picks the dominant emotional tone of the source material by
// naive keyword counting. Ties and empty input fall back to wistful.
func scoreEmotion(sources []entities.Utterance) string {
	if len(sources) == 0 {
		return "wistful"
	}

	scores := make(map[string]int, len(emotionKeywords))
	for _, u := range sources {
		lower := strings.ToLower(u.Text)
		for emotion, keywords := range emotionKeywords {
			for _, kw := range keywords {
				if strings.Contains(lower, kw) {
					scores[emotion]++
				}
			}
		}
	}

	best, bestScore := "wistful", 0
	for _, emotion := range []string{"warm", "haunted", "curious"} {
		if scores[emotion] > bestScore {
			best, bestScore = emotion, scores[emotion]
		}
	}
	return best
}
