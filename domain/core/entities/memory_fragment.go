package entities

import (
	"time"
)

// MemoryFragmentSet is the bundle of decayed memories a new life wakes up
// with. It is keyed by the new life's number, generated once at rebirth, and
// read-only to the entity's runtime afterwards.
type MemoryFragmentSet struct {
	LifeNumber  int
	Fragments   []string
	Emotion     string
	GeneratedAt time.Time
}

// Utterance is a read-only projection of something the entity said in a past
// life. The runtime writes these; the governance engine only samples them as
// raw material for memory decay.
type Utterance struct {
	LifeNumber int
	Text       string
	SpokenAt   time.Time
}
