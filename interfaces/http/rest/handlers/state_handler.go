package handlers

import (
	"net/http"
	"time"

	"anima-backend/application/services"
	"anima-backend/domain/core/entities"
	"anima-backend/pkg/common"
	pkgerrors "anima-backend/pkg/errors"

	"go.uber.org/zap"
)

// StateHandler serves the public view of the entity's current life
type StateHandler struct {
	lifecycle *services.LifecycleService
	votes     *services.VoteService
	memories  *services.MemoryGenerator
	errors    *pkgerrors.ErrorHandler
	logger    *zap.Logger
}

// NewStateHandler creates a state handler
func NewStateHandler(
	lifecycle *services.LifecycleService,
	votes *services.VoteService,
	memories *services.MemoryGenerator,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *StateHandler {
	return &StateHandler{
		lifecycle: lifecycle,
		votes:     votes,
		memories:  memories,
		errors:    errorHandler,
		logger:    logger,
	}
}

// stateResponse is the public projection of the current life
type stateResponse struct {
	LifeNumber int             `json:"life_number"`
	State      string          `json:"state"`
	IsAlive    bool            `json:"is_alive"`
	Intention  string          `json:"intention,omitempty"`
	DeathCause string          `json:"death_cause,omitempty"`
	BornAt     time.Time       `json:"born_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Round      *roundResponse  `json:"round,omitempty"`
	Memory     *memoryResponse `json:"memory,omitempty"`
}

type roundResponse struct {
	RoundID    string    `json:"round_id"`
	LifeNumber int       `json:"life_number"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Live       int       `json:"live"`
	Die        int       `json:"die"`
	Total      int       `json:"total"`
	Status     string    `json:"status"`
}

type memoryResponse struct {
	Fragments []string `json:"fragments"`
	Emotion   string   `json:"emotion"`
}

// GetState handles GET /api/v1/state
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	life, err := h.lifecycle.Current(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	resp := stateResponse{
		LifeNumber: life.Number(),
		State:      life.State().String(),
		IsAlive:    life.IsAlive(),
		Intention:  life.Intention(),
		DeathCause: life.DeathCause().String(),
		BornAt:     life.BornAt(),
		UpdatedAt:  life.UpdatedAt(),
	}

	if round, err := h.votes.CurrentRound(r.Context()); err == nil {
		resp.Round = toRoundResponse(round)
	}
	if set, err := h.memories.ForLife(r.Context(), life.Number()); err == nil && set != nil {
		resp.Memory = &memoryResponse{Fragments: set.Fragments, Emotion: set.Emotion}
	}

	common.RespondJSON(w, http.StatusOK, resp)
}

func toRoundResponse(round *entities.VoteRound) *roundResponse {
	return &roundResponse{
		RoundID:    round.ID,
		LifeNumber: round.LifeNumber,
		StartsAt:   round.StartsAt,
		EndsAt:     round.EndsAt,
		Live:       round.LiveCount,
		Die:        round.DieCount,
		Total:      round.Total(),
		Status:     string(round.Status),
	}
}
