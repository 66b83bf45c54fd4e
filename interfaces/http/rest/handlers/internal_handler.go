package handlers

import (
	"net/http"
	"time"

	"anima-backend/application/services"
	"anima-backend/domain/core/valueobjects"
	"anima-backend/interfaces/http/rest/middleware"
	"anima-backend/pkg/common"
	pkgerrors "anima-backend/pkg/errors"
	"anima-backend/pkg/utils"

	"go.uber.org/zap"
)

// InternalHandler serves the privileged surface used by the scheduler, the
// budget collaborator and human operators.
type InternalHandler struct {
	lifecycle *services.LifecycleService
	votes     *services.VoteService
	errors    *pkgerrors.ErrorHandler
	logger    *zap.Logger
}

// NewInternalHandler creates an internal handler
func NewInternalHandler(
	lifecycle *services.LifecycleService,
	votes *services.VoteService,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *InternalHandler {
	return &InternalHandler{
		lifecycle: lifecycle,
		votes:     votes,
		errors:    errorHandler,
		logger:    logger,
	}
}

// transitionRequest is the wire format for POST /internal/lifecycle/transition
type transitionRequest struct {
	NextState        string `json:"next_state" validate:"required"`
	CurrentIntention string `json:"current_intention,omitempty" validate:"omitempty,max=500"`
	DeathCause       string `json:"death_cause,omitempty"`
}

// transitionResponse mirrors the resulting life state
type transitionResponse struct {
	LifeNumber int    `json:"life_number"`
	State      string `json:"state"`
	Intention  string `json:"intention,omitempty"`
	DeathCause string `json:"death_cause,omitempty"`
}

// CloseRound handles POST /internal/vote-rounds/close: it forces the
// due-check to run now and reports the outcome without acting on it. Acting
// on verdicts stays with the democracy checker.
func (h *InternalHandler) CloseRound(w http.ResponseWriter, r *http.Request) {
	result, err := h.votes.CloseRoundIfDue(r.Context(), time.Now())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// Transition handles POST /internal/lifecycle/transition. The manual death
// cause additionally requires an authenticated operator, not just the shared
// secret.
func (h *InternalHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := common.ParseJSONBody(r, &req, maxVoteBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	next, err := valueobjects.ParseLifeState(req.NextState)
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	var cause valueobjects.DeathCause
	if req.DeathCause != "" {
		cause, err = valueobjects.ParseDeathCause(req.DeathCause)
		if err != nil {
			h.errors.Handle(w, r, err)
			return
		}
	}

	if cause == valueobjects.CauseManual {
		operator := middleware.OperatorID(r.Context())
		if operator == "" {
			common.RespondError(w, http.StatusForbidden, "FORBIDDEN",
				"Manual death cause requires an operator token")
			return
		}
		h.logger.Info("Manual transition requested",
			zap.String("operator", operator),
			zap.String("nextState", next.String()),
		)
	}

	life, err := h.lifecycle.Transition(r.Context(), next, cause, req.CurrentIntention)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, transitionResponse{
		LifeNumber: life.Number(),
		State:      life.State().String(),
		Intention:  life.Intention(),
		DeathCause: life.DeathCause().String(),
	})
}
