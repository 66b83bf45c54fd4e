package handlers

import (
	"net/http"

	"anima-backend/application/services"
	"anima-backend/domain/core/valueobjects"
	"anima-backend/pkg/auth"
	"anima-backend/pkg/common"
	pkgerrors "anima-backend/pkg/errors"
	"anima-backend/pkg/utils"

	"go.uber.org/zap"
)

const maxVoteBodyBytes = 4 << 10

// VoteHandler serves the public voting surface
type VoteHandler struct {
	votes        *services.VoteService
	voterLimiter *auth.VoterRateLimiter
	errors       *pkgerrors.ErrorHandler
	logger       *zap.Logger
}

// NewVoteHandler creates a vote handler
func NewVoteHandler(
	votes *services.VoteService,
	voterLimiter *auth.VoterRateLimiter,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *VoteHandler {
	return &VoteHandler{
		votes:        votes,
		voterLimiter: voterLimiter,
		errors:       errorHandler,
		logger:       logger,
	}
}

// castVoteRequest is the wire format for POST /api/v1/vote
type castVoteRequest struct {
	Vote   string `json:"vote" validate:"required,oneof=live die"`
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// GetRound handles GET /api/v1/vote-round
func (h *VoteHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.votes.CurrentRound(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, toRoundResponse(round))
}

// CastVote handles POST /api/v1/vote
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req castVoteRequest
	if err := common.ParseJSONBody(r, &req, maxVoteBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	choice, err := valueobjects.ParseVoteChoice(req.Vote)
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	fingerprint, err := valueobjects.NewVoterFingerprint(auth.Fingerprint(r))
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	allowed, err := h.voterLimiter.Allow(r.Context(), fingerprint.String())
	if err == nil && !allowed {
		h.errors.Handle(w, r, pkgerrors.ErrRateLimitExceeded)
		return
	}

	tally, err := h.votes.CastVote(r.Context(), fingerprint, choice, req.Reason)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, tally)
}
