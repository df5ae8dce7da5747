package app

import (
	"errors"
	"net/http"
	"strings"

	"koboland/internal/model"
	"koboland/internal/service"
	"koboland/internal/util"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	voteService service.VoteService
}

func NewVoteHandler(voteService service.VoteService) *VoteHandler {
	return &VoteHandler{voteService: voteService}
}

// CastVote handles a vote/share change on a votable target
// POST /api/v1/votes
func (h *VoteHandler) CastVote(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	var req struct {
		VotableType string  `json:"votable_type" binding:"required"`
		VotableID   string  `json:"votable_id" binding:"required,uuid"`
		VoteType    *string `json:"vote_type,omitempty"`
		IsShared    *bool   `json:"is_shared,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	counters, err := h.voteService.ApplyChange(userID.(string), req.VotableType, req.VotableID, service.VoteChange{
		VoteType: req.VoteType,
		Shared:   req.IsShared,
	})
	if err != nil {
		respondVoteError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Vote recorded", gin.H{
		"votable_type": req.VotableType,
		"votable_id":   req.VotableID,
		"counters":     counters,
	})
}

// GetVoteState returns the caller's vote state for a batch of targets
// GET /api/v1/votes/state?votable_type=topic&ids=a,b,c
func (h *VoteHandler) GetVoteState(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	votableType := c.Query("votable_type")
	idsParam := c.Query("ids")
	if votableType == "" || idsParam == "" {
		util.BadRequest(c, "votable_type and ids are required")
		return
	}

	ids := strings.Split(idsParam, ",")
	refs := make([]model.TargetRef, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			refs = append(refs, model.TargetRef{Type: votableType, ID: id})
		}
	}

	states, err := h.voteService.EnrichTargets(userID.(string), refs)
	if err != nil {
		respondVoteError(c, err)
		return
	}

	results := make([]gin.H, len(refs))
	for i, ref := range refs {
		results[i] = gin.H{
			"votable_type": ref.Type,
			"votable_id":   ref.ID,
			"vote_type":    states[i].VoteType,
			"is_shared":    states[i].IsShared,
		}
	}

	util.SuccessResponse(c, http.StatusOK, "Vote state retrieved successfully", gin.H{"votes": results})
}

// GetCounters returns a target's current aggregate counters
// GET /api/v1/votes/counters?votable_type=post&votable_id=xxx
func (h *VoteHandler) GetCounters(c *gin.Context) {
	votableType := c.Query("votable_type")
	votableID := c.Query("votable_id")
	if votableType == "" || votableID == "" {
		util.BadRequest(c, "votable_type and votable_id are required")
		return
	}

	counters, err := h.voteService.TargetCounters(votableType, votableID)
	if err != nil {
		respondVoteError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Counters retrieved successfully", gin.H{"counters": counters})
}

// respondVoteError maps engine errors onto HTTP statuses
func respondVoteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTargetNotFound):
		util.NotFound(c, err.Error())
	case errors.Is(err, service.ErrUnknownTargetKind),
		errors.Is(err, service.ErrNothingRequested),
		errors.Is(err, service.ErrInvalidVoteType):
		util.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrConflictRetryExhausted):
		// Transient: the caller may safely retry
		util.ErrorResponse(c, http.StatusServiceUnavailable, err.Error(), nil)
	default:
		util.ErrorResponse(c, http.StatusInternalServerError, err.Error(), nil)
	}
}
