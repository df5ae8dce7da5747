package app

import (
	"errors"
	"net/http"

	"koboland/internal/model"
	"koboland/internal/service"
	"koboland/internal/util"

	"github.com/gin-gonic/gin"
)

type TopicHandler struct {
	topicService service.TopicService
	postService  service.PostService
	voteService  service.VoteService
}

func NewTopicHandler(topicService service.TopicService, postService service.PostService, voteService service.VoteService) *TopicHandler {
	return &TopicHandler{
		topicService: topicService,
		postService:  postService,
		voteService:  voteService,
	}
}

// CreateTopic handles topic creation
// POST /api/v1/topics
func (h *TopicHandler) CreateTopic(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	var req service.CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	topic, err := h.topicService.Create(userID.(string), req)
	if err != nil {
		if errors.Is(err, util.ErrAllocationExhausted) {
			util.ErrorResponse(c, http.StatusInternalServerError, err.Error(), nil)
			return
		}
		util.ErrorResponse(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Topic created successfully", gin.H{"topic": topic})
}

// GetTopic handles the topic page: the topic, a page of its posts, and the
// viewer's vote state for all of them. Enrichment costs one ledger query
// per target kind, regardless of page size.
// GET /api/v1/topics/:publicID?limit=50&offset=0
func (h *TopicHandler) GetTopic(c *gin.Context) {
	topic, err := h.topicService.GetByPublicID(c.Param("publicID"))
	if err != nil {
		if errors.Is(err, service.ErrTargetNotFound) {
			util.NotFound(c, "Topic not found")
			return
		}
		util.ErrorResponse(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	limit, offset := parsePagination(c, 50)
	posts, total, err := h.postService.GetByTopic(topic.ID, limit, offset)
	if err != nil {
		util.ErrorResponse(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	refs := make([]model.TargetRef, 0, len(posts)+1)
	refs = append(refs, model.TargetRef{Type: model.TargetTypeTopic, ID: topic.ID})
	for _, p := range posts {
		refs = append(refs, model.TargetRef{Type: model.TargetTypePost, ID: p.ID})
	}

	states, err := h.voteService.EnrichTargets(viewerID(c), refs)
	if err != nil {
		util.ErrorResponse(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	postItems := make([]gin.H, len(posts))
	for i := range posts {
		postItems[i] = gin.H{
			"post":        posts[i],
			"viewer_vote": states[i+1],
		}
	}

	util.SuccessResponse(c, http.StatusOK, "Topic retrieved successfully", gin.H{
		"topic":       topic,
		"viewer_vote": states[0],
		"posts":       postItems,
		"post_total":  total,
		"limit":       limit,
		"offset":      offset,
	})
}

// UpdateTopic handles topic editing by its author
// PUT /api/v1/topics/:publicID
func (h *TopicHandler) UpdateTopic(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	var req service.UpdateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	topic, err := h.topicService.Update(userID.(string), c.Param("publicID"), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTargetNotFound):
			util.NotFound(c, "Topic not found")
		case errors.Is(err, service.ErrNotAuthor):
			util.ErrorResponse(c, http.StatusForbidden, err.Error(), nil)
		default:
			util.ErrorResponse(c, http.StatusInternalServerError, err.Error(), nil)
		}
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Topic updated successfully", gin.H{"topic": topic})
}

// DeleteTopic handles topic deletion by its author
// DELETE /api/v1/topics/:publicID
func (h *TopicHandler) DeleteTopic(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	err := h.topicService.Delete(userID.(string), c.Param("publicID"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTargetNotFound):
			util.NotFound(c, "Topic not found")
		case errors.Is(err, service.ErrNotAuthor):
			util.ErrorResponse(c, http.StatusForbidden, err.Error(), nil)
		default:
			util.ErrorResponse(c, http.StatusInternalServerError, err.Error(), nil)
		}
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Topic deleted successfully", nil)
}
