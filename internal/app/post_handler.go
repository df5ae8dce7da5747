package app

import (
	"errors"
	"net/http"

	"koboland/internal/service"
	"koboland/internal/util"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	postService service.PostService
}

func NewPostHandler(postService service.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

// CreatePost handles replying to a topic
// POST /api/v1/posts
func (h *PostHandler) CreatePost(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	var req service.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	post, err := h.postService.Create(userID.(string), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTargetNotFound):
			util.NotFound(c, "Topic not found")
		case errors.Is(err, util.ErrAllocationExhausted):
			util.ErrorResponse(c, http.StatusInternalServerError, err.Error(), nil)
		default:
			util.ErrorResponse(c, http.StatusBadRequest, err.Error(), nil)
		}
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Post created successfully", gin.H{"post": post})
}

// UpdatePost handles post editing by its author
// PUT /api/v1/posts/:id
func (h *PostHandler) UpdatePost(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	var req service.UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	post, err := h.postService.Update(userID.(string), c.Param("id"), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTargetNotFound):
			util.NotFound(c, "Post not found")
		case errors.Is(err, service.ErrNotAuthor):
			util.ErrorResponse(c, http.StatusForbidden, err.Error(), nil)
		default:
			util.ErrorResponse(c, http.StatusInternalServerError, err.Error(), nil)
		}
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Post updated successfully", gin.H{"post": post})
}

// DeletePost handles post deletion by its author
// DELETE /api/v1/posts/:id
func (h *PostHandler) DeletePost(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	err := h.postService.Delete(userID.(string), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTargetNotFound):
			util.NotFound(c, "Post not found")
		case errors.Is(err, service.ErrNotAuthor):
			util.ErrorResponse(c, http.StatusForbidden, err.Error(), nil)
		default:
			util.ErrorResponse(c, http.StatusInternalServerError, err.Error(), nil)
		}
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Post deleted successfully", nil)
}
