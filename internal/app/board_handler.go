package app

import (
	"net/http"
	"strconv"

	"koboland/internal/model"
	"koboland/internal/service"
	"koboland/internal/util"

	"github.com/gin-gonic/gin"
)

type BoardHandler struct {
	boardService service.BoardService
	topicService service.TopicService
	voteService  service.VoteService
}

func NewBoardHandler(boardService service.BoardService, topicService service.TopicService, voteService service.VoteService) *BoardHandler {
	return &BoardHandler{
		boardService: boardService,
		topicService: topicService,
		voteService:  voteService,
	}
}

// CreateBoard handles board creation
// POST /api/v1/boards
func (h *BoardHandler) CreateBoard(c *gin.Context) {
	var req service.CreateBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	board, err := h.boardService.Create(req)
	if err != nil {
		util.ErrorResponse(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Board created successfully", gin.H{"board": board})
}

// ListBoards handles listing all boards
// GET /api/v1/boards
func (h *BoardHandler) ListBoards(c *gin.Context) {
	boards, err := h.boardService.List()
	if err != nil {
		util.ErrorResponse(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Boards retrieved successfully", gin.H{"boards": boards})
}

// GetBoard handles getting one board
// GET /api/v1/boards/:name
func (h *BoardHandler) GetBoard(c *gin.Context) {
	board, err := h.boardService.GetByName(c.Param("name"))
	if err != nil {
		util.NotFound(c, "Board not found")
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Board retrieved successfully", gin.H{"board": board})
}

// ListTopics handles the board page: a page of topics annotated with the
// viewer's vote state
// GET /api/v1/boards/:name/topics?limit=20&offset=0
func (h *BoardHandler) ListTopics(c *gin.Context) {
	limit, offset := parsePagination(c, 20)

	topics, total, err := h.topicService.ListByBoard(c.Param("name"), limit, offset)
	if err != nil {
		util.ErrorResponse(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	refs := make([]model.TargetRef, len(topics))
	for i, t := range topics {
		refs[i] = model.TargetRef{Type: model.TargetTypeTopic, ID: t.ID}
	}

	states, err := h.voteService.EnrichTargets(viewerID(c), refs)
	if err != nil {
		util.ErrorResponse(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	items := make([]gin.H, len(topics))
	for i := range topics {
		items[i] = gin.H{
			"topic":       topics[i],
			"viewer_vote": states[i],
		}
	}

	util.SuccessResponse(c, http.StatusOK, "Topics retrieved successfully", gin.H{
		"topics": items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// viewerID returns the authenticated user id, or "" for anonymous viewers
func viewerID(c *gin.Context) string {
	if id, exists := c.Get("userID"); exists {
		return id.(string)
	}
	return ""
}

func parsePagination(c *gin.Context, defaultLimit int) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}

	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
