package service

import (
	"errors"

	"koboland/internal/model"
	"koboland/internal/repository"
	"koboland/internal/util"
)

type CreateBoardRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=32,alphanum"`
	Description string `json:"description" binding:"max=2000"`
}

type BoardService interface {
	Create(req CreateBoardRequest) (*model.Board, error)
	GetByName(name string) (*model.Board, error)
	List() ([]model.Board, error)
}

type boardService struct {
	boardRepo repository.BoardRepository
}

func NewBoardService(boardRepo repository.BoardRepository) BoardService {
	return &boardService{boardRepo: boardRepo}
}

// Create creates a board
func (s *boardService) Create(req CreateBoardRequest) (*model.Board, error) {
	board := &model.Board{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.boardRepo.Create(board); err != nil {
		if util.IsUniqueViolation(err) {
			return nil, errors.New("board name already taken")
		}
		return nil, errors.New("failed to create board")
	}
	return board, nil
}

// GetByName finds a board by name
func (s *boardService) GetByName(name string) (*model.Board, error) {
	return s.boardRepo.FindByName(name)
}

// List returns all boards
func (s *boardService) List() ([]model.Board, error) {
	return s.boardRepo.FindAll()
}
