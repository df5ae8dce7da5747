package repository

import (
	"koboland/internal/model"

	"gorm.io/gorm"
)

type BoardRepository interface {
	Create(board *model.Board) error
	FindByID(id string) (*model.Board, error)
	FindByName(name string) (*model.Board, error)
	FindAll() ([]model.Board, error)
}

type boardRepository struct {
	db *gorm.DB
}

func NewBoardRepository(db *gorm.DB) BoardRepository {
	return &boardRepository{db: db}
}

func (r *boardRepository) Create(board *model.Board) error {
	return r.db.Create(board).Error
}

func (r *boardRepository) FindByID(id string) (*model.Board, error) {
	var board model.Board
	if err := r.db.Where("id = ?", id).First(&board).Error; err != nil {
		return nil, err
	}
	return &board, nil
}

func (r *boardRepository) FindByName(name string) (*model.Board, error) {
	var board model.Board
	if err := r.db.Where("name = ?", name).First(&board).Error; err != nil {
		return nil, err
	}
	return &board, nil
}

func (r *boardRepository) FindAll() ([]model.Board, error) {
	var boards []model.Board
	if err := r.db.Order("name ASC").Find(&boards).Error; err != nil {
		return nil, err
	}
	return boards, nil
}
