package service

import (
	"errors"
	"strings"
	"unicode"

	"koboland/internal/model"
	"koboland/internal/repository"

	"gorm.io/gorm"
)

type CreateTopicRequest struct {
	Board   string `json:"board" binding:"required"`
	Title   string `json:"title" binding:"required,max=80"`
	Content string `json:"content" binding:"required"`
}

type UpdateTopicRequest struct {
	Content string `json:"content" binding:"required"`
}

type TopicService interface {
	Create(authorID string, req CreateTopicRequest) (*model.Topic, error)
	GetByPublicID(publicID string) (*model.Topic, error)
	ListByBoard(boardName string, limit, offset int) ([]model.Topic, int64, error)
	Update(userID, publicID string, req UpdateTopicRequest) (*model.Topic, error)
	Delete(userID, publicID string) error
}

type topicService struct {
	topicRepo repository.TopicRepository
	boardRepo repository.BoardRepository
}

func NewTopicService(topicRepo repository.TopicRepository, boardRepo repository.BoardRepository) TopicService {
	return &topicService{
		topicRepo: topicRepo,
		boardRepo: boardRepo,
	}
}

// Create creates a topic on a board
func (s *topicService) Create(authorID string, req CreateTopicRequest) (*model.Topic, error) {
	board, err := s.boardRepo.FindByName(req.Board)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("board not found")
		}
		return nil, err
	}

	topic := &model.Topic{
		BoardID:  board.ID,
		AuthorID: authorID,
		Title:    req.Title,
		Slug:     slugify(req.Title),
		Content:  req.Content,
	}
	if err := s.topicRepo.Create(topic); err != nil {
		return nil, err
	}
	return topic, nil
}

// GetByPublicID finds a topic by its public identifier
func (s *topicService) GetByPublicID(publicID string) (*model.Topic, error) {
	topic, err := s.topicRepo.FindByPublicID(publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTargetNotFound
		}
		return nil, err
	}
	return topic, nil
}

// ListByBoard returns a page of topics on a board
func (s *topicService) ListByBoard(boardName string, limit, offset int) ([]model.Topic, int64, error) {
	board, err := s.boardRepo.FindByName(boardName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, errors.New("board not found")
		}
		return nil, 0, err
	}

	topics, err := s.topicRepo.FindByBoard(board.ID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.topicRepo.CountByBoard(board.ID)
	if err != nil {
		return nil, 0, err
	}
	return topics, total, nil
}

// Update edits a topic's content; only the author may edit it. Edited
// topics are flagged as modified.
func (s *topicService) Update(userID, publicID string, req UpdateTopicRequest) (*model.Topic, error) {
	topic, err := s.topicRepo.FindByPublicID(publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTargetNotFound
		}
		return nil, err
	}
	if topic.AuthorID != userID {
		return nil, ErrNotAuthor
	}

	topic.Content = req.Content
	topic.Modified = true
	if err := s.topicRepo.Update(topic); err != nil {
		return nil, err
	}
	return topic, nil
}

// Delete removes a topic by its public identifier; only the author may
// delete it
func (s *topicService) Delete(userID, publicID string) error {
	topic, err := s.topicRepo.FindByPublicID(publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTargetNotFound
		}
		return err
	}
	if topic.AuthorID != userID {
		return ErrNotAuthor
	}
	return s.topicRepo.Delete(topic.ID)
}

const maxSlugLength = 48

// slugify derives the url slug from a topic title. Set once at creation,
// never updated.
func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
		if b.Len() >= maxSlugLength {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}
