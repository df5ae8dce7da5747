package service

import (
	"errors"

	"koboland/internal/model"
	"koboland/internal/repository"

	"gorm.io/gorm"
)

type CreatePostRequest struct {
	TopicID string `json:"topic_id" binding:"required,uuid"`
	Content string `json:"content" binding:"required"`
}

type UpdatePostRequest struct {
	Content string `json:"content" binding:"required"`
}

type PostService interface {
	Create(authorID string, req CreatePostRequest) (*model.Post, error)
	GetByTopic(topicID string, limit, offset int) ([]model.Post, int64, error)
	Update(userID, postID string, req UpdatePostRequest) (*model.Post, error)
	Delete(userID, postID string) error
}

type postService struct {
	postRepo repository.PostRepository
}

func NewPostService(postRepo repository.PostRepository) PostService {
	return &postService{postRepo: postRepo}
}

// Create creates a post under a topic
func (s *postService) Create(authorID string, req CreatePostRequest) (*model.Post, error) {
	post := &model.Post{
		TopicID:  req.TopicID,
		AuthorID: authorID,
		Content:  req.Content,
	}
	if err := s.postRepo.Create(post); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTargetNotFound
		}
		return nil, err
	}
	return post, nil
}

// GetByTopic returns a page of posts in a topic
func (s *postService) GetByTopic(topicID string, limit, offset int) ([]model.Post, int64, error) {
	posts, err := s.postRepo.FindByTopic(topicID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.postRepo.CountByTopic(topicID)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// Update edits a post's content; only the author may edit it. Edited posts
// are flagged as modified.
func (s *postService) Update(userID, postID string, req UpdatePostRequest) (*model.Post, error) {
	post, err := s.postRepo.FindByID(postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTargetNotFound
		}
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, ErrNotAuthor
	}

	post.Content = req.Content
	post.Modified = true
	if err := s.postRepo.Update(post); err != nil {
		return nil, err
	}
	return post, nil
}

// Delete removes a post; only the author may delete it
func (s *postService) Delete(userID, postID string) error {
	post, err := s.postRepo.FindByID(postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTargetNotFound
		}
		return err
	}
	if post.AuthorID != userID {
		return ErrNotAuthor
	}
	return s.postRepo.Delete(postID)
}
