package repository

import (
	"koboland/internal/model"
	"koboland/internal/util"

	"gorm.io/gorm"
)

type PostRepository interface {
	Create(post *model.Post) error
	FindByID(id string) (*model.Post, error)
	FindByPublicID(publicID string) (*model.Post, error)
	FindByTopic(topicID string, limit, offset int) ([]model.Post, error)
	CountByTopic(topicID string) (int64, error)
	Update(post *model.Post) error
	Delete(id string) error
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts the post and bumps the parent topic's post_count in the
// same transaction. The parent counter moves by delta with the owning
// write, never by recount. Each public id attempt gets its own transaction:
// a unique violation aborts the transaction it happens in, so retrying the
// insert inside it would only ever see "current transaction is aborted".
func (r *postRepository) Create(post *model.Post) error {
	return util.AllocatePublicID(func(id string) error {
		post.PublicID = id
		return r.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(post).Error; err != nil {
				return err
			}

			res := tx.Model(&model.Topic{}).
				Where("id = ?", post.TopicID).
				Update("post_count", gorm.Expr("post_count + 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
			return nil
		})
	})
}

func (r *postRepository) FindByID(id string) (*model.Post, error) {
	var post model.Post
	if err := r.db.Preload("Author").Where("id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) FindByPublicID(publicID string) (*model.Post, error) {
	var post model.Post
	if err := r.db.Preload("Author").Where("public_id = ?", publicID).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) FindByTopic(topicID string, limit, offset int) ([]model.Post, error) {
	var posts []model.Post
	err := r.db.Preload("Author").
		Where("topic_id = ?", topicID).
		Order("created_at ASC").
		Limit(limit).Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) CountByTopic(topicID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.Post{}).Where("topic_id = ?", topicID).Count(&count).Error
	return count, err
}

func (r *postRepository) Update(post *model.Post) error {
	return r.db.Save(post).Error
}

// Delete removes the post, its ledger rows, and decrements the parent
// topic's post_count, atomically.
func (r *postRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var post model.Post
		if err := tx.Where("id = ?", id).First(&post).Error; err != nil {
			return err
		}

		if err := tx.Where("target_type = ? AND target_id = ?", model.TargetTypePost, id).
			Delete(&model.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&post).Error; err != nil {
			return err
		}
		return tx.Model(&model.Topic{}).
			Where("id = ?", post.TopicID).
			Update("post_count", gorm.Expr("post_count - 1")).Error
	})
}
