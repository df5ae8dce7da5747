package repository

import (
	"koboland/internal/model"
	"koboland/internal/util"

	"gorm.io/gorm"
)

type TopicRepository interface {
	Create(topic *model.Topic) error
	FindByID(id string) (*model.Topic, error)
	FindByPublicID(publicID string) (*model.Topic, error)
	FindByBoard(boardID string, limit, offset int) ([]model.Topic, error)
	CountByBoard(boardID string) (int64, error)
	Update(topic *model.Topic) error
	Delete(id string) error
}

type topicRepository struct {
	db *gorm.DB
}

func NewTopicRepository(db *gorm.DB) TopicRepository {
	return &topicRepository{db: db}
}

// Create inserts the topic, allocating a fresh public id and retrying on
// the (unlikely) uniqueness collision.
func (r *topicRepository) Create(topic *model.Topic) error {
	return util.AllocatePublicID(func(id string) error {
		topic.PublicID = id
		return r.db.Create(topic).Error
	})
}

func (r *topicRepository) FindByID(id string) (*model.Topic, error) {
	var topic model.Topic
	if err := r.db.Preload("Author").Preload("Board").Where("id = ?", id).First(&topic).Error; err != nil {
		return nil, err
	}
	return &topic, nil
}

func (r *topicRepository) FindByPublicID(publicID string) (*model.Topic, error) {
	var topic model.Topic
	if err := r.db.Preload("Author").Preload("Board").Where("public_id = ?", publicID).First(&topic).Error; err != nil {
		return nil, err
	}
	return &topic, nil
}

func (r *topicRepository) FindByBoard(boardID string, limit, offset int) ([]model.Topic, error) {
	var topics []model.Topic
	err := r.db.Preload("Author").
		Where("board_id = ?", boardID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&topics).Error
	if err != nil {
		return nil, err
	}
	return topics, nil
}

func (r *topicRepository) CountByBoard(boardID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.Topic{}).Where("board_id = ?", boardID).Count(&count).Error
	return count, err
}

func (r *topicRepository) Update(topic *model.Topic) error {
	return r.db.Save(topic).Error
}

// Delete removes the topic with its posts and every ledger row pointing at
// them, in one transaction, so no counter can outlive its rows.
func (r *topicRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		postIDs := tx.Model(&model.Post{}).Select("id").Where("topic_id = ?", id)

		if err := tx.Where("target_type = ? AND target_id IN (?)", model.TargetTypePost, postIDs).
			Delete(&model.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("topic_id = ?", id).Delete(&model.Post{}).Error; err != nil {
			return err
		}
		if err := tx.Where("target_type = ? AND target_id = ?", model.TargetTypeTopic, id).
			Delete(&model.Vote{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Topic{}).Error
	})
}
