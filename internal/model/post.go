package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a votable target inside a topic.
type Post struct {
	ID       string `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PublicID string `gorm:"type:varchar(16);not null;uniqueIndex" json:"public_id"`
	TopicID  string `gorm:"type:uuid;not null;index;references:topics(id)" json:"topic_id"`
	AuthorID string `gorm:"type:uuid;not null;index;references:users(id)" json:"author_id"`
	Content  string `gorm:"type:text;not null" json:"content"`
	Modified bool   `gorm:"not null;default:false" json:"modified"`

	Likes    int64 `gorm:"not null;default:0" json:"likes"`
	Dislikes int64 `gorm:"not null;default:0" json:"dislikes"`
	Shares   int64 `gorm:"not null;default:0" json:"shares"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Topic  Topic `gorm:"foreignKey:TopicID;references:ID" json:"topic,omitempty"`
	Author User  `gorm:"foreignKey:AuthorID;references:ID" json:"author,omitempty"`
}

// BeforeCreate hook to generate UUID
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (Post) TableName() string {
	return "posts"
}

// Counters returns the post's aggregate vote counters.
func (p *Post) Counters() Counters {
	return Counters{Likes: p.Likes, Dislikes: p.Dislikes, Shares: p.Shares}
}
