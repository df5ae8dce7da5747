package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Topic is a votable target. Likes/Dislikes/Shares are denormalized
// aggregates owned by the vote engine; everything else is ordinary content.
type Topic struct {
	ID       string `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PublicID string `gorm:"type:varchar(16);not null;uniqueIndex" json:"public_id"`
	BoardID  string `gorm:"type:uuid;not null;index;references:boards(id)" json:"board_id"`
	AuthorID string `gorm:"type:uuid;not null;index;references:users(id)" json:"author_id"`
	Title    string `gorm:"type:varchar(80);not null" json:"title"`
	Slug     string `gorm:"type:varchar(48);not null" json:"slug"`
	Content  string `gorm:"type:text;not null" json:"content"`
	Modified bool   `gorm:"not null;default:false" json:"modified"`

	Likes     int64 `gorm:"not null;default:0" json:"likes"`
	Dislikes  int64 `gorm:"not null;default:0" json:"dislikes"`
	Shares    int64 `gorm:"not null;default:0" json:"shares"`
	PostCount int64 `gorm:"not null;default:0" json:"post_count"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Board  Board `gorm:"foreignKey:BoardID;references:ID" json:"board,omitempty"`
	Author User  `gorm:"foreignKey:AuthorID;references:ID" json:"author,omitempty"`
}

// BeforeCreate hook to generate UUID
func (t *Topic) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (Topic) TableName() string {
	return "topics"
}

// Counters returns the topic's aggregate vote counters.
func (t *Topic) Counters() Counters {
	return Counters{Likes: t.Likes, Dislikes: t.Dislikes, Shares: t.Shares}
}
