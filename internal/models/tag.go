package models

import "time"

type Tag struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint64 `gorm:"not null;uniqueIndex:idx_tags_user_name" json:"user_id"`
	Name   string `gorm:"type:varchar(50);not null;uniqueIndex:idx_tags_user_name" json:"name"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (Tag) TableName() string {
	return "tags"
}
