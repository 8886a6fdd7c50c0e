// Database model for chat channels
package db

import "time"

// Channel is a named conversation scoped to one renovation with an explicit
// member list. The reserved per-user AI channel carries IsAiChannel plus the
// owning user's id so it can be found again on demand.
type Channel struct {
	ID           int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Name         string `json:"name" gorm:"size:64;not null"`
	RenovationID int64  `json:"renovation_id" gorm:"index;not null"`
	IsAiChannel  bool   `json:"is_ai_channel" gorm:"default:false"`
	AiOwnerID    *int64 `json:"ai_owner_id,omitempty" gorm:"index"`

	Members []User `json:"members,omitempty" gorm:"many2many:channel_members"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Channel) TableName() string {
	return "channels"
}
