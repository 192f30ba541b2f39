package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model 所有实体共用的主键和时间戳，ID在创建时生成
type Model struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m *Model) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
