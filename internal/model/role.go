package model

type Role struct {
	Model
	Name string `gorm:"type:varchar(100);not null;uniqueIndex:idx_role_name" json:"name"`
}
