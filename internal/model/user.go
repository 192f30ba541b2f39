package model

type User struct {
	Model
	Name   string `gorm:"type:varchar(255);not null" json:"name"`
	Email  string `gorm:"type:varchar(255);not null;uniqueIndex:idx_user_email" json:"email"`
	Active bool   `gorm:"not null" json:"active"`
}

func (u *User) AuditFields() map[string]any {
	return map[string]any{
		"name":   u.Name,
		"email":  u.Email,
		"active": u.Active,
	}
}
