package model

// Membership 用户在某个组中的参与记录
// Percentage 为该用户工作量分配给此组的比例(0-100)，nil 视为 0
type Membership struct {
	Model
	UserID     string `gorm:"type:varchar(36);not null;index" json:"userId"`
	GroupID    string `gorm:"type:varchar(36);not null;index" json:"groupId"`
	Percentage *int   `json:"percentage"`
	Archived   bool   `gorm:"not null;index" json:"archived"`

	Roles []Role `gorm:"many2many:membership_roles" json:"roles"`
	User  *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Group *Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}

// Allocated 返回计入预算的百分比
func (m *Membership) Allocated() int {
	if m.Percentage == nil || m.Archived {
		return 0
	}
	return *m.Percentage
}

func (m *Membership) AuditFields() map[string]any {
	return map[string]any{
		"userId":     m.UserID,
		"groupId":    m.GroupID,
		"percentage": m.Percentage,
		"archived":   m.Archived,
	}
}
