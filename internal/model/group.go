package model

// Group 组织单元（团队），ParentID为nil表示根节点
type Group struct {
	Model
	Name        string  `gorm:"type:varchar(255);not null" json:"name"`
	ParentID    *string `gorm:"type:varchar(36);index" json:"parentId"`
	Archived    bool    `gorm:"not null" json:"archived"`
	Description *string `gorm:"type:text" json:"description"`
}

// AuditFields 写入历史记录的字段
func (g *Group) AuditFields() map[string]any {
	return map[string]any{
		"name":        g.Name,
		"parentId":    g.ParentID,
		"archived":    g.Archived,
		"description": g.Description,
	}
}
