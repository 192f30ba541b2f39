package model

type UserRequestStatus string

const (
	UserRequestPending  UserRequestStatus = "PENDING"
	UserRequestApproved UserRequestStatus = "APPROVED"
	UserRequestDenied   UserRequestStatus = "DENIED"
)

// UserCreationRequest 新建用户的审批流程
// 审批通过后创建用户并加入 GroupID 对应的组
type UserCreationRequest struct {
	Model
	Name          string            `gorm:"type:varchar(255);not null" json:"name"`
	Email         string            `gorm:"type:varchar(255);not null;index" json:"email"`
	GroupID       string            `gorm:"type:varchar(36);not null" json:"groupId"`
	Percentage    *int              `json:"percentage"`
	Status        UserRequestStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Comment       *string           `gorm:"type:text" json:"comment"`
	CreatedUserID *string           `gorm:"type:varchar(36)" json:"createdUserId"`
	RequestedByID string            `gorm:"type:varchar(36);not null" json:"requestedById"`
	DecidedByID   *string           `gorm:"type:varchar(36)" json:"decidedById"`
}

func (r *UserCreationRequest) AuditFields() map[string]any {
	return map[string]any{
		"name":          r.Name,
		"email":         r.Email,
		"groupId":       r.GroupID,
		"percentage":    r.Percentage,
		"status":        r.Status,
		"comment":       r.Comment,
		"createdUserId": r.CreatedUserID,
	}
}
