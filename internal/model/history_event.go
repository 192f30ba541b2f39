package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type HistoryAction string

const (
	ActionCreateGroup  HistoryAction = "createGroup"
	ActionEditGroup    HistoryAction = "editGroup"
	ActionMoveGroup    HistoryAction = "moveGroup"
	ActionArchiveGroup HistoryAction = "archiveGroup"
	ActionDeleteGroup  HistoryAction = "deleteGroup"

	ActionAddUserToGroup      HistoryAction = "addUserToGroup"
	ActionRemoveUserFromGroup HistoryAction = "removeUserFromGroup"
	ActionUpdatePercentage    HistoryAction = "updatePercentage"
	ActionAddRole             HistoryAction = "addRoleToMembership"
	ActionRemoveRole          HistoryAction = "removeRoleFromMembership"

	ActionCreateVacancy  HistoryAction = "createVacancy"
	ActionEditVacancy    HistoryAction = "editVacancy"
	ActionArchiveVacancy HistoryAction = "archiveVacancy"

	ActionCreateUser                 HistoryAction = "createUser"
	ActionCreateUserCreationRequest  HistoryAction = "createUserCreationRequest"
	ActionApproveUserCreationRequest HistoryAction = "approveUserCreationRequest"
	ActionDenyUserCreationRequest    HistoryAction = "denyUserCreationRequest"
)

// Fields 以JSON文本存储的字段快照
type Fields map[string]any

func (f Fields) Value() (driver.Value, error) {
	if f == nil {
		return "{}", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *Fields) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*f = Fields{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Fields: %T", value)
	}
	out := Fields{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
	}
	*f = out
	return nil
}

// HistoryEvent 审计记录，只追加，不修改
type HistoryEvent struct {
	ID           string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	ActingUserID string        `gorm:"type:varchar(36);not null;index" json:"actingUserId"`
	Action       HistoryAction `gorm:"type:varchar(64);not null" json:"action"`
	GroupID      *string       `gorm:"type:varchar(36);index" json:"groupId"`
	UserID       *string       `gorm:"type:varchar(36);index" json:"userId"`
	Before       Fields        `gorm:"type:text" json:"before"`
	After        Fields        `gorm:"type:text" json:"after"`
	CreatedAt    time.Time     `gorm:"index" json:"createdAt"`
}

func (e *HistoryEvent) BeforeCreate(_ *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// AllModels 需要迁移的全部模型
func AllModels() []any {
	return []any{
		&User{},
		&Role{},
		&Group{},
		&Membership{},
		&Vacancy{},
		&HistoryEvent{},
		&UserCreationRequest{},
	}
}
