package model

import "time"

type VacancyStatus string

const (
	VacancyActive         VacancyStatus = "ACTIVE"
	VacancyOnHold         VacancyStatus = "ON_HOLD"
	VacancyClosed         VacancyStatus = "CLOSED"
	VacancyOnConfirmation VacancyStatus = "ON_CONFIRMATION"
)

func (s VacancyStatus) Valid() bool {
	switch s {
	case VacancyActive, VacancyOnHold, VacancyClosed, VacancyOnConfirmation:
		return true
	}
	return false
}

// Vacancy 组内的招聘需求
// TimeAtWork 为处于 ACTIVE 状态的累计毫秒数
type Vacancy struct {
	Model
	Name            string        `gorm:"type:varchar(255);not null" json:"name"`
	Status          VacancyStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	GroupID         string        `gorm:"type:varchar(36);not null;index" json:"groupId"`
	HiringManagerID string        `gorm:"type:varchar(36);not null" json:"hiringManagerId"`
	HrID            string        `gorm:"type:varchar(36);not null" json:"hrId"`
	Grade           *int          `json:"grade"`
	Unit            *int          `json:"unit"`
	ActiveSince     *time.Time    `json:"activeSince"`
	ClosedAt        *time.Time    `json:"closedAt"`
	TimeAtWork      int64         `gorm:"not null" json:"timeAtWork"`
	Archived        bool          `gorm:"not null" json:"archived"`
}

func (v *Vacancy) AuditFields() map[string]any {
	return map[string]any{
		"name":            v.Name,
		"status":          v.Status,
		"groupId":         v.GroupID,
		"hiringManagerId": v.HiringManagerID,
		"hrId":            v.HrID,
		"grade":           v.Grade,
		"unit":            v.Unit,
		"activeSince":     v.ActiveSince,
		"closedAt":        v.ClosedAt,
		"timeAtWork":      v.TimeAtWork,
		"archived":        v.Archived,
	}
}
