package service

import "crew/internal/model"

type AddGroupRequest struct {
	Name        string  `json:"name" binding:"required,max=255"`
	ParentID    *string `json:"parentId"`
	Description *string `json:"description"`
}

// EditGroupRequest 部分更新，nil 字段保持不变
type EditGroupRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
}

type MoveGroupRequest struct {
	// nil 表示移动为根节点
	ParentID *string `json:"parentId"`
}

type ArchiveRequest struct {
	Archived *bool `json:"archived" binding:"required"`
}

type AddMembershipRequest struct {
	UserID     string `json:"userId" binding:"required"`
	GroupID    string `json:"groupId" binding:"required"`
	Percentage *int   `json:"percentage" binding:"omitempty,min=0,max=100"`
}

type UpdatePercentageRequest struct {
	Percentage *int `json:"percentage" binding:"required"`
}

type AddRoleRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

type CreateVacancyRequest struct {
	Name            string              `json:"name" binding:"required,max=255"`
	GroupID         string              `json:"groupId" binding:"required"`
	HiringManagerID string              `json:"hiringManagerId" binding:"required"`
	HrID            string              `json:"hrId" binding:"required"`
	Status          model.VacancyStatus `json:"status"`
	Grade           *int                `json:"grade"`
	Unit            *int                `json:"unit"`
}

// EditVacancyRequest 部分更新，Status 变化会触发状态副作用
type EditVacancyRequest struct {
	Name            *string              `json:"name" binding:"omitempty,min=1,max=255"`
	Status          *model.VacancyStatus `json:"status"`
	HiringManagerID *string              `json:"hiringManagerId"`
	HrID            *string              `json:"hrId"`
	Grade           *int                 `json:"grade"`
	Unit            *int                 `json:"unit"`
}

type CreateUserRequestRequest struct {
	Name       string `json:"name" binding:"required,max=255"`
	Email      string `json:"email" binding:"required,email"`
	GroupID    string `json:"groupId" binding:"required"`
	Percentage *int   `json:"percentage" binding:"omitempty,min=0,max=100"`
}

type DenyUserRequestRequest struct {
	Comment *string `json:"comment"`
}
