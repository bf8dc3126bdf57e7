package model

import "time"

// Organization is the top-level tenant.
type Organization struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Project belongs to exactly one organization.
type Project struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID uint      `gorm:"not null;index" json:"organization_id"`
	Name           string    `gorm:"size:128;not null" json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProjectMember links a user to a project with a per-project role.
type ProjectMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"not null;index:idx_member_project_user,unique" json:"project_id"`
	UserID    uint      `gorm:"not null;index:idx_member_project_user,unique" json:"user_id"`
	Role      string    `gorm:"size:32;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
