package model

import "time"

// Document is a knowledge-base entry published into exactly one layer.
// ScopeID is nil for platform documents, the organization id for
// organization documents, the project id for project documents and the
// owner's user id for user documents.
type Document struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Layer        Layer      `gorm:"size:16;not null;index:idx_docs_layer_scope" json:"layer"`
	ScopeID      *uint      `gorm:"index:idx_docs_layer_scope" json:"scope_id"`
	Status       Status     `gorm:"size:16;not null;index" json:"status"`
	Title        string     `gorm:"size:256;not null" json:"title"`
	Content      string     `gorm:"type:mediumtext;not null" json:"-"`
	SourceType   string     `gorm:"size:32" json:"source_type"`
	QualityLevel int        `gorm:"not null;default:0" json:"quality_level"`
	RejectReason string     `gorm:"size:512" json:"reject_reason,omitempty"`
	CreatedBy    uint       `gorm:"not null;index" json:"created_by"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
