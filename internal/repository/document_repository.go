package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"knowledgehub/internal/access"
	"knowledgehub/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) Delete(id uint) error {
	if err := r.db.Delete(&model.Document{}, id).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}

// UpdateStatusFrom applies a status transition only if the row still holds
// the expected current status, so client-supplied state can never force an
// illegal transition. It reports whether a row was updated.
func (r *DocumentRepository) UpdateStatusFrom(id uint, from, to model.Status, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	res := r.db.Model(&model.Document{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("update document status failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListSearchable returns documents eligible for retrieval: approved documents
// within the allowed scopes, plus pending documents within the preview scopes
// when the requester holds validator capability. Empty scopes yield an empty
// list, never an error.
func (r *DocumentRepository) ListSearchable(scopes, previewScopes []access.Scope) ([]model.Document, error) {
	if len(scopes) == 0 && len(previewScopes) == 0 {
		return nil, nil
	}

	var cond *gorm.DB
	if len(scopes) > 0 {
		cond = r.db.Where("status = ?", model.StatusApproved).Where(scopeExpr(r.db, scopes))
	}
	if len(previewScopes) > 0 {
		pending := r.db.Where("status = ?", model.StatusPending).Where(scopeExpr(r.db, previewScopes))
		if cond == nil {
			cond = pending
		} else {
			cond = cond.Or(pending)
		}
	}

	var docs []model.Document
	if err := r.db.Where(cond).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list searchable documents failed: %w", err)
	}
	return docs, nil
}

// ListBrowsable returns documents the requester may see in listings:
// approved documents in allowed scopes, pending documents in preview scopes,
// and the requester's own drafts and rejected documents.
func (r *DocumentRepository) ListBrowsable(scopes, previewScopes []access.Scope, userID uint) ([]model.Document, error) {
	cond := r.db.Where("created_by = ?", userID)
	if len(scopes) > 0 {
		cond = cond.Or(
			r.db.Where("status = ?", model.StatusApproved).Where(scopeExpr(r.db, scopes)),
		)
	}
	if len(previewScopes) > 0 {
		cond = cond.Or(
			r.db.Where("status = ?", model.StatusPending).Where(scopeExpr(r.db, previewScopes)),
		)
	}

	var docs []model.Document
	if err := r.db.Where(cond).Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list browsable documents failed: %w", err)
	}
	return docs, nil
}

func scopeExpr(db *gorm.DB, scopes []access.Scope) *gorm.DB {
	var expr *gorm.DB
	for _, s := range scopes {
		var c *gorm.DB
		if s.AllScopes || !s.Layer.NeedsScope() {
			c = db.Where("layer = ?", s.Layer)
		} else {
			c = db.Where("layer = ? AND scope_id = ?", s.Layer, s.ScopeID)
		}
		if expr == nil {
			expr = c
		} else {
			expr = expr.Or(c)
		}
	}
	return expr
}
