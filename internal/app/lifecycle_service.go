package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"knowledgehub/internal/access"
	"knowledgehub/internal/model"
)

// transitions is the full lifecycle table. Anything not listed here fails
// with InvalidTransitionError.
var transitions = map[model.Status][]model.Status{
	model.StatusDraft:    {model.StatusPending},
	model.StatusPending:  {model.StatusApproved, model.StatusRejected},
	model.StatusApproved: {model.StatusPending, model.StatusArchived},
}

func transitionAllowed(from, to model.Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// LifecycleStore is the write surface the state machine acts on.
type LifecycleStore interface {
	Create(doc *model.Document) error
	GetByID(id uint) (*model.Document, error)
	UpdateStatusFrom(id uint, from, to model.Status, updates map[string]interface{}) (bool, error)
	Delete(id uint) error
	ListBrowsable(scopes, previewScopes []access.Scope, userID uint) ([]model.Document, error)
}

// ChunkPurger removes a deleted document's chunks from the index.
type ChunkPurger interface {
	DeleteByDocumentID(documentID uint) error
}

// IndexPublisher hands a document to the asynchronous indexing pipeline.
// Indexing is eventually consistent with the lifecycle by design.
type IndexPublisher interface {
	PublishIndex(ctx context.Context, documentID uint) error
}

// ScopeRegistry checks that a document's scope id references a real
// organization/project, and feeds scope resolution.
type ScopeRegistry interface {
	DirectorySource
	ProjectOrganization(ctx context.Context, projectID uint) (uint, error)
	OrganizationExists(ctx context.Context, orgID uint) (bool, error)
}

type LifecycleService struct {
	docs      LifecycleStore
	chunks    ChunkPurger
	publisher IndexPublisher
	registry  ScopeRegistry
}

func NewLifecycleService(docs LifecycleStore, chunks ChunkPurger, publisher IndexPublisher, registry ScopeRegistry) *LifecycleService {
	return &LifecycleService{
		docs:      docs,
		chunks:    chunks,
		publisher: publisher,
		registry:  registry,
	}
}

// CreateDraftInput describes a new document. ScopeID must match the layer:
// nil for platform, an organization/project/user id otherwise.
type CreateDraftInput struct {
	Layer        model.Layer
	ScopeID      *uint
	Title        string
	Content      string
	SourceType   string
	QualityLevel int
}

// CreateDraft validates scope shape and authorship and stores the document
// in the draft state.
func (s *LifecycleService) CreateDraft(ctx context.Context, p access.Principal, input CreateDraftInput) (*model.Document, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, fmt.Errorf("%w: content must not be empty", ErrInvalidInput)
	}
	if !input.Layer.Valid() {
		return nil, fmt.Errorf("%w: unknown layer %q", ErrInvalidInput, input.Layer)
	}
	if input.Layer.NeedsScope() {
		if input.ScopeID == nil {
			return nil, fmt.Errorf("%w: layer %s requires a scope_id", ErrInvalidInput, input.Layer)
		}
	} else if input.ScopeID != nil {
		return nil, fmt.Errorf("%w: platform documents carry no scope_id", ErrInvalidInput)
	}

	if err := s.checkScopeExists(ctx, input.Layer, input.ScopeID); err != nil {
		return nil, err
	}
	if err := s.checkAuthor(ctx, p, input.Layer, input.ScopeID); err != nil {
		return nil, err
	}

	doc := &model.Document{
		Layer:        input.Layer,
		ScopeID:      input.ScopeID,
		Status:       model.StatusDraft,
		Title:        title,
		Content:      input.Content,
		SourceType:   input.SourceType,
		QualityLevel: input.QualityLevel,
		CreatedBy:    p.UserID,
	}
	if err := s.docs.Create(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Submit moves a draft to pending review and schedules indexing so that
// validators can preview the pending content.
func (s *LifecycleService) Submit(ctx context.Context, p access.Principal, documentID uint) (*model.Document, error) {
	doc, err := s.getOwned(p, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(doc, model.StatusPending, nil); err != nil {
		return nil, err
	}
	if err := s.publisher.PublishIndex(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("schedule indexing failed: %w", err)
	}
	return doc, nil
}

// Approve makes a pending document searchable. Only principals with
// validator capability on the document's layer/scope may approve.
func (s *LifecycleService) Approve(ctx context.Context, p access.Principal, documentID uint) (*model.Document, error) {
	doc, err := s.getValidated(ctx, p, documentID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.apply(doc, model.StatusApproved, map[string]interface{}{
		"approved_at":   now,
		"reject_reason": "",
	}); err != nil {
		return nil, err
	}
	doc.ApprovedAt = &now
	doc.RejectReason = ""
	// Re-publish so a missed submit event still converges; the worker
	// replaces chunks idempotently.
	if err := s.publisher.PublishIndex(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("schedule indexing failed: %w", err)
	}
	return doc, nil
}

// Reject is terminal and carries a reason.
func (s *LifecycleService) Reject(ctx context.Context, p access.Principal, documentID uint, reason string) (*model.Document, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a rejection reason is required", ErrInvalidInput)
	}
	doc, err := s.getValidated(ctx, p, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(doc, model.StatusRejected, map[string]interface{}{
		"reject_reason": reason,
	}); err != nil {
		return nil, err
	}
	doc.RejectReason = reason
	return doc, nil
}

// Revise replaces an approved document's content and forces re-review. The
// stale chunks are replaced asynchronously by the indexing worker.
func (s *LifecycleService) Revise(ctx context.Context, p access.Principal, documentID uint, content string) (*model.Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content must not be empty", ErrInvalidInput)
	}
	doc, err := s.getOwned(p, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(doc, model.StatusPending, map[string]interface{}{
		"content":     content,
		"approved_at": nil,
	}); err != nil {
		return nil, err
	}
	doc.Content = content
	doc.ApprovedAt = nil
	if err := s.publisher.PublishIndex(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("schedule indexing failed: %w", err)
	}
	return doc, nil
}

// Archive retires an approved document. The row is retained for audit; its
// chunks stop matching because search filters on status.
func (s *LifecycleService) Archive(ctx context.Context, p access.Principal, documentID uint) (*model.Document, error) {
	doc, err := s.getValidated(ctx, p, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(doc, model.StatusArchived, nil); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes a document and its chunks. Allowed for the creator and for
// validators of the document's scope.
func (s *LifecycleService) Delete(ctx context.Context, p access.Principal, documentID uint) error {
	doc, err := s.docs.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if doc.CreatedBy != p.UserID {
		acc, err := s.resolve(ctx, p)
		if err != nil {
			return err
		}
		if !acc.CanValidate(doc.Layer, doc.ScopeID) {
			return fmt.Errorf("%w: not the creator and no validator capability", ErrPermissionDenied)
		}
	}
	if err := s.chunks.DeleteByDocumentID(doc.ID); err != nil {
		return err
	}
	return s.docs.Delete(doc.ID)
}

// Get returns a document the principal may see: approved within allowed
// scopes, pending within preview scopes, or one of their own.
func (s *LifecycleService) Get(ctx context.Context, p access.Principal, documentID uint) (*model.Document, error) {
	doc, err := s.docs.GetByID(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if doc.CreatedBy == p.UserID {
		return doc, nil
	}
	acc, err := s.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	switch doc.Status {
	case model.StatusApproved:
		if acc.Allows(doc.Layer, doc.ScopeID) {
			return doc, nil
		}
	case model.StatusPending:
		if acc.CanValidate(doc.Layer, doc.ScopeID) {
			return doc, nil
		}
	}
	return nil, fmt.Errorf("%w: document %d is not readable", ErrPermissionDenied, documentID)
}

// List returns the documents visible to the principal, newest first.
func (s *LifecycleService) List(ctx context.Context, p access.Principal) ([]model.Document, error) {
	acc, err := s.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.docs.ListBrowsable(acc.Scopes, acc.PreviewScopes, p.UserID)
}

// apply re-validates the transition against the table and against the
// server-side current state, then persists it atomically.
func (s *LifecycleService) apply(doc *model.Document, to model.Status, updates map[string]interface{}) error {
	if !transitionAllowed(doc.Status, to) {
		return &InvalidTransitionError{DocumentID: doc.ID, From: doc.Status, To: to}
	}
	updated, err := s.docs.UpdateStatusFrom(doc.ID, doc.Status, to, updates)
	if err != nil {
		return err
	}
	if !updated {
		// Lost a race: report against the state the row actually holds.
		current, err := s.docs.GetByID(doc.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrDocumentNotFound
		}
		return &InvalidTransitionError{DocumentID: doc.ID, From: current.Status, To: to}
	}
	doc.Status = to
	return nil
}

func (s *LifecycleService) getOwned(p access.Principal, documentID uint) (*model.Document, error) {
	doc, err := s.docs.GetByID(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if doc.CreatedBy != p.UserID {
		return nil, fmt.Errorf("%w: only the creator may edit document %d", ErrPermissionDenied, documentID)
	}
	return doc, nil
}

func (s *LifecycleService) getValidated(ctx context.Context, p access.Principal, documentID uint) (*model.Document, error) {
	doc, err := s.docs.GetByID(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	acc, err := s.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if !acc.CanValidate(doc.Layer, doc.ScopeID) {
		return nil, fmt.Errorf("%w: no validator capability on layer %s", ErrPermissionDenied, doc.Layer)
	}
	return doc, nil
}

func (s *LifecycleService) resolve(ctx context.Context, p access.Principal) (access.Access, error) {
	var dir access.Directory
	if p.AppRole == access.RoleOrgAdmin && p.OrgID != nil {
		ids, err := s.registry.OrgProjectIDs(ctx, *p.OrgID)
		if err != nil {
			return access.Access{}, fmt.Errorf("load org projects failed: %w", err)
		}
		dir.OrgProjectIDs = ids
	}
	return access.Resolve(p, dir), nil
}

func (s *LifecycleService) checkScopeExists(ctx context.Context, layer model.Layer, scopeID *uint) error {
	switch layer {
	case model.LayerOrganization:
		ok, err := s.registry.OrganizationExists(ctx, *scopeID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: organization %d does not exist", ErrInvalidInput, *scopeID)
		}
	case model.LayerProject:
		orgID, err := s.registry.ProjectOrganization(ctx, *scopeID)
		if err != nil {
			return err
		}
		if orgID == 0 {
			return fmt.Errorf("%w: project %d does not exist", ErrInvalidInput, *scopeID)
		}
	}
	return nil
}

// checkAuthor gates who may create documents in a layer: platform is
// super_admin only, organization its admin, project any member of the
// project's scope, user the owner.
func (s *LifecycleService) checkAuthor(ctx context.Context, p access.Principal, layer model.Layer, scopeID *uint) error {
	if p.AppRole == access.RoleSuperAdmin {
		return nil
	}
	switch layer {
	case model.LayerPlatform:
		return fmt.Errorf("%w: platform documents require super_admin", ErrPermissionDenied)
	case model.LayerOrganization:
		if p.AppRole == access.RoleOrgAdmin && p.OrgID != nil && *p.OrgID == *scopeID {
			return nil
		}
		return fmt.Errorf("%w: organization documents require the organization's admin", ErrPermissionDenied)
	case model.LayerProject:
		acc, err := s.resolve(ctx, p)
		if err != nil {
			return err
		}
		if acc.Allows(model.LayerProject, scopeID) {
			return nil
		}
		return fmt.Errorf("%w: project documents require project access", ErrPermissionDenied)
	case model.LayerUser:
		if *scopeID == p.UserID {
			return nil
		}
		return fmt.Errorf("%w: user documents belong to their owner", ErrPermissionDenied)
	}
	return nil
}
