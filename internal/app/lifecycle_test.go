package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledgehub/internal/access"
	"knowledgehub/internal/model"
)

type memDocStore struct {
	docs   map[uint]*model.Document
	nextID uint
}

func newMemDocStore() *memDocStore {
	return &memDocStore{docs: map[uint]*model.Document{}, nextID: 1}
}

func (m *memDocStore) Create(doc *model.Document) error {
	doc.ID = m.nextID
	m.nextID++
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memDocStore) GetByID(id uint) (*model.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (m *memDocStore) UpdateStatusFrom(id uint, from, to model.Status, updates map[string]interface{}) (bool, error) {
	doc, ok := m.docs[id]
	if !ok || doc.Status != from {
		return false, nil
	}
	doc.Status = to
	for k, v := range updates {
		switch k {
		case "approved_at":
			if v == nil {
				doc.ApprovedAt = nil
			} else if ts, ok := v.(time.Time); ok {
				doc.ApprovedAt = &ts
			}
		case "reject_reason":
			doc.RejectReason = v.(string)
		case "content":
			doc.Content = v.(string)
		}
	}
	return true, nil
}

func (m *memDocStore) Delete(id uint) error {
	delete(m.docs, id)
	return nil
}

func (m *memDocStore) ListBrowsable(scopes, previewScopes []access.Scope, userID uint) ([]model.Document, error) {
	var out []model.Document
	for _, doc := range m.docs {
		switch {
		case doc.CreatedBy == userID:
			out = append(out, *doc)
		case doc.Status == model.StatusApproved && scopeMatches(scopes, *doc):
			out = append(out, *doc)
		case doc.Status == model.StatusPending && scopeMatches(previewScopes, *doc):
			out = append(out, *doc)
		}
	}
	return out, nil
}

type fakePurger struct {
	purged []uint
}

func (f *fakePurger) DeleteByDocumentID(id uint) error {
	f.purged = append(f.purged, id)
	return nil
}

type fakePublisher struct {
	published []uint
}

func (f *fakePublisher) PublishIndex(_ context.Context, id uint) error {
	f.published = append(f.published, id)
	return nil
}

type fakeRegistry struct {
	orgProjects map[uint][]uint
	projectOrg  map[uint]uint
	orgs        map[uint]bool
}

func (f *fakeRegistry) OrgProjectIDs(_ context.Context, orgID uint) ([]uint, error) {
	return f.orgProjects[orgID], nil
}

func (f *fakeRegistry) ProjectOrganization(_ context.Context, projectID uint) (uint, error) {
	return f.projectOrg[projectID], nil
}

func (f *fakeRegistry) OrganizationExists(_ context.Context, orgID uint) (bool, error) {
	return f.orgs[orgID], nil
}

type lifecycleFixture struct {
	svc       *LifecycleService
	store     *memDocStore
	purger    *fakePurger
	publisher *fakePublisher
}

func newLifecycleFixture() *lifecycleFixture {
	store := newMemDocStore()
	purger := &fakePurger{}
	publisher := &fakePublisher{}
	registry := &fakeRegistry{
		orgProjects: map[uint][]uint{1: {5}},
		projectOrg:  map[uint]uint{5: 1},
		orgs:        map[uint]bool{1: true, 2: true},
	}
	return &lifecycleFixture{
		svc:       NewLifecycleService(store, purger, publisher, registry),
		store:     store,
		purger:    purger,
		publisher: publisher,
	}
}

var (
	orgOne    = uint(1)
	rootUser  = access.Principal{UserID: 100, AppRole: access.RoleSuperAdmin}
	orgAdmin  = access.Principal{UserID: 9, AppRole: access.RoleOrgAdmin, OrgID: &orgOne}
	plainUser = access.Principal{UserID: 2, AppRole: access.RoleMember, OrgID: &orgOne, Projects: []access.ProjectMembership{{ProjectID: 5, Role: "member"}}}
	otherUser = access.Principal{UserID: 3, AppRole: access.RoleMember}
)

func (f *lifecycleFixture) draft(t *testing.T, p access.Principal, layer model.Layer, scopeID *uint) *model.Document {
	t.Helper()
	doc, err := f.svc.CreateDraft(context.Background(), p, CreateDraftInput{
		Layer:   layer,
		ScopeID: scopeID,
		Title:   "title",
		Content: "some content",
	})
	require.NoError(t, err)
	return doc
}

func TestTransitionTable(t *testing.T) {
	allowed := map[model.Status][]model.Status{
		model.StatusDraft:    {model.StatusPending},
		model.StatusPending:  {model.StatusApproved, model.StatusRejected},
		model.StatusApproved: {model.StatusPending, model.StatusArchived},
	}
	all := []model.Status{model.StatusDraft, model.StatusPending, model.StatusApproved, model.StatusRejected, model.StatusArchived}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, transitionAllowed(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCreateDraftValidation(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	cases := []struct {
		name  string
		p     access.Principal
		input CreateDraftInput
		want  error
	}{
		{"empty title", plainUser, CreateDraftInput{Layer: model.LayerUser, ScopeID: &plainUser.UserID, Content: "c"}, ErrInvalidInput},
		{"empty content", plainUser, CreateDraftInput{Layer: model.LayerUser, ScopeID: &plainUser.UserID, Title: "t"}, ErrInvalidInput},
		{"unknown layer", plainUser, CreateDraftInput{Layer: "galaxy", Title: "t", Content: "c"}, ErrInvalidInput},
		{"platform with scope", rootUser, CreateDraftInput{Layer: model.LayerPlatform, ScopeID: &orgOne, Title: "t", Content: "c"}, ErrInvalidInput},
		{"org missing scope", orgAdmin, CreateDraftInput{Layer: model.LayerOrganization, Title: "t", Content: "c"}, ErrInvalidInput},
		{"nonexistent org", rootUser, CreateDraftInput{Layer: model.LayerOrganization, ScopeID: uintP(77), Title: "t", Content: "c"}, ErrInvalidInput},
		{"nonexistent project", rootUser, CreateDraftInput{Layer: model.LayerProject, ScopeID: uintP(77), Title: "t", Content: "c"}, ErrInvalidInput},
		{"platform needs super_admin", orgAdmin, CreateDraftInput{Layer: model.LayerPlatform, Title: "t", Content: "c"}, ErrPermissionDenied},
		{"org doc needs own org admin", plainUser, CreateDraftInput{Layer: model.LayerOrganization, ScopeID: &orgOne, Title: "t", Content: "c"}, ErrPermissionDenied},
		{"foreign org admin denied", orgAdmin, CreateDraftInput{Layer: model.LayerOrganization, ScopeID: uintP(2), Title: "t", Content: "c"}, ErrPermissionDenied},
		{"project doc needs membership", otherUser, CreateDraftInput{Layer: model.LayerProject, ScopeID: uintP(5), Title: "t", Content: "c"}, ErrPermissionDenied},
		{"user doc owned by someone else", plainUser, CreateDraftInput{Layer: model.LayerUser, ScopeID: uintP(999), Title: "t", Content: "c"}, ErrPermissionDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateDraft(ctx, tc.p, tc.input)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("valid drafts", func(t *testing.T) {
		for _, tc := range []struct {
			p       access.Principal
			layer   model.Layer
			scopeID *uint
		}{
			{rootUser, model.LayerPlatform, nil},
			{orgAdmin, model.LayerOrganization, &orgOne},
			{plainUser, model.LayerProject, uintP(5)},
			{plainUser, model.LayerUser, &plainUser.UserID},
		} {
			doc := f.draft(t, tc.p, tc.layer, tc.scopeID)
			assert.Equal(t, model.StatusDraft, doc.Status)
			assert.Equal(t, tc.p.UserID, doc.CreatedBy)
		}
	})
}

func TestSubmitApproveFlow(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	doc := f.draft(t, plainUser, model.LayerProject, uintP(5))

	t.Run("only the creator submits", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, otherUser, doc.ID)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("submit schedules indexing", func(t *testing.T) {
		out, err := f.svc.Submit(ctx, plainUser, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, out.Status)
		assert.Equal(t, []uint{doc.ID}, f.publisher.published)
	})

	t.Run("members cannot approve", func(t *testing.T) {
		_, err := f.svc.Approve(ctx, plainUser, doc.ID)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("org admin approves project doc of own org", func(t *testing.T) {
		out, err := f.svc.Approve(ctx, orgAdmin, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusApproved, out.Status)
		require.NotNil(t, out.ApprovedAt)
		// approval re-publishes so indexing converges
		assert.Equal(t, []uint{doc.ID, doc.ID}, f.publisher.published)
	})

	t.Run("double approve is an invalid transition", func(t *testing.T) {
		_, err := f.svc.Approve(ctx, orgAdmin, doc.ID)
		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, model.StatusApproved, invalid.From)
		assert.Equal(t, model.StatusApproved, invalid.To)
	})
}

func TestRejectFlow(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	doc := f.draft(t, plainUser, model.LayerProject, uintP(5))
	_, err := f.svc.Submit(ctx, plainUser, doc.ID)
	require.NoError(t, err)

	t.Run("reason is required", func(t *testing.T) {
		_, err := f.svc.Reject(ctx, orgAdmin, doc.ID, "  ")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("reject is terminal and carries the reason", func(t *testing.T) {
		out, err := f.svc.Reject(ctx, orgAdmin, doc.ID, "duplicates the runbook")
		require.NoError(t, err)
		assert.Equal(t, model.StatusRejected, out.Status)
		assert.Equal(t, "duplicates the runbook", out.RejectReason)

		_, err = f.svc.Submit(ctx, plainUser, doc.ID)
		var invalid *InvalidTransitionError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestReviseForcesReReview(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	doc := f.draft(t, plainUser, model.LayerProject, uintP(5))
	_, err := f.svc.Submit(ctx, plainUser, doc.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, orgAdmin, doc.ID)
	require.NoError(t, err)

	out, err := f.svc.Revise(ctx, plainUser, doc.ID, "rewritten content")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, out.Status)
	assert.Equal(t, "rewritten content", out.Content)
	assert.Nil(t, out.ApprovedAt)
	// submit + approve + revise each published
	assert.Len(t, f.publisher.published, 3)
}

func TestArchiveIsTerminal(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	doc := f.draft(t, plainUser, model.LayerProject, uintP(5))
	_, err := f.svc.Submit(ctx, plainUser, doc.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, orgAdmin, doc.ID)
	require.NoError(t, err)

	out, err := f.svc.Archive(ctx, orgAdmin, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArchived, out.Status)

	_, err = f.svc.Revise(ctx, plainUser, doc.ID, "new content")
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, model.StatusArchived, invalid.From)
}

func TestDeleteRemovesChunks(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	doc := f.draft(t, plainUser, model.LayerProject, uintP(5))

	t.Run("strangers cannot delete", func(t *testing.T) {
		err := f.svc.Delete(ctx, otherUser, doc.ID)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("creator deletes and chunks are purged", func(t *testing.T) {
		require.NoError(t, f.svc.Delete(ctx, plainUser, doc.ID))
		assert.Equal(t, []uint{doc.ID}, f.purger.purged)

		err := f.svc.Delete(ctx, plainUser, doc.ID)
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})
}

func TestGetVisibility(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	doc := f.draft(t, plainUser, model.LayerProject, uintP(5))

	t.Run("draft visible to creator only", func(t *testing.T) {
		_, err := f.svc.Get(ctx, plainUser, doc.ID)
		require.NoError(t, err)
		_, err = f.svc.Get(ctx, otherUser, doc.ID)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("pending visible to validators", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, plainUser, doc.ID)
		require.NoError(t, err)
		_, err = f.svc.Get(ctx, orgAdmin, doc.ID)
		require.NoError(t, err)
		_, err = f.svc.Get(ctx, otherUser, doc.ID)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("approved visible within scope", func(t *testing.T) {
		_, err := f.svc.Approve(ctx, orgAdmin, doc.ID)
		require.NoError(t, err)
		_, err = f.svc.Get(ctx, rootUser, doc.ID)
		require.NoError(t, err)
		_, err = f.svc.Get(ctx, otherUser, doc.ID)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := f.svc.Get(ctx, rootUser, 9999)
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})
}

func uintP(v uint) *uint { return &v }
