package model

// Layer is the visibility tier a document is published into.
type Layer string

const (
	LayerPlatform     Layer = "platform"
	LayerOrganization Layer = "organization"
	LayerProject      Layer = "project"
	LayerUser         Layer = "user"
)

// Valid reports whether l is one of the four known layers.
func (l Layer) Valid() bool {
	switch l {
	case LayerPlatform, LayerOrganization, LayerProject, LayerUser:
		return true
	}
	return false
}

// NeedsScope reports whether documents in this layer carry a scope id.
// Platform documents are global and have none.
func (l Layer) NeedsScope() bool {
	return l != LayerPlatform
}

// Status is the lifecycle state of a document.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusArchived Status = "archived"
)
