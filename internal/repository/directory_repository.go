package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"knowledgehub/internal/model"
)

// DirectoryRepository reads the membership data scope resolution needs.
type DirectoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// ProjectIDsByOrganization returns the ids of all projects under the
// organization, ordered ascending.
func (r *DirectoryRepository) ProjectIDsByOrganization(orgID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&model.Project{}).
		Where("organization_id = ?", orgID).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list project ids by organization failed: %w", err)
	}
	return ids, nil
}

// ProjectOrganization returns the owning organization id of a project;
// (0, nil) when the project does not exist.
func (r *DirectoryRepository) ProjectOrganization(projectID uint) (uint, error) {
	var project model.Project
	if err := r.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get project failed: %w", err)
	}
	return project.OrganizationID, nil
}

// OrganizationExists reports whether the organization id is known.
func (r *DirectoryRepository) OrganizationExists(orgID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&model.Organization{}).Where("id = ?", orgID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check organization failed: %w", err)
	}
	return count > 0, nil
}
