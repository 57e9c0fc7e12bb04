package store

import (
	"errors"
	"fmt"

	"github.com/pulsewatch/internal/models"
	"gorm.io/gorm"
)

// ProjectStore persists projects.
type ProjectStore struct {
	db *gorm.DB
}

func NewProjectStore(db *gorm.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

func (s *ProjectStore) Create(project *models.Project) error {
	if err := s.db.Create(project).Error; err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *ProjectStore) Get(id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	return &project, nil
}

func (s *ProjectStore) List() ([]models.Project, error) {
	var projects []models.Project
	if err := s.db.Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *ProjectStore) Count() (int64, error) {
	var n int64
	if err := s.db.Model(&models.Project{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return n, nil
}

// Name returns the display name for a project, used when composing
// notification contexts.
func (s *ProjectStore) Name(id uint) (string, error) {
	project, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return project.Name, nil
}
