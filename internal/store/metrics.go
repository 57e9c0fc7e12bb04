package store

import (
	"errors"
	"fmt"

	"github.com/pulsewatch/internal/models"
	"gorm.io/gorm"
)

// MetricStore persists metric samples. The engine's only read path is
// Latest; everything else exists for the ingest surface.
type MetricStore struct {
	db *gorm.DB
}

func NewMetricStore(db *gorm.DB) *MetricStore {
	return &MetricStore{db: db}
}

func (s *MetricStore) Insert(sample *models.MetricSample) error {
	if err := s.db.Create(sample).Error; err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// Latest returns the most recent sample for a (project, metric type)
// pair, or (nil, nil) when none has been recorded.
func (s *MetricStore) Latest(projectID uint, metricType string) (*models.MetricSample, error) {
	var sample models.MetricSample
	err := s.db.
		Where("project_id = ? AND metric_type = ?", projectID, metricType).
		Order("timestamp DESC").
		First(&sample).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest sample for project %d %s: %w", projectID, metricType, err)
	}
	return &sample, nil
}
