package models

import "time"

// MetricSample is one recorded value for a (project, metric type) pair.
// Samples are immutable once recorded; the engine only ever reads the
// most recent one and judges staleness by wall-clock delta from now.
type MetricSample struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	ProjectID  uint      `json:"project_id" gorm:"not null;index:idx_samples_project_metric"`
	MetricType string    `json:"metric_type" gorm:"not null;index:idx_samples_project_metric"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
}

// Age returns how far in the past the sample was recorded.
func (s *MetricSample) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}
