package store

import (
	"errors"
	"fmt"

	"github.com/pulsewatch/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// RuleStore persists alert rules.
type RuleStore struct {
	db *gorm.DB
}

func NewRuleStore(db *gorm.DB) *RuleStore {
	return &RuleStore{db: db}
}

func (s *RuleStore) Create(rule *models.Alert) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := s.db.Create(rule).Error; err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

func (s *RuleStore) Save(rule *models.Alert) error {
	if err := s.db.Save(rule).Error; err != nil {
		return fmt.Errorf("save rule %d: %w", rule.ID, err)
	}
	return nil
}

func (s *RuleStore) Delete(id uint) error {
	res := s.db.Delete(&models.Alert{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete rule %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RuleStore) Get(id uint) (*models.Alert, error) {
	var rule models.Alert
	if err := s.db.First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get rule %d: %w", id, err)
	}
	return &rule, nil
}

func (s *RuleStore) List(enabled *bool) ([]models.Alert, error) {
	var rules []models.Alert
	query := s.db
	if enabled != nil {
		query = query.Where("enabled = ?", *enabled)
	}
	if err := query.Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

// ListActive returns the rules the scheduler evaluates each tick.
func (s *RuleStore) ListActive() ([]models.Alert, error) {
	var rules []models.Alert
	if err := s.db.Where("enabled = ?", true).Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	return rules, nil
}

func (s *RuleStore) SetEnabled(id uint, enabled bool) error {
	rule, err := s.Get(id)
	if err != nil {
		return err
	}
	if enabled {
		rule.Enable()
	} else {
		rule.Disable()
	}
	return s.Save(rule)
}

func (s *RuleStore) Count() (int64, error) {
	var n int64
	if err := s.db.Model(&models.Alert{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count rules: %w", err)
	}
	return n, nil
}

// Import inserts a batch of rules in one transaction. IDs are cleared so
// new records are always created.
func (s *RuleStore) Import(rules []models.Alert) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for i := range rules {
			rules[i].ID = 0
			if err := rules[i].Validate(); err != nil {
				return fmt.Errorf("import rule %q: %w", rules[i].Name, err)
			}
			if err := tx.Create(&rules[i]).Error; err != nil {
				return fmt.Errorf("import rule %q: %w", rules[i].Name, err)
			}
		}
		return nil
	})
}

// DefaultRules returns the seed rules installed when the rule table is empty.
func DefaultRules(projectID uint) []models.Alert {
	return []models.Alert{
		{
			ProjectID:            projectID,
			Name:                 "High CPU Usage",
			Description:          "CPU usage above 90% for five minutes",
			MetricType:           "cpu_percent",
			Condition:            models.ConditionGreaterThan,
			Threshold:            90,
			DurationSeconds:      300,
			Severity:             models.SeverityHigh,
			CooldownMinutes:      30,
			Enabled:              true,
			Status:               models.AlertStatusInactive,
			NotificationChannels: []string{models.ChannelEmail},
		},
		{
			ProjectID:            projectID,
			Name:                 "Critical Memory Usage",
			Description:          "Memory usage above 95%",
			MetricType:           "memory_percent",
			Condition:            models.ConditionGreaterThan,
			Threshold:            95,
			DurationSeconds:      180,
			Severity:             models.SeverityCritical,
			CooldownMinutes:      15,
			Enabled:              true,
			Status:               models.AlertStatusInactive,
			NotificationChannels: []string{models.ChannelEmail, models.ChannelChat},
		},
		{
			ProjectID:            projectID,
			Name:                 "Elevated Error Rate",
			Description:          "Error rate above 5%",
			MetricType:           "error_rate",
			Condition:            models.ConditionGreaterThan,
			Threshold:            5,
			DurationSeconds:      120,
			Severity:             models.SeverityCritical,
			CooldownMinutes:      20,
			Enabled:              true,
			Status:               models.AlertStatusInactive,
			NotificationChannels: []string{models.ChannelWebhook},
		},
	}
}
