package models

import "gorm.io/gorm"

// Project owns rules and metric samples. Only the display name matters
// to the engine; it is carried into notification contexts.
type Project struct {
	gorm.Model
	Name        string `json:"name" gorm:"not null"`
	Description string `json:"description"`
}
