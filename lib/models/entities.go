package models

import "time"

// Setting is one row of the key-value store. Value holds JSON.
type Setting struct {
	Name      string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}
