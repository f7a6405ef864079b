package models

import "time"

// Table is a physical seating unit. Occupancy is derived from overlapping
// active reservations, never stored on the table itself.
type Table struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Number    int       `gorm:"not null;index" json:"number"`
	Capacity  int       `gorm:"not null" json:"capacity"`
	Active    bool      `gorm:"not null" json:"active"`
	Version   uint      `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
