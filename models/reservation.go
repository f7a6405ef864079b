package models

import "time"

const (
	ReservationPending   = "pending"
	ReservationActive    = "active"
	ReservationCompleted = "completed"
	ReservationCancelled = "cancelled"
)

type Reservation struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	TableID     *uint      `gorm:"index" json:"table_id"`
	Table       *Table     `gorm:"foreignKey:TableID" json:"table,omitempty"`
	GuestCount  int        `gorm:"not null" json:"guest_count"`
	StartAt     time.Time  `gorm:"not null;index" json:"start_at"`
	EndAt       time.Time  `gorm:"not null;index" json:"end_at"`
	Status      string     `gorm:"type:varchar(20);not null;index" json:"status"`
	Notes       string     `gorm:"type:text" json:"notes"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

var reservationTransitions = map[string][]string{
	ReservationPending: {ReservationActive, ReservationCancelled},
	ReservationActive:  {ReservationActive, ReservationCompleted, ReservationCancelled},
}

// CanTransition reports whether the reservation may move to status.
// active -> active is a table rebind.
func (r *Reservation) CanTransition(status string) bool {
	for _, next := range reservationTransitions[r.Status] {
		if next == status {
			return true
		}
	}
	return false
}

func (r *Reservation) IsTerminal() bool {
	return r.Status == ReservationCompleted || r.Status == ReservationCancelled
}

// Overlaps uses half-open intervals: [18:00,20:00) and [20:00,22:00) do not overlap.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartAt.Before(end) && start.Before(r.EndAt)
}
