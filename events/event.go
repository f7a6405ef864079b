// Package events carries reservation and table changes to whoever watches the
// floor: the staff websocket board and, optionally, a message broker.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	ReservationCreated   = "reservation.created"
	ReservationAssigned  = "reservation.assigned"
	ReservationCancelled = "reservation.cancelled"
	ReservationCompleted = "reservation.completed"
	TableCreated         = "table.created"
	TableUpdated         = "table.updated"
	TableDeactivated     = "table.deactivated"
	TableDeleted         = "table.deleted"
	OrderCreated         = "order.created"
	OrderUpdated         = "order.updated"
	OrderCancelled       = "order.cancelled"
)

type Event struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"`
	OccurredAt    time.Time   `json:"occurred_at"`
	ReservationID uint        `json:"reservation_id,omitempty"`
	TableID       uint        `json:"table_id,omitempty"`
	OrderID       uint        `json:"order_id,omitempty"`
	Status        string      `json:"status,omitempty"`
	Data          interface{} `json:"data,omitempty"`
}

func New(eventType string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
}

// Key groups events of one aggregate onto the same partition.
func (e Event) Key() string {
	switch {
	case e.ReservationID != 0:
		return "reservation-" + strconv.FormatUint(uint64(e.ReservationID), 10)
	case e.TableID != 0:
		return "table-" + strconv.FormatUint(uint64(e.TableID), 10)
	case e.OrderID != 0:
		return "order-" + strconv.FormatUint(uint64(e.OrderID), 10)
	}
	return e.ID
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
