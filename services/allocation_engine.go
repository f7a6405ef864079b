package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-reservations/events"
	"github.com/yeremiapane/restaurant-reservations/models"
	"github.com/yeremiapane/restaurant-reservations/utils"
)

// Policy is the per-deployment assignment behaviour.
type Policy struct {
	// AutoAssign binds a best-fit table at booking time; otherwise bookings
	// without a preferred table wait as pending for an admin.
	AutoAssign bool
	// StrictCapacity fails best-fit when no free table is large enough;
	// otherwise the largest free table is bound and the shortfall reported.
	StrictCapacity  bool
	DefaultDuration time.Duration
	MaxDuration     time.Duration
	UpcomingLimit   int
	Location        *time.Location
}

func DefaultPolicy() Policy {
	return Policy{
		AutoAssign:      true,
		StrictCapacity:  true,
		DefaultDuration: 2 * time.Hour,
		MaxDuration:     12 * time.Hour,
		UpcomingLimit:   10,
		Location:        time.UTC,
	}
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// AvailabilityCache stores availability snapshots between mutations. Get
// returns the slot that Put must write to.
type AvailabilityCache interface {
	Get(ctx context.Context, key string, dst interface{}) (slot string, hit bool, err error)
	Put(ctx context.Context, slot string, v interface{}) error
	Invalidate(ctx context.Context) error
}

// AllocationEngine owns table inventory and reservation state. Every
// mutation runs in one database transaction.
type AllocationEngine struct {
	db        *gorm.DB
	policy    Policy
	cache     AvailabilityCache
	publisher events.Publisher
	log       logrus.FieldLogger
	now       func() time.Time
}

type Option func(*AllocationEngine)

func WithClock(now func() time.Time) Option {
	return func(e *AllocationEngine) { e.now = now }
}

func WithCache(c AvailabilityCache) Option {
	return func(e *AllocationEngine) { e.cache = c }
}

func WithPublisher(p events.Publisher) Option {
	return func(e *AllocationEngine) { e.publisher = p }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(e *AllocationEngine) { e.log = l }
}

func NewAllocationEngine(db *gorm.DB, policy Policy, opts ...Option) *AllocationEngine {
	if policy.DefaultDuration <= 0 {
		policy.DefaultDuration = DefaultPolicy().DefaultDuration
	}
	if policy.UpcomingLimit <= 0 {
		policy.UpcomingLimit = DefaultPolicy().UpcomingLimit
	}
	e := &AllocationEngine{
		db:        db,
		policy:    policy,
		publisher: events.Nop{},
		log:       utils.InfoLogger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *AllocationEngine) Policy() Policy {
	return e.policy
}

func (e *AllocationEngine) clock() time.Time {
	return e.now().UTC().Truncate(time.Minute)
}

func (e *AllocationEngine) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return translateStoreError(e.db.WithContext(ctx).Transaction(fn))
}

// committed runs after a successful mutation: drop cached availability and
// announce the change. Neither step can fail the operation.
func (e *AllocationEngine) committed(ctx context.Context, evts ...events.Event) {
	if e.cache != nil {
		if err := e.cache.Invalidate(ctx); err != nil {
			e.log.WithError(err).Warn("availability cache invalidate failed")
		}
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	for _, evt := range evts {
		if err := e.publisher.Publish(pubCtx, evt); err != nil {
			e.log.WithError(err).WithField("event", evt.Type).Warn("publish event failed")
		}
	}
}

func reservationEvent(eventType string, r *models.Reservation) events.Event {
	evt := events.New(eventType)
	evt.ReservationID = r.ID
	evt.Status = r.Status
	if r.TableID != nil {
		evt.TableID = *r.TableID
	}
	evt.Data = r
	return evt
}

func tableEvent(eventType string, t *models.Table) events.Event {
	evt := events.New(eventType)
	evt.TableID = t.ID
	evt.Data = t
	return evt
}

type ReservationSummary struct {
	ID          uint      `json:"id"`
	TableID     *uint     `json:"table_id"`
	TableNumber *int      `json:"table_number,omitempty"`
	GuestCount  int       `json:"guest_count"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	Status      string    `json:"status"`
}

type Availability struct {
	AsOf            time.Time            `json:"as_of"`
	Until           time.Time            `json:"until"`
	TotalTables     int                  `json:"total_tables"`
	TotalSeats      int                  `json:"total_seats"`
	AvailableTables int                  `json:"available_tables"`
	AvailableSeats  int                  `json:"available_seats"`
	Upcoming        []ReservationSummary `json:"upcoming"`
}

const maxWindowHours = 24

// Availability reports free tables and seats over [asOf, asOf+windowHours).
// A bound active reservation takes its whole table out of the count; a
// pending one takes its guest count off the seats.
func (e *AllocationEngine) Availability(ctx context.Context, asOf time.Time, windowHours float64) (*Availability, error) {
	if windowHours <= 0 || windowHours > maxWindowHours {
		return nil, fmt.Errorf("%w: window must be between 0 and %d hours", ErrValidation, maxWindowHours)
	}
	window := Interval{Start: asOf.UTC().Truncate(time.Minute)}
	window.End = window.Start.Add(time.Duration(windowHours * float64(time.Hour))).Truncate(time.Minute)
	if !window.End.After(window.Start) {
		return nil, fmt.Errorf("%w: window is shorter than a minute", ErrValidation)
	}

	key := fmt.Sprintf("%d:%d", window.Start.Unix(), int64(window.Duration()/time.Minute))
	var slot string
	if e.cache != nil {
		var cached Availability
		s, hit, err := e.cache.Get(ctx, key, &cached)
		if err != nil {
			e.log.WithError(err).Warn("availability cache read failed")
		} else if hit {
			return &cached, nil
		}
		slot = s
	}

	result, err := e.computeAvailability(e.db.WithContext(ctx), window)
	if err != nil {
		return nil, err
	}

	if e.cache != nil && slot != "" {
		if err := e.cache.Put(ctx, slot, result); err != nil {
			e.log.WithError(err).Warn("availability cache write failed")
		}
	}
	return result, nil
}

func (e *AllocationEngine) computeAvailability(db *gorm.DB, window Interval) (*Availability, error) {
	var tables []models.Table
	if err := db.Where("active = ?", true).Find(&tables).Error; err != nil {
		return nil, err
	}

	var overlapping []models.Reservation
	if err := db.
		Where("status IN ? AND start_at < ? AND end_at > ?",
			[]string{models.ReservationActive, models.ReservationPending}, window.End, window.Start).
		Find(&overlapping).Error; err != nil {
		return nil, err
	}

	capacity := make(map[uint]int, len(tables))
	result := &Availability{AsOf: window.Start, Until: window.End, TotalTables: len(tables)}
	for _, t := range tables {
		capacity[t.ID] = t.Capacity
		result.TotalSeats += t.Capacity
	}

	busy := make(map[uint]bool)
	reserved := 0
	for _, r := range overlapping {
		switch {
		case r.Status == models.ReservationActive && r.TableID != nil:
			if seats, ok := capacity[*r.TableID]; ok && !busy[*r.TableID] {
				busy[*r.TableID] = true
				reserved += seats
			}
		case r.Status == models.ReservationPending:
			reserved += r.GuestCount
		}
	}

	result.AvailableTables = len(tables) - len(busy)
	result.AvailableSeats = result.TotalSeats - reserved
	if result.AvailableSeats < 0 {
		result.AvailableSeats = 0
	}

	upcoming, err := e.upcoming(db, window.Start)
	if err != nil {
		return nil, err
	}
	result.Upcoming = upcoming
	return result, nil
}

func (e *AllocationEngine) upcoming(db *gorm.DB, asOf time.Time) ([]ReservationSummary, error) {
	var rows []models.Reservation
	if err := db.Preload("Table").
		Where("status IN ? AND end_at > ?", []string{models.ReservationActive, models.ReservationPending}, asOf).
		Order("start_at ASC").Order("id ASC").
		Limit(e.policy.UpcomingLimit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]ReservationSummary, 0, len(rows))
	for _, r := range rows {
		s := ReservationSummary{
			ID:         r.ID,
			TableID:    r.TableID,
			GuestCount: r.GuestCount,
			StartAt:    r.StartAt,
			EndAt:      r.EndAt,
			Status:     r.Status,
		}
		if r.Table != nil {
			n := r.Table.Number
			s.TableNumber = &n
		}
		out = append(out, s)
	}
	return out, nil
}
