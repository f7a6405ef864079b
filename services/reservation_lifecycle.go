package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/restaurant-reservations/events"
	"github.com/yeremiapane/restaurant-reservations/models"
)

type ReservationRequest struct {
	UserID           uint
	PartySize        int
	Time             TimeSpec
	PreferredTableID *uint
	Notes            string
}

// Assignment is the outcome of a create or assign call. Table is nil for a
// pending reservation. Shortfall > 0 means the soft capacity policy bound a
// table smaller than the party.
type Assignment struct {
	Reservation *models.Reservation `json:"reservation"`
	Table       *models.Table       `json:"table,omitempty"`
	Shortfall   int                 `json:"shortfall,omitempty"`
}

// Warning returns the soft CapacityInsufficient signal, or nil.
func (a *Assignment) Warning() error {
	if a == nil || a.Shortfall == 0 || a.Table == nil {
		return nil
	}
	return fmt.Errorf("%w: table %d is %d seat(s) short for the party",
		ErrCapacityInsufficient, a.Table.Number, a.Shortfall)
}

func reservationFields(r *models.Reservation) logrus.Fields {
	f := logrus.Fields{
		"reservation_id": r.ID,
		"user_id":        r.UserID,
		"guests":         r.GuestCount,
		"status":         r.Status,
	}
	if r.TableID != nil {
		f["table_id"] = *r.TableID
	}
	return f
}

func (e *AllocationEngine) validateRequest(req ReservationRequest) (Interval, error) {
	if req.UserID == 0 {
		return Interval{}, fmt.Errorf("%w: user is required", ErrValidation)
	}
	if req.PartySize <= 0 {
		return Interval{}, fmt.Errorf("%w: party size must be positive", ErrValidation)
	}
	return e.policy.Resolve(req.Time, e.clock(), false)
}

// CreateReservation books a party. With a preferred table the booking is
// bound to it or fails; without one the deployment policy decides between
// best-fit assignment and a pending reservation.
func (e *AllocationEngine) CreateReservation(ctx context.Context, req ReservationRequest) (*Assignment, error) {
	iv, err := e.validateRequest(req)
	if err != nil {
		return nil, err
	}

	var asg *Assignment
	err = e.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		asg, err = e.createReservationTx(tx, req, iv)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(reservationFields(asg.Reservation)).Info("reservation created")
	e.committed(ctx, reservationEvent(events.ReservationCreated, asg.Reservation))
	return asg, nil
}

func (e *AllocationEngine) createReservationTx(tx *gorm.DB, req ReservationRequest, iv Interval) (*Assignment, error) {
	res := &models.Reservation{
		UserID:     req.UserID,
		GuestCount: req.PartySize,
		StartAt:    iv.Start,
		EndAt:      iv.End,
		Status:     models.ReservationPending,
		Notes:      req.Notes,
	}
	asg := &Assignment{Reservation: res}

	switch {
	case req.PreferredTableID != nil:
		t, err := bindExplicit(tx, *req.PreferredTableID, req.PartySize, iv, 0, ErrTableUnavailable)
		if err != nil {
			return nil, err
		}
		asg.Table = t
	case e.policy.AutoAssign:
		t, shortfall, err := e.bindBestFit(tx, req.PartySize, iv, 0)
		if err != nil {
			return nil, err
		}
		asg.Table, asg.Shortfall = t, shortfall
	}

	if asg.Table != nil {
		res.TableID = &asg.Table.ID
		res.Status = models.ReservationActive
	}
	if err := tx.Create(res).Error; err != nil {
		return nil, err
	}
	res.Table = asg.Table
	return asg, nil
}

func lockReservation(tx *gorm.DB, id uint) (*models.Reservation, error) {
	var r models.Reservation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// AssignTable binds a pending reservation, or rebinds an active one. With
// tableID nil the best-fit search picks the table.
func (e *AllocationEngine) AssignTable(ctx context.Context, reservationID uint, tableID *uint) (*Assignment, error) {
	var (
		asg      *Assignment
		previous *uint
	)
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		res, err := lockReservation(tx, reservationID)
		if err != nil {
			return err
		}
		if !res.CanTransition(models.ReservationActive) {
			return fmt.Errorf("%w: reservation %d is %s", ErrInvalidTransition, res.ID, res.Status)
		}

		iv := Interval{Start: res.StartAt, End: res.EndAt}
		asg = &Assignment{Reservation: res}
		if tableID != nil {
			if asg.Table, err = bindExplicit(tx, *tableID, res.GuestCount, iv, res.ID, ErrCapacityInsufficient); err != nil {
				return err
			}
		} else {
			if asg.Table, asg.Shortfall, err = e.bindBestFit(tx, res.GuestCount, iv, res.ID); err != nil {
				return err
			}
		}

		previous = res.TableID
		if err := tx.Model(res).Updates(map[string]interface{}{
			"table_id": asg.Table.ID,
			"status":   models.ReservationActive,
		}).Error; err != nil {
			return err
		}
		res.TableID = &asg.Table.ID
		res.Status = models.ReservationActive
		res.Table = asg.Table
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := e.log.WithFields(reservationFields(asg.Reservation))
	if previous != nil && *previous != asg.Table.ID {
		entry = entry.WithField("released_table_id", *previous)
	}
	entry.Info("table assigned")
	e.committed(ctx, reservationEvent(events.ReservationAssigned, asg.Reservation))
	return asg, nil
}

// CancelReservation is idempotent: cancelling a cancelled reservation
// returns it unchanged.
func (e *AllocationEngine) CancelReservation(ctx context.Context, reservationID uint) (*models.Reservation, error) {
	var (
		res     *models.Reservation
		changed bool
	)
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		res, changed, err = e.cancelReservationTx(tx, reservationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		e.afterCancel(ctx, res)
	}
	return res, nil
}

func (e *AllocationEngine) afterCancel(ctx context.Context, res *models.Reservation) {
	e.log.WithFields(reservationFields(res)).Info("reservation cancelled")
	e.committed(ctx, reservationEvent(events.ReservationCancelled, res))
}

func (e *AllocationEngine) cancelReservationTx(tx *gorm.DB, id uint) (*models.Reservation, bool, error) {
	res, err := lockReservation(tx, id)
	if err != nil {
		return nil, false, err
	}
	if res.Status == models.ReservationCancelled {
		return res, false, nil
	}
	if !res.CanTransition(models.ReservationCancelled) {
		return nil, false, fmt.Errorf("%w: reservation %d is %s", ErrInvalidTransition, res.ID, res.Status)
	}

	now := e.now().UTC()
	if err := tx.Model(res).Updates(map[string]interface{}{
		"status":       models.ReservationCancelled,
		"cancelled_at": now,
	}).Error; err != nil {
		return nil, false, err
	}
	res.Status = models.ReservationCancelled
	res.CancelledAt = &now
	return res, true, nil
}

// CompleteReservation releases the table of an active reservation.
// Completing a completed reservation is a no-op.
func (e *AllocationEngine) CompleteReservation(ctx context.Context, reservationID uint) (*models.Reservation, error) {
	var (
		res     *models.Reservation
		changed bool
	)
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		res, changed, err = e.completeReservationTx(tx, reservationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		e.afterComplete(ctx, res)
	}
	return res, nil
}

func (e *AllocationEngine) afterComplete(ctx context.Context, res *models.Reservation) {
	e.log.WithFields(reservationFields(res)).Info("reservation completed")
	e.committed(ctx, reservationEvent(events.ReservationCompleted, res))
}

func (e *AllocationEngine) completeReservationTx(tx *gorm.DB, id uint) (*models.Reservation, bool, error) {
	res, err := lockReservation(tx, id)
	if err != nil {
		return nil, false, err
	}
	if res.Status == models.ReservationCompleted {
		return res, false, nil
	}
	if !res.CanTransition(models.ReservationCompleted) {
		return nil, false, fmt.Errorf("%w: reservation %d is %s", ErrInvalidTransition, res.ID, res.Status)
	}

	now := e.now().UTC()
	if err := tx.Model(res).Updates(map[string]interface{}{
		"status":       models.ReservationCompleted,
		"completed_at": now,
	}).Error; err != nil {
		return nil, false, err
	}
	res.Status = models.ReservationCompleted
	res.CompletedAt = &now
	return res, true, nil
}

// FreeTable completes whichever active reservation is seated at the table:
// the most recently started one whose start is not in the future. A table
// with nobody seated is left as is and (nil, nil) returned.
func (e *AllocationEngine) FreeTable(ctx context.Context, tableID uint) (*models.Reservation, error) {
	var (
		res     *models.Reservation
		changed bool
	)
	now := e.clock()
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		if _, err := lockTable(tx, tableID); err != nil {
			return err
		}

		var seated models.Reservation
		err := tx.Where("table_id = ? AND status = ? AND start_at <= ?", tableID, models.ReservationActive, now).
			Order("start_at DESC").
			First(&seated).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res, changed, err = e.completeReservationTx(tx, seated.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		e.afterComplete(ctx, res)
	}
	return res, nil
}

// OnOrderCancelled cancels the reservation linked to the order, if any.
// A reservation that already completed is left untouched.
func (e *AllocationEngine) OnOrderCancelled(ctx context.Context, orderID uint) (*models.Reservation, error) {
	var (
		res     *models.Reservation
		changed bool
	)
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
			}
			return err
		}
		var err error
		res, changed, err = e.cancelLinkedReservationTx(tx, &order)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		e.afterCancel(ctx, res)
	}
	return res, nil
}

func (e *AllocationEngine) cancelLinkedReservationTx(tx *gorm.DB, order *models.Order) (*models.Reservation, bool, error) {
	if order.ReservationID == nil {
		return nil, false, nil
	}
	res, changed, err := e.cancelReservationTx(tx, *order.ReservationID)
	if errors.Is(err, ErrInvalidTransition) {
		e.log.WithField("order_id", order.ID).
			WithField("reservation_id", *order.ReservationID).
			Info("order cancelled after its reservation completed, reservation kept")
		return nil, false, nil
	}
	return res, changed, err
}

// CompleteElapsed moves active reservations whose interval has ended to
// completed and returns them.
func (e *AllocationEngine) CompleteElapsed(ctx context.Context) ([]models.Reservation, error) {
	now := e.clock()
	var done []models.Reservation
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		var due []models.Reservation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ? AND end_at <= ?", models.ReservationActive, now).
			Order("end_at ASC").
			Find(&due).Error; err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}

		ids := make([]uint, len(due))
		for i, r := range due {
			ids[i] = r.ID
		}
		completedAt := e.now().UTC()
		if err := tx.Model(&models.Reservation{}).
			Where("id IN ? AND status = ?", ids, models.ReservationActive).
			Updates(map[string]interface{}{
				"status":       models.ReservationCompleted,
				"completed_at": completedAt,
			}).Error; err != nil {
			return err
		}
		for i := range due {
			due[i].Status = models.ReservationCompleted
			due[i].CompletedAt = &completedAt
		}
		done = due
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(done) > 0 {
		evts := make([]events.Event, 0, len(done))
		for i := range done {
			evts = append(evts, reservationEvent(events.ReservationCompleted, &done[i]))
		}
		e.log.WithField("count", len(done)).Info("elapsed reservations completed")
		e.committed(ctx, evts...)
	}
	return done, nil
}

func (e *AllocationEngine) GetReservation(ctx context.Context, id uint) (*models.Reservation, error) {
	var r models.Reservation
	err := e.db.WithContext(ctx).Preload("Table").First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type ReservationFilter struct {
	UserID  *uint
	TableID *uint
	Status  string
	Date    string // YYYY-MM-DD, restaurant-local
	Limit   int
}

var reservationStatuses = map[string]bool{
	models.ReservationPending:   true,
	models.ReservationActive:    true,
	models.ReservationCompleted: true,
	models.ReservationCancelled: true,
}

// ListReservations returns reservations matching the filter ordered by start.
func (e *AllocationEngine) ListReservations(ctx context.Context, f ReservationFilter) ([]models.Reservation, error) {
	q := e.db.WithContext(ctx).Preload("Table")

	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.TableID != nil {
		q = q.Where("table_id = ?", *f.TableID)
	}
	if f.Status != "" {
		if !reservationStatuses[f.Status] {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
		}
		q = q.Where("status = ?", f.Status)
	}
	if f.Date != "" {
		day, err := e.policy.DayBounds(f.Date)
		if err != nil {
			return nil, err
		}
		q = q.Where("start_at >= ? AND start_at < ?", day.Start, day.End)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []models.Reservation
	if err := q.Order("start_at ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Now exposes the engine clock to callers that validate against it.
func (e *AllocationEngine) Now() time.Time {
	return e.now()
}
