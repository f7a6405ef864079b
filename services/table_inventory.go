package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/restaurant-reservations/events"
	"github.com/yeremiapane/restaurant-reservations/models"
)

// TableUpdate lists the only table fields an admin may change.
type TableUpdate struct {
	Number   *int `json:"number"`
	Capacity *int `json:"capacity"`
}

// numberTaken reads the rows holding number FOR UPDATE. On InnoDB the locking
// read also covers the index gap, so two writers claiming the same free number
// conflict and one of them fails with a deadlock instead of both inserting.
func numberTaken(tx *gorm.DB, number int, exceptID uint) (bool, error) {
	var ids []uint
	err := tx.Model(&models.Table{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("number = ? AND active = ? AND id <> ?", number, true, exceptID).
		Pluck("id", &ids).Error
	return len(ids) > 0, err
}

func (e *AllocationEngine) AddTable(ctx context.Context, number, capacity int) (*models.Table, error) {
	if number <= 0 {
		return nil, fmt.Errorf("%w: table number must be positive", ErrValidation)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrValidation)
	}

	t := &models.Table{Number: number, Capacity: capacity, Active: true}
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		taken, err := numberTaken(tx, number, 0)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %d", ErrTableNumberTaken, number)
		}
		return tx.Create(t).Error
	})
	if err != nil {
		return nil, err
	}

	e.log.WithField("table_id", t.ID).WithField("number", t.Number).Info("table added")
	e.committed(ctx, tableEvent(events.TableCreated, t))
	return t, nil
}

// UpdateTable applies an allow-listed change. Capacity may not drop below the
// guest count of any active booking that has not yet ended.
func (e *AllocationEngine) UpdateTable(ctx context.Context, id uint, upd TableUpdate) (*models.Table, error) {
	if upd.Number == nil && upd.Capacity == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if upd.Number != nil && *upd.Number <= 0 {
		return nil, fmt.Errorf("%w: table number must be positive", ErrValidation)
	}
	if upd.Capacity != nil && *upd.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrValidation)
	}

	var t *models.Table
	now := e.clock()
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		if t, err = lockTable(tx, id); err != nil {
			return err
		}

		changes := map[string]interface{}{"version": t.Version + 1}
		if upd.Number != nil {
			if t.Active {
				taken, err := numberTaken(tx, *upd.Number, t.ID)
				if err != nil {
					return err
				}
				if taken {
					return fmt.Errorf("%w: %d", ErrTableNumberTaken, *upd.Number)
				}
			}
			changes["number"] = *upd.Number
		}
		if upd.Capacity != nil {
			var largest int
			if err := tx.Model(&models.Reservation{}).
				Where("table_id = ? AND status = ? AND end_at > ?", t.ID, models.ReservationActive, now).
				Select("COALESCE(MAX(guest_count), 0)").
				Row().Scan(&largest); err != nil {
				return err
			}
			if *upd.Capacity < largest {
				return fmt.Errorf("%w: an upcoming booking on table %d seats %d",
					ErrCapacityInsufficient, t.Number, largest)
			}
			changes["capacity"] = *upd.Capacity
		}

		res := tx.Model(&models.Table{}).Where("id = ? AND version = ?", t.ID, t.Version).Updates(changes)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: table %d", ErrConcurrentModification, t.ID)
		}
		return tx.First(t, t.ID).Error
	})
	if err != nil {
		return nil, err
	}

	e.log.WithField("table_id", t.ID).Info("table updated")
	e.committed(ctx, tableEvent(events.TableUpdated, t))
	return t, nil
}

// DeactivateTable takes a table out of service. It fails while the table
// still holds an active booking that has not ended.
func (e *AllocationEngine) DeactivateTable(ctx context.Context, id uint) (*models.Table, error) {
	var (
		t       *models.Table
		changed bool
	)
	now := e.clock()
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		if t, err = lockTable(tx, id); err != nil {
			return err
		}
		if !t.Active {
			return nil
		}

		var upcoming int64
		if err := tx.Model(&models.Reservation{}).
			Where("table_id = ? AND status = ? AND end_at > ?", t.ID, models.ReservationActive, now).
			Count(&upcoming).Error; err != nil {
			return err
		}
		if upcoming > 0 {
			return fmt.Errorf("%w: table %d still holds %d upcoming reservation(s)",
				ErrTableUnavailable, t.Number, upcoming)
		}

		if err := setActive(tx, t, false); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		e.log.WithField("table_id", t.ID).Info("table deactivated")
		e.committed(ctx, tableEvent(events.TableDeactivated, t))
	}
	return t, nil
}

func (e *AllocationEngine) ActivateTable(ctx context.Context, id uint) (*models.Table, error) {
	var (
		t       *models.Table
		changed bool
	)
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		if t, err = lockTable(tx, id); err != nil {
			return err
		}
		if t.Active {
			return nil
		}
		taken, err := numberTaken(tx, t.Number, t.ID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %d", ErrTableNumberTaken, t.Number)
		}
		if err := setActive(tx, t, true); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		e.log.WithField("table_id", t.ID).Info("table activated")
		e.committed(ctx, tableEvent(events.TableUpdated, t))
	}
	return t, nil
}

func setActive(tx *gorm.DB, t *models.Table, active bool) error {
	res := tx.Model(&models.Table{}).
		Where("id = ? AND version = ?", t.ID, t.Version).
		Updates(map[string]interface{}{"active": active, "version": t.Version + 1})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: table %d", ErrConcurrentModification, t.ID)
	}
	t.Active = active
	t.Version++
	return nil
}

// DeleteTable removes a table that never held a reservation. Tables with
// history must be deactivated.
func (e *AllocationEngine) DeleteTable(ctx context.Context, id uint) error {
	var t *models.Table
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		if t, err = lockTable(tx, id); err != nil {
			return err
		}
		var history int64
		if err := tx.Model(&models.Reservation{}).Where("table_id = ?", id).Count(&history).Error; err != nil {
			return err
		}
		if history > 0 {
			return fmt.Errorf("%w: table %d", ErrTableHasHistory, t.Number)
		}
		return tx.Delete(&models.Table{}, id).Error
	})
	if err != nil {
		return err
	}

	e.log.WithField("table_id", id).Info("table deleted")
	e.committed(ctx, tableEvent(events.TableDeleted, t))
	return nil
}

func (e *AllocationEngine) GetTable(ctx context.Context, id uint) (*models.Table, error) {
	var t models.Table
	err := e.db.WithContext(ctx).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: table %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (e *AllocationEngine) ListTables(ctx context.Context, includeInactive bool) ([]models.Table, error) {
	q := e.db.WithContext(ctx).Order("number ASC").Order("id ASC")
	if !includeInactive {
		q = q.Where("active = ?", true)
	}
	var tables []models.Table
	if err := q.Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}

// AvailableTables lists active tables free for the whole interval that seat
// at least partySize, smallest first. partySize 0 lists every free table.
func (e *AllocationEngine) AvailableTables(ctx context.Context, spec TimeSpec, partySize int) ([]models.Table, error) {
	if partySize < 0 {
		return nil, fmt.Errorf("%w: party size must not be negative", ErrValidation)
	}
	iv, err := e.policy.Resolve(spec, e.clock(), true)
	if err != nil {
		return nil, err
	}

	db := e.db.WithContext(ctx)
	busy, err := busyTables(db, iv, 0)
	if err != nil {
		return nil, err
	}

	var tables []models.Table
	if err := db.Where("active = ? AND capacity >= ?", true, partySize).
		Order("capacity ASC").Order("number ASC").
		Find(&tables).Error; err != nil {
		return nil, err
	}

	free := make([]models.Table, 0, len(tables))
	for _, t := range tables {
		if !busy[t.ID] {
			free = append(free, t)
		}
	}
	return free, nil
}
