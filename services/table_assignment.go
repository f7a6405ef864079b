package services

import (
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/restaurant-reservations/models"
)

// selectBestFit picks the free table with the smallest capacity that still
// seats the party. With no such table it returns the largest free table and
// how many seats it falls short by. Ties go to the lower table number.
func selectBestFit(tables []models.Table, busy map[uint]bool, partySize int) (*models.Table, int) {
	free := make([]models.Table, 0, len(tables))
	for _, t := range tables {
		if t.Active && !busy[t.ID] {
			free = append(free, t)
		}
	}
	if len(free) == 0 {
		return nil, 0
	}

	sort.Slice(free, func(i, j int) bool {
		if free[i].Capacity != free[j].Capacity {
			return free[i].Capacity < free[j].Capacity
		}
		return free[i].Number < free[j].Number
	})

	for i := range free {
		if free[i].Capacity >= partySize {
			return &free[i], 0
		}
	}

	largest := free[len(free)-1]
	for _, t := range free {
		if t.Capacity == largest.Capacity {
			largest = t
			break
		}
	}
	return &largest, partySize - largest.Capacity
}

// busyTables returns the tables held by an active reservation overlapping iv,
// ignoring the reservation being (re)assigned.
func busyTables(tx *gorm.DB, iv Interval, excludeID uint) (map[uint]bool, error) {
	q := tx.Model(&models.Reservation{}).
		Where("status = ? AND table_id IS NOT NULL AND start_at < ? AND end_at > ?",
			models.ReservationActive, iv.End, iv.Start)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var ids []uint
	if err := q.Distinct().Pluck("table_id", &ids).Error; err != nil {
		return nil, err
	}
	busy := make(map[uint]bool, len(ids))
	for _, id := range ids {
		busy[id] = true
	}
	return busy, nil
}

func hasOverlap(tx *gorm.DB, tableID uint, iv Interval, excludeID uint) (bool, error) {
	q := tx.Model(&models.Reservation{}).
		Where("table_id = ? AND status = ? AND start_at < ? AND end_at > ?",
			tableID, models.ReservationActive, iv.End, iv.Start)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// lockTable reads the table row FOR UPDATE. sqlite has no row locks and
// ignores the clause; the version check in claimTable covers it there.
func lockTable(tx *gorm.DB, tableID uint) (*models.Table, error) {
	var t models.Table
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, tableID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: table %d", ErrNotFound, tableID)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// claimTable bumps the table version if nobody else has since t was read.
func claimTable(tx *gorm.DB, t *models.Table) error {
	res := tx.Model(&models.Table{}).
		Where("id = ? AND version = ?", t.ID, t.Version).
		UpdateColumn("version", gorm.Expr("version + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: table %d changed while assigning", ErrConcurrentModification, t.ID)
	}
	t.Version++
	return nil
}

// bindExplicit checks and claims a table named by the caller.
// tooSmall is the error kind for a table below the party size.
func bindExplicit(tx *gorm.DB, tableID uint, partySize int, iv Interval, excludeID uint, tooSmall error) (*models.Table, error) {
	t, err := lockTable(tx, tableID)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, fmt.Errorf("%w: table %d is not in service", ErrTableUnavailable, t.Number)
	}
	if t.Capacity < partySize {
		return nil, fmt.Errorf("%w: table %d seats %d, party of %d", tooSmall, t.Number, t.Capacity, partySize)
	}
	overlap, err := hasOverlap(tx, t.ID, iv, excludeID)
	if err != nil {
		return nil, err
	}
	if overlap {
		return nil, fmt.Errorf("%w: table %d is already booked for %s-%s",
			ErrTableUnavailable, t.Number, iv.Start.Format("15:04"), iv.End.Format("15:04"))
	}
	if err := claimTable(tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// bindBestFit searches for a table and claims it. The returned shortfall is
// non-zero only under the soft capacity policy.
func (e *AllocationEngine) bindBestFit(tx *gorm.DB, partySize int, iv Interval, excludeID uint) (*models.Table, int, error) {
	var tables []models.Table
	if err := tx.Where("active = ?", true).Find(&tables).Error; err != nil {
		return nil, 0, err
	}
	busy, err := busyTables(tx, iv, excludeID)
	if err != nil {
		return nil, 0, err
	}

	choice, shortfall := selectBestFit(tables, busy, partySize)
	if choice == nil {
		return nil, 0, fmt.Errorf("%w: no table free for %s-%s",
			ErrTableUnavailable, iv.Start.Format("15:04"), iv.End.Format("15:04"))
	}
	if shortfall > 0 && e.policy.StrictCapacity {
		return nil, 0, fmt.Errorf("%w: largest free table seats %d, party of %d",
			ErrCapacityInsufficient, choice.Capacity, partySize)
	}

	t, err := lockTable(tx, choice.ID)
	if err != nil {
		return nil, 0, err
	}
	// the table may have been taken between the search and the lock
	overlap, err := hasOverlap(tx, t.ID, iv, excludeID)
	if err != nil {
		return nil, 0, err
	}
	if overlap || t.Version != choice.Version || !t.Active {
		return nil, 0, fmt.Errorf("%w: table %d changed while assigning", ErrConcurrentModification, t.Number)
	}
	if err := claimTable(tx, t); err != nil {
		return nil, 0, err
	}
	return t, shortfall, nil
}
