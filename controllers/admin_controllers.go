package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-reservations/models"
	"github.com/yeremiapane/restaurant-reservations/services"
	"github.com/yeremiapane/restaurant-reservations/utils"
)

type AdminController struct {
	DB     *gorm.DB
	Engine *services.AllocationEngine
}

func NewAdminController(db *gorm.DB, engine *services.AllocationEngine) *AdminController {
	return &AdminController{DB: db, Engine: engine}
}

type statusCount struct {
	Status string
	Total  int64
}

// GetDashboardStats summarises today's floor: reservations and orders by
// status, table counts and what is free over the next two hours.
func (ac *AdminController) GetDashboardStats(c *gin.Context) {
	ctx := c.Request.Context()
	now := ac.Engine.Now()
	loc := ac.Engine.Policy().Location
	if loc == nil {
		loc = time.UTC
	}
	today, err := ac.Engine.Policy().DayBounds(now.In(loc).Format("2006-01-02"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var stats struct {
		Date              string           `json:"date"`
		ReservationsToday map[string]int64 `json:"reservations_today"`
		GuestsToday       int64            `json:"guests_today"`
		OrdersToday       map[string]int64 `json:"orders_today"`
		RevenueToday      float64          `json:"revenue_today"`
		TableStats        struct {
			Active   int64 `json:"active"`
			Inactive int64 `json:"inactive"`
		} `json:"table_stats"`
		Availability *services.Availability `json:"availability"`
	}
	stats.Date = now.In(loc).Format("2006-01-02")
	stats.ReservationsToday = map[string]int64{}
	stats.OrdersToday = map[string]int64{}

	db := ac.DB.WithContext(ctx)

	var resCounts []statusCount
	if err := db.Model(&models.Reservation{}).
		Select("status, COUNT(*) AS total").
		Where("start_at >= ? AND start_at < ?", today.Start, today.End).
		Group("status").Scan(&resCounts).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	for _, rc := range resCounts {
		stats.ReservationsToday[rc.Status] = rc.Total
	}

	if err := db.Model(&models.Reservation{}).
		Where("start_at >= ? AND start_at < ? AND status IN ?", today.Start, today.End,
			[]string{models.ReservationPending, models.ReservationActive, models.ReservationCompleted}).
		Select("COALESCE(SUM(guest_count), 0)").Row().Scan(&stats.GuestsToday); err != nil {
		respondServiceError(c, err)
		return
	}

	var orderCounts []statusCount
	if err := db.Model(&models.Order{}).
		Select("status, COUNT(*) AS total").
		Where("created_at >= ? AND created_at < ?", today.Start, today.End).
		Group("status").Scan(&orderCounts).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	for _, oc := range orderCounts {
		stats.OrdersToday[oc.Status] = oc.Total
	}

	if err := db.Model(&models.Order{}).
		Where("created_at >= ? AND created_at < ? AND status <> ?", today.Start, today.End, models.OrderCancelled).
		Select("COALESCE(SUM(total_amount), 0)").Row().Scan(&stats.RevenueToday); err != nil {
		respondServiceError(c, err)
		return
	}

	db.Model(&models.Table{}).Where("active = ?", true).Count(&stats.TableStats.Active)
	db.Model(&models.Table{}).Where("active = ?", false).Count(&stats.TableStats.Inactive)

	if stats.Availability, err = ac.Engine.Availability(ctx, now, 2); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Dashboard stats", stats)
}
