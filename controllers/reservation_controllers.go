package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-reservations/services"
	"github.com/yeremiapane/restaurant-reservations/utils"
)

type ReservationController struct {
	Engine *services.AllocationEngine
}

func NewReservationController(engine *services.AllocationEngine) *ReservationController {
	return &ReservationController{Engine: engine}
}

type reservationRequest struct {
	services.TimeSpec
	PartySize        int    `json:"party_size" binding:"required"`
	PreferredTableID *uint  `json:"preferred_table_id"`
	Notes            string `json:"notes"`
}

func assignmentPayload(asg *services.Assignment) gin.H {
	data := gin.H{"reservation": asg.Reservation}
	if asg.Table != nil {
		data["table"] = asg.Table
	}
	if w := asg.Warning(); w != nil {
		data["warning"] = w.Error()
		data["shortfall"] = asg.Shortfall
	}
	return data
}

// CreateReservation books a table for the caller.
func (rc *ReservationController) CreateReservation(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var req reservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	asg, err := rc.Engine.CreateReservation(c.Request.Context(), services.ReservationRequest{
		UserID:           userID,
		PartySize:        req.PartySize,
		Time:             req.TimeSpec,
		PreferredTableID: req.PreferredTableID,
		Notes:            req.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	msg := "Reservation confirmed"
	if asg.Table == nil {
		msg = "Reservation received, a table will be assigned"
	}
	utils.RespondJSON(c, http.StatusCreated, msg, assignmentPayload(asg))
}

// GetMyReservations lists the caller's reservations, optionally by status or date.
func (rc *ReservationController) GetMyReservations(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := rc.Engine.ListReservations(c.Request.Context(), services.ReservationFilter{
		UserID: &userID,
		Status: c.Query("status"),
		Date:   c.Query("date"),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of reservations", list)
}

// GetReservationByID is open to the owner and to staff.
func (rc *ReservationController) GetReservationByID(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "reservation_id")
	if !ok {
		return
	}

	res, err := rc.Engine.GetReservation(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if res.UserID != userID && !isStaff(role) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation detail", res)
}

// CancelMyReservation cancels one of the caller's own reservations.
func (rc *ReservationController) CancelMyReservation(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "reservation_id")
	if !ok {
		return
	}

	res, err := rc.Engine.GetReservation(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if res.UserID != userID && !isStaff(role) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	res, err = rc.Engine.CancelReservation(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation cancelled", res)
}

// GetAllReservations is the admin listing: ?status=&date=&table_id=&user_id=&limit=
func (rc *ReservationController) GetAllReservations(c *gin.Context) {
	filter := services.ReservationFilter{
		Status: c.Query("status"),
		Date:   c.Query("date"),
	}
	for key, dst := range map[string]**uint{"table_id": &filter.TableID, "user_id": &filter.UserID} {
		if raw := c.Query(key); raw != "" {
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				utils.RespondError(c, http.StatusBadRequest, errors.New("invalid "+key))
				return
			}
			id := uint(v)
			*dst = &id
		}
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		filter.Limit = n
	}

	list, err := rc.Engine.ListReservations(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of reservations", list)
}

// AssignTable binds or rebinds a reservation. Without table_id in the body
// the best-fit table is chosen.
func (rc *ReservationController) AssignTable(c *gin.Context) {
	id, ok := paramID(c, "reservation_id")
	if !ok {
		return
	}
	var body struct {
		TableID *uint `json:"table_id"`
	}
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
	}

	asg, err := rc.Engine.AssignTable(c.Request.Context(), id, body.TableID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table assigned", assignmentPayload(asg))
}

func (rc *ReservationController) CompleteReservation(c *gin.Context) {
	id, ok := paramID(c, "reservation_id")
	if !ok {
		return
	}
	res, err := rc.Engine.CompleteReservation(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation completed", res)
}

func (rc *ReservationController) CancelReservation(c *gin.Context) {
	id, ok := paramID(c, "reservation_id")
	if !ok {
		return
	}
	res, err := rc.Engine.CancelReservation(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation cancelled", res)
}

// GetAvailability reports free tables and seats: ?as_of=RFC3339&window_hours=2
func (rc *ReservationController) GetAvailability(c *gin.Context) {
	asOf := rc.Engine.Now()
	if raw := c.Query("as_of"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("as_of must be RFC3339"))
			return
		}
		asOf = t
	}
	window := 2.0
	if raw := c.Query("window_hours"); raw != "" {
		w, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("window_hours must be a number"))
			return
		}
		window = w
	}

	av, err := rc.Engine.Availability(c.Request.Context(), asOf, window)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Availability", av)
}
