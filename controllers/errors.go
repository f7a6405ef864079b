package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-reservations/models"
	"github.com/yeremiapane/restaurant-reservations/services"
	"github.com/yeremiapane/restaurant-reservations/utils"
)

var ErrNoPermission = &CustomError{"You do not have permission"}

type CustomError struct {
	Message string
}

func (e *CustomError) Error() string {
	return e.Message
}

var errInternal = errors.New("internal server error")

// respondServiceError maps service error kinds to HTTP statuses. Anything
// unrecognised is logged and reported as 500 without detail.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.Is(err, services.ErrNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
	case errors.Is(err, services.ErrForbidden):
		utils.RespondError(c, http.StatusForbidden, err)
	case errors.Is(err, services.ErrConcurrentModification):
		utils.RespondErrorData(c, http.StatusConflict, services.ErrConcurrentModification, gin.H{"retryable": true})
	case errors.Is(err, services.ErrCapacityInsufficient):
		utils.RespondError(c, http.StatusUnprocessableEntity, err)
	case errors.Is(err, services.ErrTableUnavailable),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrTableNumberTaken),
		errors.Is(err, services.ErrTableHasHistory),
		errors.Is(err, services.ErrCategoryNotEmpty):
		utils.RespondError(c, http.StatusConflict, err)
	default:
		utils.ErrorLogger.WithError(err).
			WithField("path", c.FullPath()).
			WithField("request_id", c.GetString("request_id")).
			Error("unhandled error")
		utils.RespondError(c, http.StatusInternalServerError, errInternal)
	}
}

// currentUser reads the identity the auth middleware put on the context.
func currentUser(c *gin.Context) (uint, string, bool) {
	userID, ok := c.Get("user_id")
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return 0, "", false
	}
	id, ok := userID.(uint)
	if !ok || id == 0 {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid user id in token"))
		return 0, "", false
	}
	return id, c.GetString("role"), true
}

func isStaff(role string) bool {
	return role == models.RoleAdmin || role == models.RoleStaff
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid "+name))
		return 0, false
	}
	return uint(id), true
}
