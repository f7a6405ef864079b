package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yeremiapane/restaurant-reservations/floor"
	"github.com/yeremiapane/restaurant-reservations/utils"
)

type FloorController struct {
	Hub      *floor.Hub
	upgrader websocket.Upgrader
}

// NewFloorController accepts websocket upgrades from allowedOrigin only;
// "*" accepts any origin.
func NewFloorController(hub *floor.Hub, allowedOrigin string) *FloorController {
	return &FloorController{
		Hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
}

// FloorHandler streams reservation and table events to staff.
func (fc *FloorController) FloorHandler(c *gin.Context) {
	role := c.GetString("role")
	if !isStaff(role) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	ws, err := fc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.InfoLogger.WithError(err).Warn("floor websocket upgrade failed")
		return
	}
	fc.Hub.Register(ws, role)
	defer fc.Hub.Unregister(ws)

	// the board only listens; reading detects the disconnect
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
