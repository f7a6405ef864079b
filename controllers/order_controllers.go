package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-reservations/services"
	"github.com/yeremiapane/restaurant-reservations/utils"
)

type OrderController struct {
	Orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{Orders: orders}
}

// CreateOrder places an order; a "reservation" object books a table with it.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Items       []services.OrderItemRequest       `json:"items" binding:"required,dive"`
		Notes       string                            `json:"notes"`
		Reservation *services.OrderReservationRequest `json:"reservation"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	out, err := oc.Orders.CreateOrderWithReservation(c.Request.Context(), services.OrderRequest{
		UserID:      userID,
		Items:       req.Items,
		Notes:       req.Notes,
		Reservation: req.Reservation,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	data := gin.H{"order": out.Order}
	if out.Reservation != nil {
		data["reservation"] = assignmentPayload(out.Reservation)
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created", data)
}

func (oc *OrderController) GetMyOrders(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	orders, err := oc.Orders.ListOrders(c.Request.Context(), &userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

func (oc *OrderController) GetOrderByID(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "order_id")
	if !ok {
		return
	}

	order, err := oc.Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if order.UserID != userID && !isStaff(role) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// CancelOrder also cancels the order's reservation.
func (oc *OrderController) CancelOrder(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "order_id")
	if !ok {
		return
	}

	order, err := oc.Orders.CancelOrder(c.Request.Context(), id, userID, isStaff(role))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order cancelled", order)
}

func (oc *OrderController) GetAllOrders(c *gin.Context) {
	orders, err := oc.Orders.ListOrders(c.Request.Context(), nil)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// UpdateOrderStatus moves an order along the kitchen flow.
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	id, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.UpdateOrderStatus(c.Request.Context(), id, body.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}
