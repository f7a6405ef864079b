package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/restaurant-reservations/events"
	"github.com/yeremiapane/restaurant-reservations/models"
)

// OrderService is the order ledger. It creates reservations and signals
// cancellations through the allocation engine and never touches table state.
type OrderService struct {
	db     *gorm.DB
	engine *AllocationEngine
	log    logrus.FieldLogger
}

func NewOrderService(db *gorm.DB, engine *AllocationEngine) *OrderService {
	return &OrderService{db: db, engine: engine, log: engine.log}
}

type OrderItemRequest struct {
	MenuID   uint   `json:"menu_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
	Notes    string `json:"notes"`
}

// OrderReservationRequest books a table along with an order. The time fields
// sit inline next to party_size.
type OrderReservationRequest struct {
	TimeSpec
	PartySize        int    `json:"party_size"`
	PreferredTableID *uint  `json:"preferred_table_id"`
	Notes            string `json:"notes"`
}

type OrderRequest struct {
	UserID      uint
	Items       []OrderItemRequest
	Notes       string
	Reservation *OrderReservationRequest
}

type OrderResult struct {
	Order       *models.Order `json:"order"`
	Reservation *Assignment   `json:"reservation,omitempty"`
}

// CreateOrderWithReservation places an order and, when asked, books a table
// in the same transaction. A failed booking fails the whole order.
func (s *OrderService) CreateOrderWithReservation(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if req.UserID == 0 {
		return nil, fmt.Errorf("%w: user is required", ErrValidation)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", ErrValidation)
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
		}
	}

	var (
		resReq ReservationRequest
		iv     Interval
	)
	if req.Reservation != nil {
		resReq = ReservationRequest{
			UserID:           req.UserID,
			PartySize:        req.Reservation.PartySize,
			Time:             req.Reservation.TimeSpec,
			PreferredTableID: req.Reservation.PreferredTableID,
			Notes:            req.Reservation.Notes,
		}
		var err error
		if iv, err = s.engine.validateRequest(resReq); err != nil {
			return nil, err
		}
	}

	result := &OrderResult{}
	err := s.engine.inTx(ctx, func(tx *gorm.DB) error {
		items, total, err := priceItems(tx, req.Items)
		if err != nil {
			return err
		}

		order := &models.Order{
			UserID:      req.UserID,
			Status:      models.OrderPending,
			TotalAmount: total,
			Notes:       req.Notes,
		}
		if req.Reservation != nil {
			asg, err := s.engine.createReservationTx(tx, resReq, iv)
			if err != nil {
				return err
			}
			order.ReservationID = &asg.Reservation.ID
			result.Reservation = asg
		}

		if err := tx.Create(order).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		order.OrderItems = items
		result.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	evts := []events.Event{orderEvent(events.OrderCreated, result.Order)}
	if result.Reservation != nil {
		res := result.Reservation.Reservation
		s.log.WithFields(reservationFields(res)).WithField("order_id", result.Order.ID).Info("reservation created with order")
		evts = append(evts, reservationEvent(events.ReservationCreated, res))
	}
	s.log.WithField("order_id", result.Order.ID).WithField("total", result.Order.TotalAmount).Info("order created")
	s.engine.committed(ctx, evts...)
	return result, nil
}

// priceItems takes prices from the menu, never from the request.
func priceItems(tx *gorm.DB, reqs []OrderItemRequest) ([]models.OrderItem, float64, error) {
	ids := make([]uint, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.MenuID)
	}
	var menus []models.Menu
	if err := tx.Where("id IN ?", ids).Find(&menus).Error; err != nil {
		return nil, 0, err
	}
	byID := make(map[uint]models.Menu, len(menus))
	for _, m := range menus {
		byID[m.ID] = m
	}

	items := make([]models.OrderItem, 0, len(reqs))
	var total float64
	for _, r := range reqs {
		m, ok := byID[r.MenuID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: menu item %d does not exist", ErrValidation, r.MenuID)
		}
		if !m.IsAvailable {
			return nil, 0, fmt.Errorf("%w: %s is not available", ErrValidation, m.Name)
		}
		items = append(items, models.OrderItem{
			MenuID:   m.ID,
			Quantity: r.Quantity,
			Price:    m.Price,
			Notes:    r.Notes,
		})
		total += m.Price * float64(r.Quantity)
	}
	return items, math.Round(total*100) / 100, nil
}

func orderEvent(eventType string, o *models.Order) events.Event {
	evt := events.New(eventType)
	evt.OrderID = o.ID
	evt.Status = o.Status
	if o.ReservationID != nil {
		evt.ReservationID = *o.ReservationID
	}
	return evt
}

func lockOrder(tx *gorm.DB, id uint) (*models.Order, error) {
	var o models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CancelOrder cancels the order and its reservation in one transaction.
// Customers may cancel only their own orders, staff any; cancelling twice is a no-op.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, actorID uint, privileged bool) (*models.Order, error) {
	var (
		order   *models.Order
		res     *models.Reservation
		changed bool
	)
	err := s.engine.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		if order, err = lockOrder(tx, orderID); err != nil {
			return err
		}
		if !privileged && order.UserID != actorID {
			return fmt.Errorf("%w: order %d belongs to another customer", ErrForbidden, orderID)
		}
		if order.Status == models.OrderCancelled {
			return nil
		}
		if order.Status == models.OrderDelivered {
			return fmt.Errorf("%w: order %d was already delivered", ErrInvalidTransition, orderID)
		}

		now := s.engine.now().UTC()
		if err := tx.Model(order).Updates(map[string]interface{}{
			"status":       models.OrderCancelled,
			"cancelled_at": now,
		}).Error; err != nil {
			return err
		}
		order.Status = models.OrderCancelled
		order.CancelledAt = &now
		changed = true

		var resChanged bool
		res, resChanged, err = s.engine.cancelLinkedReservationTx(tx, order)
		if !resChanged {
			res = nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.log.WithField("order_id", order.ID).Info("order cancelled")
		evts := []events.Event{orderEvent(events.OrderCancelled, order)}
		if res != nil {
			s.log.WithFields(reservationFields(res)).Info("reservation cancelled with order")
			evts = append(evts, reservationEvent(events.ReservationCancelled, res))
		}
		s.engine.committed(ctx, evts...)
	}
	return order, nil
}

// UpdateOrderStatus moves an order one step along
// pending -> preparing -> ready -> delivered, or cancels it.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID uint, status string) (*models.Order, error) {
	if status == models.OrderCancelled {
		return s.CancelOrder(ctx, orderID, 0, true)
	}

	var order *models.Order
	err := s.engine.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		if order, err = lockOrder(tx, orderID); err != nil {
			return err
		}
		next, ok := order.NextStatus()
		if !ok || next != status {
			return fmt.Errorf("%w: order %d cannot move from %s to %s", ErrInvalidTransition, orderID, order.Status, status)
		}
		if err := tx.Model(order).Update("status", status).Error; err != nil {
			return err
		}
		order.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("order_id", order.ID).WithField("status", status).Info("order status updated")
	s.engine.committed(ctx, orderEvent(events.OrderUpdated, order))
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).
		Preload("OrderItems.Menu").
		Preload("Reservation.Table").
		First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders lists all orders, or one customer's when userID is set.
func (s *OrderService) ListOrders(ctx context.Context, userID *uint) ([]models.Order, error) {
	q := s.db.WithContext(ctx).Preload("OrderItems.Menu").Order("created_at DESC").Order("id DESC")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
