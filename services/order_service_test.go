package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-reservations/events"
	"github.com/yeremiapane/restaurant-reservations/models"
)

type orderFixture struct {
	*testEnv
	orders  *OrderService
	soup    models.Menu
	steak   models.Menu
	soldOut models.Menu
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	env := newTestEnv(t, nil)
	cat := models.MenuCategory{Name: "Kitchen"}
	require.NoError(t, env.db.Create(&cat).Error)

	f := &orderFixture{
		testEnv: env,
		orders:  NewOrderService(env.db, env.engine),
		soup:    models.Menu{CategoryID: cat.ID, Name: "Soup", Price: 4.5, IsAvailable: true},
		steak:   models.Menu{CategoryID: cat.ID, Name: "Steak", Price: 21.25, IsAvailable: true},
		soldOut: models.Menu{CategoryID: cat.ID, Name: "Lobster", Price: 40, IsAvailable: false},
	}
	for _, m := range []*models.Menu{&f.soup, &f.steak, &f.soldOut} {
		require.NoError(t, env.db.Create(m).Error)
	}
	return f
}

func (f *orderFixture) orderWithTable(t *testing.T, userID uint, party int, spec TimeSpec) *OrderResult {
	t.Helper()
	out, err := f.orders.CreateOrderWithReservation(context.Background(), OrderRequest{
		UserID: userID,
		Items:  []OrderItemRequest{{MenuID: f.soup.ID, Quantity: 2}, {MenuID: f.steak.ID, Quantity: 1}},
		Reservation: &OrderReservationRequest{
			PartySize: party,
			TimeSpec:  spec,
		},
	})
	require.NoError(t, err)
	return out
}

func TestCreateOrderWithReservation(t *testing.T) {
	f := newOrderFixture(t)
	f.addTables(t, 2, 4)
	user := f.addUser(t, "a@example.com")

	out := f.orderWithTable(t, user.ID, 3, startAt(19, 0))

	require.NotNil(t, out.Reservation)
	assert.Equal(t, 4, out.Reservation.Table.Capacity)
	require.NotNil(t, out.Order.ReservationID)
	assert.Equal(t, out.Reservation.Reservation.ID, *out.Order.ReservationID)
	assert.Equal(t, 30.25, out.Order.TotalAmount)
	assert.Len(t, out.Order.OrderItems, 2)
	assert.Equal(t, models.OrderPending, out.Order.Status)

	stored, err := f.orders.GetOrder(context.Background(), out.Order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Reservation)
	require.NotNil(t, stored.Reservation.Table)
	assert.Equal(t, 2, stored.Reservation.Table.Number)
	assert.Equal(t, "Soup", stored.OrderItems[0].Menu.Name)

	assert.ElementsMatch(t, []string{events.OrderCreated, events.ReservationCreated},
		f.pub.types()[2:])
}

func TestCreateOrderWithoutReservation(t *testing.T) {
	f := newOrderFixture(t)
	user := f.addUser(t, "a@example.com")

	out, err := f.orders.CreateOrderWithReservation(context.Background(), OrderRequest{
		UserID: user.ID,
		Items:  []OrderItemRequest{{MenuID: f.steak.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Nil(t, out.Reservation)
	assert.Nil(t, out.Order.ReservationID)
	assert.Equal(t, 42.5, out.Order.TotalAmount)
}

func TestCreateOrderFailedBookingRollsBack(t *testing.T) {
	f := newOrderFixture(t)
	f.addTables(t, 2)
	user := f.addUser(t, "a@example.com")
	ctx := context.Background()

	f.orderWithTable(t, user.ID, 2, startAt(19, 0))

	_, err := f.orders.CreateOrderWithReservation(ctx, OrderRequest{
		UserID:      user.ID,
		Items:       []OrderItemRequest{{MenuID: f.soup.ID, Quantity: 1}},
		Reservation: &OrderReservationRequest{PartySize: 2, TimeSpec: startAt(20, 0)},
	})
	assert.ErrorIs(t, err, ErrTableUnavailable)

	var orders, items, reservations int64
	f.db.Model(&models.Order{}).Count(&orders)
	f.db.Model(&models.OrderItem{}).Count(&items)
	f.db.Model(&models.Reservation{}).Count(&reservations)
	assert.Equal(t, int64(1), orders)
	assert.Equal(t, int64(2), items)
	assert.Equal(t, int64(1), reservations)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newOrderFixture(t)
	f.addTables(t, 4)
	user := f.addUser(t, "a@example.com")
	ctx := context.Background()

	cases := map[string]OrderRequest{
		"no user":       {Items: []OrderItemRequest{{MenuID: f.soup.ID, Quantity: 1}}},
		"no items":      {UserID: user.ID},
		"zero quantity": {UserID: user.ID, Items: []OrderItemRequest{{MenuID: f.soup.ID, Quantity: 0}}},
		"unknown item":  {UserID: user.ID, Items: []OrderItemRequest{{MenuID: 999, Quantity: 1}}},
		"sold out":      {UserID: user.ID, Items: []OrderItemRequest{{MenuID: f.soldOut.ID, Quantity: 1}}},
		"bad party": {
			UserID:      user.ID,
			Items:       []OrderItemRequest{{MenuID: f.soup.ID, Quantity: 1}},
			Reservation: &OrderReservationRequest{PartySize: 0, TimeSpec: startAt(19, 0)},
		},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.orders.CreateOrderWithReservation(ctx, req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	var reservations int64
	f.db.Model(&models.Reservation{}).Count(&reservations)
	assert.Zero(t, reservations)
}

func TestCancelOrderCascades(t *testing.T) {
	f := newOrderFixture(t)
	f.addTables(t, 4)
	user := f.addUser(t, "a@example.com")
	ctx := context.Background()

	out := f.orderWithTable(t, user.ID, 2, startAt(19, 0))

	cancelled, err := f.orders.CancelOrder(ctx, out.Order.ID, user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	res, err := f.engine.GetReservation(ctx, out.Reservation.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, res.Status)

	// the table is free again
	f.book(t, user.ID, 2, startAt(19, 0), nil)

	again, err := f.orders.CancelOrder(ctx, out.Order.ID, user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, again.Status)

	types := f.pub.types()
	assert.Contains(t, types, events.OrderCancelled)
	assert.Contains(t, types, events.ReservationCancelled)
}

func TestCancelOrderPermissions(t *testing.T) {
	f := newOrderFixture(t)
	owner := f.addUser(t, "owner@example.com")
	other := f.addUser(t, "other@example.com")
	ctx := context.Background()

	out, err := f.orders.CreateOrderWithReservation(ctx, OrderRequest{
		UserID: owner.ID,
		Items:  []OrderItemRequest{{MenuID: f.soup.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.orders.CancelOrder(ctx, out.Order.ID, other.ID, false)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.orders.CancelOrder(ctx, out.Order.ID, other.ID, true)
	assert.NoError(t, err, "admins may cancel any order")

	_, err = f.orders.CancelOrder(ctx, 404, owner.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelOrderKeepsCompletedReservation(t *testing.T) {
	f := newOrderFixture(t)
	f.addTables(t, 4)
	user := f.addUser(t, "a@example.com")
	ctx := context.Background()

	out := f.orderWithTable(t, user.ID, 2, startAt(12, 0))
	_, err := f.engine.CompleteReservation(ctx, out.Reservation.Reservation.ID)
	require.NoError(t, err)

	_, err = f.orders.CancelOrder(ctx, out.Order.ID, user.ID, false)
	require.NoError(t, err)

	res, err := f.engine.GetReservation(ctx, out.Reservation.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCompleted, res.Status)
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newOrderFixture(t)
	f.addTables(t, 4)
	user := f.addUser(t, "a@example.com")
	ctx := context.Background()

	out := f.orderWithTable(t, user.ID, 2, startAt(19, 0))
	id := out.Order.ID

	_, err := f.orders.UpdateOrderStatus(ctx, id, models.OrderReady)
	assert.ErrorIs(t, err, ErrInvalidTransition, "no skipping steps")

	for _, status := range []string{models.OrderPreparing, models.OrderReady, models.OrderDelivered} {
		o, err := f.orders.UpdateOrderStatus(ctx, id, status)
		require.NoError(t, err)
		assert.Equal(t, status, o.Status)
	}

	_, err = f.orders.UpdateOrderStatus(ctx, id, models.OrderCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition, "delivered orders stay delivered")

	second := f.orderWithTable(t, user.ID, 2, startAt(21, 0))
	o, err := f.orders.UpdateOrderStatus(ctx, second.Order.ID, models.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, o.Status)
	res, err := f.engine.GetReservation(ctx, second.Reservation.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, res.Status)
}

func TestListOrders(t *testing.T) {
	f := newOrderFixture(t)
	alice := f.addUser(t, "alice@example.com")
	bob := f.addUser(t, "bob@example.com")
	ctx := context.Background()

	for _, uid := range []uint{alice.ID, bob.ID, alice.ID} {
		_, err := f.orders.CreateOrderWithReservation(ctx, OrderRequest{
			UserID: uid,
			Items:  []OrderItemRequest{{MenuID: f.soup.ID, Quantity: 1}},
		})
		require.NoError(t, err)
	}

	all, err := f.orders.ListOrders(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := f.orders.ListOrders(ctx, &alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, o := range mine {
		assert.Equal(t, alice.ID, o.UserID)
		require.Len(t, o.OrderItems, 1)
		assert.Equal(t, "Soup", o.OrderItems[0].Menu.Name)
	}

	_, err = f.orders.GetOrder(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
