package Controllers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-reservations/models"
	"github.com/yeremiapane/restaurant-reservations/services"
)

type orderBody struct {
	Order       models.Order    `json:"order"`
	Reservation *assignmentBody `json:"reservation"`
}

func (h *harness) menu(t *testing.T) (soup, steak, soldOut models.Menu) {
	t.Helper()
	cat := models.MenuCategory{Name: "Kitchen"}
	require.NoError(t, h.db.Create(&cat).Error)
	soup = models.Menu{CategoryID: cat.ID, Name: "Soup", Price: 4.5, IsAvailable: true}
	steak = models.Menu{CategoryID: cat.ID, Name: "Steak", Price: 21.25, IsAvailable: true}
	soldOut = models.Menu{CategoryID: cat.ID, Name: "Lobster", Price: 40}
	for _, m := range []*models.Menu{&soup, &steak, &soldOut} {
		require.NoError(t, h.db.Create(m).Error)
	}
	return soup, steak, soldOut
}

func TestOrderWithReservationAndCancel(t *testing.T) {
	h := newHarness(t, nil)
	h.tables(t, 4)
	soup, steak, _ := h.menu(t)
	_, ana := h.user(t, models.RoleCustomer, "ana@example.com")

	var created orderBody
	decode(t, h.do(t, http.MethodPost, "/orders", ana, map[string]interface{}{
		"items": []map[string]interface{}{
			{"menu_id": soup.ID, "quantity": 2},
			{"menu_id": steak.ID, "quantity": 1},
		},
		"reservation": map[string]interface{}{"start": at(19, 0), "party_size": 4},
	}), http.StatusCreated, &created)
	assert.Equal(t, 30.25, created.Order.TotalAmount)
	require.NotNil(t, created.Reservation)
	require.NotNil(t, created.Reservation.Table)
	assert.Equal(t, models.ReservationActive, created.Reservation.Reservation.Status)

	var av services.Availability
	decode(t, h.do(t, http.MethodGet, "/availability?as_of="+at(19, 0), "", nil), http.StatusOK, &av)
	assert.Equal(t, 0, av.AvailableTables)

	var cancelled models.Order
	decode(t, h.do(t, http.MethodPost, pathf("/orders/%d/cancel", created.Order.ID), ana, nil), http.StatusOK, &cancelled)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)

	// the booking went with the order
	var res models.Reservation
	decode(t, h.do(t, http.MethodGet, pathf("/reservations/%d", created.Reservation.Reservation.ID), ana, nil),
		http.StatusOK, &res)
	assert.Equal(t, models.ReservationCancelled, res.Status)
	decode(t, h.do(t, http.MethodGet, "/availability?as_of="+at(19, 0), "", nil), http.StatusOK, &av)
	assert.Equal(t, 1, av.AvailableTables)
}

func TestOrderFailsAsAWhole(t *testing.T) {
	h := newHarness(t, nil)
	h.tables(t, 2)
	soup, _, soldOut := h.menu(t)
	_, ana := h.user(t, models.RoleCustomer, "ana@example.com")

	// no table for six: nothing is stored
	decode(t, h.do(t, http.MethodPost, "/orders", ana, map[string]interface{}{
		"items":       []map[string]interface{}{{"menu_id": soup.ID, "quantity": 1}},
		"reservation": map[string]interface{}{"start": at(19, 0), "party_size": 6},
	}), http.StatusUnprocessableEntity, nil)

	decode(t, h.do(t, http.MethodPost, "/orders", ana, map[string]interface{}{
		"items": []map[string]interface{}{{"menu_id": soldOut.ID, "quantity": 1}},
	}), http.StatusBadRequest, nil)
	decode(t, h.do(t, http.MethodPost, "/orders", ana, map[string]interface{}{
		"items": []map[string]interface{}{{"menu_id": soup.ID}},
	}), http.StatusBadRequest, nil)

	var mine []models.Order
	decode(t, h.do(t, http.MethodGet, "/orders", ana, nil), http.StatusOK, &mine)
	assert.Empty(t, mine)
}

func TestOrderPermissionsAndKitchenFlow(t *testing.T) {
	h := newHarness(t, nil)
	soup, _, _ := h.menu(t)
	_, ana := h.user(t, models.RoleCustomer, "ana@example.com")
	_, ben := h.user(t, models.RoleCustomer, "ben@example.com")
	_, staff := h.user(t, models.RoleStaff, "staff@example.com")

	var created orderBody
	decode(t, h.do(t, http.MethodPost, "/orders", ana, map[string]interface{}{
		"items": []map[string]interface{}{{"menu_id": soup.ID, "quantity": 1}},
	}), http.StatusCreated, &created)
	assert.Nil(t, created.Reservation)
	id := created.Order.ID

	decode(t, h.do(t, http.MethodGet, pathf("/orders/%d", id), ben, nil), http.StatusForbidden, nil)
	decode(t, h.do(t, http.MethodPost, pathf("/orders/%d/cancel", id), ben, nil), http.StatusForbidden, nil)
	decode(t, h.do(t, http.MethodGet, pathf("/admin/orders/%d", id), staff, nil), http.StatusOK, nil)

	var order models.Order
	decode(t, h.do(t, http.MethodPatch, pathf("/admin/orders/%d/status", id), staff,
		map[string]string{"status": models.OrderReady}), http.StatusConflict, nil)
	for _, next := range []string{models.OrderPreparing, models.OrderReady, models.OrderDelivered} {
		decode(t, h.do(t, http.MethodPatch, pathf("/admin/orders/%d/status", id), staff,
			map[string]string{"status": next}), http.StatusOK, &order)
		assert.Equal(t, next, order.Status)
	}
	decode(t, h.do(t, http.MethodPost, pathf("/orders/%d/cancel", id), ana, nil), http.StatusConflict, nil)

	var all []models.Order
	decode(t, h.do(t, http.MethodGet, "/admin/orders", staff, nil), http.StatusOK, &all)
	assert.Len(t, all, 1)
	decode(t, h.do(t, http.MethodGet, "/admin/orders", ana, nil), http.StatusForbidden, nil)
}
