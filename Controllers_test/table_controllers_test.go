package Controllers_test

import (
	"bytes"
	"image/png"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-reservations/models"
)

func TestTableInventoryByAdmin(t *testing.T) {
	h := newHarness(t, nil)
	_, admin := h.user(t, models.RoleAdmin, "admin@example.com")
	_, staff := h.user(t, models.RoleStaff, "staff@example.com")

	var table models.Table
	decode(t, h.do(t, http.MethodPost, "/admin/tables", admin, map[string]interface{}{
		"number": 7, "capacity": 4,
	}), http.StatusCreated, &table)
	assert.Equal(t, 7, table.Number)
	assert.True(t, table.Active)

	decode(t, h.do(t, http.MethodPost, "/admin/tables", admin, map[string]interface{}{
		"number": 7, "capacity": 2,
	}), http.StatusConflict, nil)
	decode(t, h.do(t, http.MethodPost, "/admin/tables", admin, map[string]interface{}{
		"number": 8, "capacity": -1,
	}), http.StatusBadRequest, nil)

	// staff run the floor but do not edit the inventory
	decode(t, h.do(t, http.MethodPost, "/admin/tables", staff, map[string]interface{}{
		"number": 9, "capacity": 2,
	}), http.StatusForbidden, nil)

	var updated models.Table
	decode(t, h.do(t, http.MethodPatch, pathf("/admin/tables/%d", table.ID), admin, map[string]interface{}{
		"capacity": 6,
	}), http.StatusOK, &updated)
	assert.Equal(t, 6, updated.Capacity)
	assert.Greater(t, updated.Version, table.Version)

	decode(t, h.do(t, http.MethodPost, pathf("/admin/tables/%d/deactivate", table.ID), admin, nil), http.StatusOK, &updated)
	assert.False(t, updated.Active)

	var public []models.Table
	decode(t, h.do(t, http.MethodGet, "/tables", "", nil), http.StatusOK, &public)
	assert.Empty(t, public)

	var all []models.Table
	decode(t, h.do(t, http.MethodGet, "/admin/tables?include_inactive=true", staff, nil), http.StatusOK, &all)
	assert.Len(t, all, 1)

	decode(t, h.do(t, http.MethodPost, pathf("/admin/tables/%d/activate", table.ID), admin, nil), http.StatusOK, &updated)
	assert.True(t, updated.Active)

	decode(t, h.do(t, http.MethodDelete, pathf("/admin/tables/%d", table.ID), admin, nil), http.StatusOK, nil)
	decode(t, h.do(t, http.MethodGet, pathf("/tables/%d", table.ID), "", nil), http.StatusNotFound, nil)
}

func TestTableWithBookingsIsProtected(t *testing.T) {
	h := newHarness(t, nil)
	tables := h.tables(t, 4)
	_, admin := h.user(t, models.RoleAdmin, "admin@example.com")
	_, customer := h.user(t, models.RoleCustomer, "ana@example.com")

	decode(t, h.do(t, http.MethodPost, "/reservations", customer, map[string]interface{}{
		"start": at(19, 0), "party_size": 4,
	}), http.StatusCreated, nil)

	id := tables[0].ID
	decode(t, h.do(t, http.MethodPatch, pathf("/admin/tables/%d", id), admin, map[string]interface{}{
		"capacity": 2,
	}), http.StatusUnprocessableEntity, nil)
	decode(t, h.do(t, http.MethodPost, pathf("/admin/tables/%d/deactivate", id), admin, nil), http.StatusConflict, nil)
	decode(t, h.do(t, http.MethodDelete, pathf("/admin/tables/%d", id), admin, nil), http.StatusConflict, nil)
}

func TestAvailableTablesLookup(t *testing.T) {
	h := newHarness(t, nil)
	tables := h.tables(t, 2, 4, 6)
	_, customer := h.user(t, models.RoleCustomer, "ana@example.com")

	decode(t, h.do(t, http.MethodPost, "/reservations", customer, map[string]interface{}{
		"start": at(19, 0), "party_size": 4, "preferred_table_id": tables[1].ID,
	}), http.StatusCreated, nil)

	var free []models.Table
	decode(t, h.do(t, http.MethodGet, "/tables/available?date=2026-10-18&time=20:00&guests=3", "", nil),
		http.StatusOK, &free)
	require.Len(t, free, 1)
	assert.Equal(t, tables[2].ID, free[0].ID)

	decode(t, h.do(t, http.MethodGet, "/tables/available?start="+at(21, 0), "", nil), http.StatusOK, &free)
	assert.Len(t, free, 3)

	decode(t, h.do(t, http.MethodGet, "/tables/available?date=2026-10-18", "", nil), http.StatusBadRequest, nil)
	decode(t, h.do(t, http.MethodGet, "/tables/available?start="+at(21, 0)+"&guests=many", "", nil), http.StatusBadRequest, nil)
}

func TestFreeTableCompletesSeatedParty(t *testing.T) {
	h := newHarness(t, nil)
	tables := h.tables(t, 4)
	_, staff := h.user(t, models.RoleStaff, "staff@example.com")
	_, customer := h.user(t, models.RoleCustomer, "ana@example.com")

	env := decode(t, h.do(t, http.MethodPost, pathf("/admin/tables/%d/free", tables[0].ID), staff, nil), http.StatusOK, nil)
	assert.Equal(t, "Table was already free", env.Message)

	// seated right now
	decode(t, h.do(t, http.MethodPost, "/reservations", customer, map[string]interface{}{
		"start": at(12, 0), "party_size": 2,
	}), http.StatusCreated, nil)

	var done models.Reservation
	env = decode(t, h.do(t, http.MethodPost, pathf("/admin/tables/%d/free", tables[0].ID), staff, nil), http.StatusOK, &done)
	assert.Equal(t, "Table freed", env.Message)
	assert.Equal(t, models.ReservationCompleted, done.Status)

	decode(t, h.do(t, http.MethodPost, "/admin/tables/404/free", staff, nil), http.StatusNotFound, nil)
}

func TestTableQRCode(t *testing.T) {
	h := newHarness(t, nil)
	tables := h.tables(t, 4, 2)
	_, admin := h.user(t, models.RoleAdmin, "admin@example.com")

	w := h.do(t, http.MethodGet, pathf("/tables/%d/qr", tables[0].ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	assert.NoError(t, err)

	decode(t, h.do(t, http.MethodPost, pathf("/admin/tables/%d/deactivate", tables[1].ID), admin, nil), http.StatusOK, nil)
	decode(t, h.do(t, http.MethodGet, pathf("/tables/%d/qr", tables[1].ID), "", nil), http.StatusNotFound, nil)
}
