package Controllers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-reservations/models"
)

func TestPublicMenuHidesUnavailableItems(t *testing.T) {
	h := newHarness(t, nil)
	soup, _, soldOut := h.menu(t)
	_, staff := h.user(t, models.RoleStaff, "staff@example.com")

	var menus []models.Menu
	decode(t, h.do(t, http.MethodGet, "/menu", "", nil), http.StatusOK, &menus)
	assert.Len(t, menus, 2)
	for _, m := range menus {
		assert.NotEqual(t, soldOut.ID, m.ID)
	}

	// ?all only works for staff
	decode(t, h.do(t, http.MethodGet, "/menu?all=true", "", nil), http.StatusOK, &menus)
	assert.Len(t, menus, 2)
	decode(t, h.do(t, http.MethodGet, "/admin/menus?all=true", staff, nil), http.StatusOK, &menus)
	assert.Len(t, menus, 3)

	var one models.Menu
	decode(t, h.do(t, http.MethodGet, pathf("/menu/%d", soup.ID), "", nil), http.StatusOK, &one)
	assert.Equal(t, "Kitchen", one.Category.Name)

	decode(t, h.do(t, http.MethodGet, "/menu?category=soup", "", nil), http.StatusBadRequest, nil)
	decode(t, h.do(t, http.MethodGet, "/menu?category=999", "", nil), http.StatusOK, &menus)
	assert.Empty(t, menus)
}

func TestMenuManagement(t *testing.T) {
	h := newHarness(t, nil)
	_, admin := h.user(t, models.RoleAdmin, "admin@example.com")
	_, staff := h.user(t, models.RoleStaff, "staff@example.com")
	_, customer := h.user(t, models.RoleCustomer, "ana@example.com")

	var cat models.MenuCategory
	decode(t, h.do(t, http.MethodPost, "/admin/categories", admin, map[string]string{"name": "Desserts"}),
		http.StatusCreated, &cat)
	decode(t, h.do(t, http.MethodPost, "/admin/categories", admin, map[string]string{"name": "Desserts"}),
		http.StatusConflict, nil)

	item := map[string]interface{}{"category_id": cat.ID, "name": "Tiramisu", "price": 7.0}
	decode(t, h.do(t, http.MethodPost, "/admin/menus", staff, item), http.StatusForbidden, nil)

	var tiramisu models.Menu
	decode(t, h.do(t, http.MethodPost, "/admin/menus", admin, item), http.StatusCreated, &tiramisu)
	assert.True(t, tiramisu.IsAvailable)

	item["category_id"] = 999
	decode(t, h.do(t, http.MethodPost, "/admin/menus", admin, item), http.StatusBadRequest, nil)

	var updated models.Menu
	decode(t, h.do(t, http.MethodPatch, pathf("/admin/menus/%d", tiramisu.ID), admin, map[string]interface{}{
		"price": 7.5, "is_available": false,
	}), http.StatusOK, &updated)
	assert.Equal(t, 7.5, updated.Price)
	assert.False(t, updated.IsAvailable)
	decode(t, h.do(t, http.MethodPatch, pathf("/admin/menus/%d", tiramisu.ID), admin, map[string]interface{}{
		"price": -1,
	}), http.StatusBadRequest, nil)

	// in use by an item
	decode(t, h.do(t, http.MethodDelete, pathf("/admin/categories/%d", cat.ID), admin, nil), http.StatusConflict, nil)

	// ordered items are kept for history
	require.NoError(t, h.db.Model(&tiramisu).Update("is_available", true).Error)
	decode(t, h.do(t, http.MethodPost, "/orders", customer, map[string]interface{}{
		"items": []map[string]interface{}{{"menu_id": tiramisu.ID, "quantity": 1}},
	}), http.StatusCreated, nil)
	decode(t, h.do(t, http.MethodDelete, pathf("/admin/menus/%d", tiramisu.ID), admin, nil), http.StatusConflict, nil)

	var spare models.Menu
	item["category_id"] = cat.ID
	item["name"] = "Panna Cotta"
	decode(t, h.do(t, http.MethodPost, "/admin/menus", admin, item), http.StatusCreated, &spare)
	decode(t, h.do(t, http.MethodDelete, pathf("/admin/menus/%d", spare.ID), admin, nil), http.StatusOK, nil)
	decode(t, h.do(t, http.MethodDelete, pathf("/admin/menus/%d", spare.ID), admin, nil), http.StatusNotFound, nil)

	var cats []models.MenuCategory
	decode(t, h.do(t, http.MethodGet, "/categories", "", nil), http.StatusOK, &cats)
	assert.Len(t, cats, 1)
}
