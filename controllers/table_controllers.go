package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-reservations/services"
	"github.com/yeremiapane/restaurant-reservations/utils"
)

type TableController struct {
	Engine *services.AllocationEngine
	QR     services.TableQR
}

func NewTableController(engine *services.AllocationEngine, qr services.TableQR) *TableController {
	return &TableController{Engine: engine, QR: qr}
}

// GetAllTables lists tables in service. Admins pass ?include_inactive=true.
func (tc *TableController) GetAllTables(c *gin.Context) {
	includeInactive := false
	if isStaff(c.GetString("role")) {
		includeInactive, _ = strconv.ParseBool(c.Query("include_inactive"))
	}
	tables, err := tc.Engine.ListTables(c.Request.Context(), includeInactive)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

func (tc *TableController) GetTableByID(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	table, err := tc.Engine.GetTable(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", table)
}

// GetTableQR serves the PNG printed on the table.
func (tc *TableController) GetTableQR(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	table, err := tc.Engine.GetTable(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !table.Active {
		utils.RespondError(c, http.StatusNotFound, errors.New("table is not in service"))
		return
	}

	png, err := tc.QR.Generate(*table)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}

// GetAvailableTables: ?date=&time= or ?start=&end=, plus optional guests.
func (tc *TableController) GetAvailableTables(c *gin.Context) {
	var spec services.TimeSpec
	if err := c.ShouldBindQuery(&spec); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	guests := 0
	if raw := c.Query("guests"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("guests must be a number"))
			return
		}
		guests = n
	}

	tables, err := tc.Engine.AvailableTables(c.Request.Context(), spec, guests)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Available tables", tables)
}

func (tc *TableController) CreateTable(c *gin.Context) {
	var req struct {
		Number   int `json:"number" binding:"required"`
		Capacity int `json:"capacity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Engine.AddTable(c.Request.Context(), req.Number, req.Capacity)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

func (tc *TableController) UpdateTable(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	var upd services.TableUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Engine.UpdateTable(c.Request.Context(), id, upd)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table updated", table)
}

func (tc *TableController) ActivateTable(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	table, err := tc.Engine.ActivateTable(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table activated", table)
}

func (tc *TableController) DeactivateTable(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	table, err := tc.Engine.DeactivateTable(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table deactivated", table)
}

func (tc *TableController) DeleteTable(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	if err := tc.Engine.DeleteTable(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table deleted", gin.H{"id": id})
}

// FreeTable completes whoever is seated at the table now.
func (tc *TableController) FreeTable(c *gin.Context) {
	id, ok := paramID(c, "table_id")
	if !ok {
		return
	}
	res, err := tc.Engine.FreeTable(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if res == nil {
		utils.RespondJSON(c, http.StatusOK, "Table was already free", nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table freed", res)
}
