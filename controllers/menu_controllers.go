package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-reservations/models"
	"github.com/yeremiapane/restaurant-reservations/utils"
)

var errMenuHasOrders = errors.New("menu item appears on orders, mark it unavailable instead")

type MenuController struct {
	DB *gorm.DB
}

func NewMenuController(db *gorm.DB) *MenuController {
	return &MenuController{DB: db}
}

// GetAllMenus lists menu items. The public menu shows available items only;
// ?category=<id> filters by category and ?all=true (staff) includes the rest.
func (mc *MenuController) GetAllMenus(c *gin.Context) {
	q := mc.DB.Preload("Category").Order("category_id ASC").Order("name ASC")

	showAll, _ := strconv.ParseBool(c.Query("all"))
	if !showAll || !isStaff(c.GetString("role")) {
		q = q.Where("is_available = ?", true)
	}
	if raw := c.Query("category"); raw != "" {
		categoryID, err := strconv.Atoi(raw)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("invalid category ID"))
			return
		}
		q = q.Where("category_id = ?", categoryID)
	}

	var menus []models.Menu
	if err := q.Find(&menus).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of menus", menus)
}

func (mc *MenuController) GetMenuByID(c *gin.Context) {
	id, ok := paramID(c, "menu_id")
	if !ok {
		return
	}
	var menu models.Menu
	if err := mc.DB.Preload("Category").First(&menu, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("menu not found"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu detail", menu)
}

func (mc *MenuController) categoryExists(id uint) (bool, error) {
	var n int64
	err := mc.DB.Model(&models.MenuCategory{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (mc *MenuController) CreateMenu(c *gin.Context) {
	var req struct {
		CategoryID  uint    `json:"category_id" binding:"required"`
		Name        string  `json:"name" binding:"required"`
		Price       float64 `json:"price" binding:"required,gt=0"`
		Description string  `json:"description"`
		IsAvailable *bool   `json:"is_available"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	exists, err := mc.categoryExists(req.CategoryID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !exists {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid category_id"))
		return
	}

	menu := models.Menu{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		IsAvailable: req.IsAvailable == nil || *req.IsAvailable,
	}
	if err := mc.DB.Create(&menu).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.WithField("menu_id", menu.ID).Info("menu item created")
	utils.RespondJSON(c, http.StatusCreated, "Menu created", menu)
}

// UpdateMenu applies only the fields present in the body.
func (mc *MenuController) UpdateMenu(c *gin.Context) {
	id, ok := paramID(c, "menu_id")
	if !ok {
		return
	}
	var req struct {
		CategoryID  *uint    `json:"category_id"`
		Name        *string  `json:"name"`
		Price       *float64 `json:"price"`
		Description *string  `json:"description"`
		IsAvailable *bool    `json:"is_available"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var menu models.Menu
	if err := mc.DB.First(&menu, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("menu not found"))
		return
	}

	changes := map[string]interface{}{}
	if req.CategoryID != nil {
		exists, err := mc.categoryExists(*req.CategoryID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		if !exists {
			utils.RespondError(c, http.StatusBadRequest, errors.New("invalid category_id"))
			return
		}
		changes["category_id"] = *req.CategoryID
	}
	if req.Name != nil {
		if *req.Name == "" {
			utils.RespondError(c, http.StatusBadRequest, errors.New("name must not be empty"))
			return
		}
		changes["name"] = *req.Name
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("price must be positive"))
			return
		}
		changes["price"] = *req.Price
	}
	if req.Description != nil {
		changes["description"] = *req.Description
	}
	if req.IsAvailable != nil {
		changes["is_available"] = *req.IsAvailable
	}
	if len(changes) == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("nothing to update"))
		return
	}

	if err := mc.DB.Model(&menu).Updates(changes).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	if err := mc.DB.Preload("Category").First(&menu, id).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu updated successfully", menu)
}

// DeleteMenu removes an item that was never ordered.
func (mc *MenuController) DeleteMenu(c *gin.Context) {
	id, ok := paramID(c, "menu_id")
	if !ok {
		return
	}

	var ordered int64
	if err := mc.DB.Model(&models.OrderItem{}).Where("menu_id = ?", id).Count(&ordered).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	if ordered > 0 {
		utils.RespondError(c, http.StatusConflict, errMenuHasOrders)
		return
	}

	res := mc.DB.Delete(&models.Menu{}, id)
	if res.Error != nil {
		respondServiceError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, fmt.Errorf("menu %d not found", id))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu deleted", gin.H{"menu_id": id})
}
