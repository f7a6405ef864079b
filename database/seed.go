package database

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-reservations/models"
	"github.com/yeremiapane/restaurant-reservations/utils"
)

var ErrAdminPasswordMissing = errors.New("seed: ADMIN_PASSWORD is required to create the admin user")

// SeedAdmin creates the admin account when no admin exists yet.
func SeedAdmin(db *gorm.DB, email, password string) error {
	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if password == "" {
		return ErrAdminPasswordMissing
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.User{
		Name:     "Administrator",
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	utils.InfoLogger.WithField("email", email).Info("admin user created")
	return nil
}

// SeedMenu fills an empty menu with a starter selection.
func SeedMenu(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.MenuCategory{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	starter := map[string][]models.Menu{
		"Appetizers": {
			{Name: "Bruschetta", Price: 6.50, Description: "Grilled bread, tomato, basil", IsAvailable: true},
			{Name: "Soup of the Day", Price: 5.00, IsAvailable: true},
		},
		"Mains": {
			{Name: "Grilled Salmon", Price: 18.90, Description: "With seasonal vegetables", IsAvailable: true},
			{Name: "Mushroom Risotto", Price: 14.50, IsAvailable: true},
		},
		"Desserts": {
			{Name: "Tiramisu", Price: 7.00, IsAvailable: true},
		},
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for name, items := range starter {
			cat := models.MenuCategory{Name: name}
			if err := tx.Create(&cat).Error; err != nil {
				return err
			}
			for _, item := range items {
				item.CategoryID = cat.ID
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
			}
		}
		utils.InfoLogger.Info("starter menu seeded")
		return nil
	})
}
