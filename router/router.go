package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-reservations/controllers"
	"github.com/yeremiapane/restaurant-reservations/floor"
	"github.com/yeremiapane/restaurant-reservations/middlewares"
	"github.com/yeremiapane/restaurant-reservations/models"
	"github.com/yeremiapane/restaurant-reservations/services"
	"github.com/yeremiapane/restaurant-reservations/utils"
)

// Dependencies is everything the HTTP layer needs, built once in main.
type Dependencies struct {
	DB          *gorm.DB
	Engine      *services.AllocationEngine
	Orders      *services.OrderService
	Hub         *floor.Hub
	QR          services.TableQR
	CORSOrigin  string
	TLS         bool
	RateLimiter *middlewares.RateLimiter
}

func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders(deps.TLS))
	r.Use(middlewares.CORSMiddlewares(deps.CORSOrigin))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.RateLimit())
	}

	userCtrl := controllers.NewUserController(deps.DB, deps.Engine, deps.Orders)
	reservationCtrl := controllers.NewReservationController(deps.Engine)
	tableCtrl := controllers.NewTableController(deps.Engine, deps.QR)
	orderCtrl := controllers.NewOrderController(deps.Orders)
	categoryCtrl := controllers.NewMenuCategoryController(deps.DB)
	menuCtrl := controllers.NewMenuController(deps.DB)
	adminCtrl := controllers.NewAdminController(deps.DB, deps.Engine)
	floorCtrl := controllers.NewFloorController(deps.Hub, deps.CORSOrigin)
	feedbackCtrl := controllers.NewFeedbackController(services.NewFeedbackService(deps.DB, utils.InfoLogger))

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	r.GET("/categories", categoryCtrl.GetAllCategories)
	r.GET("/menu", menuCtrl.GetAllMenus)
	r.GET("/menu/:menu_id", menuCtrl.GetMenuByID)

	r.GET("/tables", tableCtrl.GetAllTables)
	r.GET("/tables/available", tableCtrl.GetAvailableTables)
	r.GET("/tables/:table_id", tableCtrl.GetTableByID)
	r.GET("/tables/:table_id/qr", tableCtrl.GetTableQR)
	r.GET("/availability", reservationCtrl.GetAvailability)

	// ----------------------------------------------------------------
	//                      CUSTOMER ROUTES (JWT)
	// ----------------------------------------------------------------
	customer := r.Group("/")
	customer.Use(middlewares.AuthMiddleware())
	{
		customer.GET("/profile", userCtrl.GetProfile)

		customer.POST("/reservations", reservationCtrl.CreateReservation)
		customer.GET("/reservations", reservationCtrl.GetMyReservations)
		customer.GET("/reservations/:reservation_id", reservationCtrl.GetReservationByID)
		customer.POST("/reservations/:reservation_id/cancel", reservationCtrl.CancelMyReservation)

		customer.POST("/orders", orderCtrl.CreateOrder)
		customer.GET("/orders", orderCtrl.GetMyOrders)
		customer.GET("/orders/:order_id", orderCtrl.GetOrderByID)
		customer.POST("/orders/:order_id/cancel", orderCtrl.CancelOrder)

		customer.POST("/feedback", feedbackCtrl.SubmitFeedback)
	}

	// ----------------------------------------------------------------
	//                      STAFF / ADMIN ROUTES
	// ----------------------------------------------------------------
	admin := r.Group("/admin")
	admin.Use(middlewares.AuthMiddleware(), middlewares.RequireRole(models.RoleAdmin, models.RoleStaff))
	{
		admin.GET("/dashboard/stats", adminCtrl.GetDashboardStats)

		admin.GET("/reservations", reservationCtrl.GetAllReservations)
		admin.GET("/reservations/:reservation_id", reservationCtrl.GetReservationByID)
		admin.POST("/reservations/:reservation_id/assign", reservationCtrl.AssignTable)
		admin.POST("/reservations/:reservation_id/complete", reservationCtrl.CompleteReservation)
		admin.POST("/reservations/:reservation_id/cancel", reservationCtrl.CancelReservation)

		admin.GET("/tables", tableCtrl.GetAllTables)
		admin.POST("/tables/:table_id/free", tableCtrl.FreeTable)

		admin.GET("/orders", orderCtrl.GetAllOrders)
		admin.GET("/orders/:order_id", orderCtrl.GetOrderByID)
		admin.PATCH("/orders/:order_id/status", orderCtrl.UpdateOrderStatus)
		admin.POST("/orders/:order_id/cancel", orderCtrl.CancelOrder)

		admin.GET("/menus", menuCtrl.GetAllMenus)
		admin.GET("/menus/:menu_id", menuCtrl.GetMenuByID)
		admin.GET("/categories/:cat_id", categoryCtrl.GetCategoryByID)

		admin.GET("/feedback", feedbackCtrl.GetAllFeedback)
	}

	// inventory, menu and user management stay with admins
	owner := admin.Group("/")
	owner.Use(middlewares.RequireRole(models.RoleAdmin))
	{
		owner.GET("/users", userCtrl.GetAllUsers)
		owner.POST("/users/staff", userCtrl.CreateStaff)

		owner.POST("/tables", tableCtrl.CreateTable)
		owner.PATCH("/tables/:table_id", tableCtrl.UpdateTable)
		owner.POST("/tables/:table_id/activate", tableCtrl.ActivateTable)
		owner.POST("/tables/:table_id/deactivate", tableCtrl.DeactivateTable)
		owner.DELETE("/tables/:table_id", tableCtrl.DeleteTable)

		owner.POST("/categories", categoryCtrl.CreateCategory)
		owner.PATCH("/categories/:cat_id", categoryCtrl.UpdateCategory)
		owner.DELETE("/categories/:cat_id", categoryCtrl.DeleteCategory)

		owner.POST("/menus", menuCtrl.CreateMenu)
		owner.PATCH("/menus/:menu_id", menuCtrl.UpdateMenu)
		owner.DELETE("/menus/:menu_id", menuCtrl.DeleteMenu)
	}

	ws := r.Group("/ws")
	ws.Use(middlewares.WebSocketAuthMiddleware())
	{
		ws.GET("/floor", floorCtrl.FloorHandler)
	}

	return r
}
