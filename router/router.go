package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tabletap/tabletap/controllers"
	"github.com/tabletap/tabletap/middlewares"
)

func SetupRouter(db *gorm.DB) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())
	// Registered before any route: gin snapshots the handler chain at
	// registration time, so middleware added after SetupRouter never runs.
	r.Use(middlewares.NewRateLimiter(50, 1).RateLimit())

	userCtrl := controllers.NewUserController(db)
	restaurantCtrl := controllers.NewRestaurantController(db)
	tableCtrl := controllers.NewTableController(db)
	verifyCtrl := controllers.NewVerifyController(db)
	orderCtrl := controllers.NewOrderController(db)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// ----------------------------------------------------------------
	//                      PUBLIC GUEST ROUTES
	// ----------------------------------------------------------------
	// Guests carry no credentials; their identity is the table session.
	r.GET("/scan/:code", verifyCtrl.LookupTableByCode)
	r.GET("/tables/:table_id/session", verifyCtrl.GetActiveSessionForTable)
	r.POST("/tables/:table_id/claim", verifyCtrl.ClaimTable)
	r.POST("/tables/:table_id/verify-pin", verifyCtrl.VerifyPin)
	r.GET("/sessions/:session_id/status", verifyCtrl.GetSessionStatus)
	r.POST("/restaurants/:restaurant_id/walk-in", verifyCtrl.CreateWalkInSession)
	r.GET("/slug/:slug", restaurantCtrl.ResolveRestaurantBySlug)
	r.GET("/restaurants/:restaurant_id", restaurantCtrl.GetRestaurant)
	r.GET("/restaurants/:restaurant_id/orders", orderCtrl.GetOrdersForRestaurant)
	r.POST("/orders/batch", orderCtrl.InsertOrders)

	// Realtime change feed, one socket per device per restaurant.
	r.GET("/ws/:restaurant_id", controllers.SubscribeOrderChanges)

	// Staff auth, throttled separately from everything guest-facing.
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// ----------------------------------------------------------------
	//                      STAFF ROUTES
	// ----------------------------------------------------------------
	staff := r.Group("/staff")
	staff.Use(middlewares.AuthMiddleware())

	staff.POST("/restaurants", middlewares.RequireRoles("admin"), restaurantCtrl.CreateRestaurant)

	staff.GET("/tables", tableCtrl.GetAllTables)
	staff.POST("/tables", middlewares.RequireRoles("staff"), tableCtrl.CreateTable)
	staff.PATCH("/tables/:table_id", middlewares.RequireRoles("staff"), tableCtrl.UpdateTableStatus)
	staff.POST("/tables/:table_id/rotate-pin", middlewares.RequireRoles("staff"), tableCtrl.RotatePin)
	staff.GET("/tables/:table_id/qr", tableCtrl.GetTableQR)
	staff.GET("/dashboard/stats", tableCtrl.GetDashboardStats)

	staff.POST("/sessions/:session_id/end", middlewares.RequireRoles("staff"), verifyCtrl.EndSession)

	staff.GET("/kitchen/display", middlewares.RequireRoles("kitchen", "staff"), orderCtrl.GetKitchenDisplay)
	staff.PATCH("/orders/:order_id/status", middlewares.RequireRoles("kitchen", "staff"), orderCtrl.UpdateOrderStatus)
	staff.POST("/orders/:order_id/pay", middlewares.RequireRoles("staff"), orderCtrl.MarkPaid)
	staff.POST("/orders/settle-by-code", middlewares.RequireRoles("staff"), orderCtrl.SettleByCode)

	return r
}
