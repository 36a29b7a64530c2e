// internal/router/router.go
package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gotchaguardian/payment-server/internal/catalog"
	"github.com/gotchaguardian/payment-server/internal/config"
	"github.com/gotchaguardian/payment-server/internal/handlers"
	"github.com/gotchaguardian/payment-server/internal/middleware"
	"github.com/gotchaguardian/payment-server/internal/services"
	"github.com/gotchaguardian/payment-server/internal/utils"
)

// Dependencies carries the long-lived services the router wires into
// handlers. main builds them so it controls their lifecycle.
type Dependencies struct {
	Config        *config.Config
	DB            *gorm.DB
	Catalog       *catalog.Catalog
	Orders        *services.OrderService
	Payments      *services.PaymentService
	Cards         *services.CardService
	Downloads     *services.DownloadService
	Notifications *services.NotificationService
}

func Initialize(deps Dependencies) *gin.Engine {
	// Initialize handlers
	productHandler := handlers.NewProductHandler(deps.Catalog)
	orderHandler := handlers.NewOrderHandler(deps.Orders)
	paymentHandler := handlers.NewPaymentHandler(deps.Payments, deps.Cards, deps.Orders)
	downloadHandler := handlers.NewDownloadHandler(deps.Downloads)
	contactHandler := handlers.NewContactHandler(deps.Notifications)
	adminHandler := handlers.NewAdminHandler(deps.Config, deps.Orders, deps.Payments)

	// Set JWT secret
	utils.SetJWTSecret(deps.Config.Admin.JWTSecret)

	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(deps.Config))
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(deps.DB))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := deps.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "2.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Product catalog (public)
		products := v1.Group("/products")
		{
			products.GET("", productHandler.ListProducts)
			products.GET("/:id", productHandler.GetProduct)
		}

		// Order routes
		orders := v1.Group("/orders")
		{
			orders.POST("", orderHandler.CreateOrder)
			orders.GET("/:id", orderHandler.GetOrder)
		}

		// Payment routes
		payments := v1.Group("/payments")
		payments.Use(middleware.PaymentRateLimit())
		{
			payments.POST("/paypal", paymentHandler.BeginPayPalPayment)
			payments.POST("/paypal/execute", paymentHandler.ExecutePayPalPayment)
			payments.POST("/paypal/cancel", paymentHandler.CancelPayment)
			payments.POST("/card", paymentHandler.BeginCardPayment)
			payments.POST("/card/confirm", paymentHandler.ConfirmCardPayment)
		}

		// Provider webhooks bypass the payment limiter; PayPal retries
		// aggressively and signature verification gates them anyway.
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/paypal", paymentHandler.PayPalWebhook)
		}

		// Download routes
		downloads := v1.Group("/downloads")
		downloads.Use(middleware.DownloadRateLimit())
		{
			downloads.POST("/token", downloadHandler.RequestToken)
			downloads.GET("/:token", downloadHandler.Download)
		}

		// Contact form
		contact := v1.Group("/contact")
		contact.Use(middleware.ContactRateLimit())
		{
			contact.POST("", contactHandler.SubmitContact)
		}

		// Admin routes
		admin := v1.Group("/admin")
		{
			admin.POST("/login", middleware.LoginRateLimit(), adminHandler.Login)

			protected := admin.Group("")
			protected.Use(middleware.AdminRequired())
			{
				protected.GET("/orders", adminHandler.ListOrders)
				protected.GET("/stats", adminHandler.GetStats)
				protected.POST("/orders/:id/refund", adminHandler.RefundOrder)
				protected.POST("/orders/:id/cancel", adminHandler.CancelOrder)
			}
		}
	}

	r.NoRoute(func(c *gin.Context) {
		utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND",
			fmt.Sprintf("no route for %s %s", c.Request.Method, c.Request.URL.Path), nil)
	})

	return r
}
