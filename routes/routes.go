package routes

import (
	"time"

	"fitsense-backend/config"
	"fitsense-backend/controllers"
	"fitsense-backend/services"
	"fitsense-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Accounts    *services.AccountService
	Registry    *services.RegistryService
	Ledger      *services.LedgerService
	Memberships *services.MembershipService
	Reconciler  *services.Reconciler
	Revenue     *services.RevenueService
	Importer    *services.ImportService
}

// NewServices wires the service layer over one database handle.
func NewServices(db *gorm.DB, cfg *config.Config, notifier services.Notifier, publisher services.EventPublisher) *Services {
	reconciler := services.NewReconciler(db)
	return &Services{
		Accounts:    services.NewAccountService(db),
		Registry:    services.NewRegistryService(db),
		Ledger:      services.NewLedgerService(db, notifier, publisher, cfg.Ledger.MaxRetries),
		Memberships: services.NewMembershipService(db, reconciler, notifier, publisher),
		Reconciler:  reconciler,
		Revenue:     services.NewRevenueService(db, 30*time.Second),
		Importer:    services.NewImportService(db),
	}
}

func SetupRouter(cfg *config.Config, svc *Services) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(config.PerformanceLogger(time.Duration(cfg.Server.SlowRequestMs) * time.Millisecond))

	authController := controllers.AuthController{Accounts: svc.Accounts, Registry: svc.Registry, JWT: cfg.JWT}
	memberController := controllers.MemberController{Registry: svc.Registry, Ledger: svc.Ledger}
	membershipController := controllers.MembershipController{Memberships: svc.Memberships}
	importController := controllers.ImportController{Importer: svc.Importer}
	reconcileController := controllers.ReconcileController{Reconciler: svc.Reconciler}
	reportController := controllers.ReportController{Revenue: svc.Revenue}
	notificationController := controllers.NotificationController{Accounts: svc.Accounts}

	requireAuth := utils.AuthMiddleware(cfg.JWT.Secret)

	auth := r.Group("/auth")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
		auth.POST("/logout", authController.Logout)

		auth.GET("/me", requireAuth, authController.Me)
	}

	api := r.Group("/api")
	api.Use(requireAuth)
	{
		api.GET("/plans", membershipController.GetPlans)

		// Member-facing reads check ownership in the controller
		api.GET("/members/:id", memberController.GetMember)
		api.GET("/members/:id/payments", memberController.GetPayments)
		api.GET("/users/:id/payments", membershipController.GetLivePayments)

		notifications := api.Group("/notifications")
		{
			notifications.GET("", notificationController.GetNotifications)
			notifications.PUT("/:id/read", notificationController.MarkRead)
		}

		admin := api.Group("")
		admin.Use(utils.RequireAdmin())
		{
			admin.POST("/plans", membershipController.CreatePlan)

			admin.POST("/users/:id/memberships", membershipController.AssignMembership)
			admin.POST("/users/:id/payments", membershipController.RecordLivePayment)
			admin.POST("/users/:id/reconcile", reconcileController.ReconcileAccount)

			members := admin.Group("/members")
			{
				members.GET("", memberController.GetMembers)
				members.POST("", memberController.CreateMember)
				members.POST("/import", importController.ImportMembers)
				members.PUT("/:id", memberController.UpdateMember)
				members.DELETE("/:id", memberController.DeleteMember)

				members.POST("/:id/payments", memberController.AddPayment)
				members.DELETE("/:id/payments/:entryId", memberController.DeletePayment)
				members.POST("/:id/plan", memberController.AssignPlan)
				members.POST("/:id/plan/cancel", memberController.CancelPlan)
				members.GET("/:id/revenue", reportController.GetMemberRevenue)
			}

			admin.POST("/reconcile", reconcileController.RunReconciliation)

			reports := admin.Group("/reports")
			{
				reports.GET("/revenue", reportController.GetRevenue)
				reports.GET("/modes", reportController.GetModeBreakdown)
				reports.GET("/monthly", reportController.GetMonthly)
			}
			admin.GET("/dashboard", reportController.GetDashboardOverview)
		}
	}

	return r
}
