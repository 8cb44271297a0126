package routes

import (
	"log/slog"
	"net/http"

	"campusvote/handlers"
	"campusvote/middleware"
	"campusvote/models"
	"campusvote/voting"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	DB          *gorm.DB
	Voting      *voting.Service
	Tokens      *middleware.TokenIssuer
	Reset       *handlers.PasswordReset
	Logger      *slog.Logger
	AllowOrigin string
	PhotoDir    string
	// Registry enables /metrics and request metrics when set.
	Registry *prometheus.Registry
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORS(deps.AllowOrigin))
	if deps.Registry != nil {
		router.Use(middleware.NewHTTPMetrics(deps.Registry).Handler())
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	RegisterHealthRoute(router, deps.DB)
	SetupStaticRoutes(router, deps.PhotoDir)

	api := router.Group("/api")
	RegisterAuthRoutes(api.Group("/auth"), deps.DB, deps.Tokens, deps.Reset)

	authed := api.Group("")
	authed.Use(middleware.Authenticate(deps.Tokens))
	SetupElectionReadRoutes(authed, deps.Voting.Elections)
	SetupProfileRoutes(authed, deps.DB)

	voter := authed.Group("")
	voter.Use(middleware.RequireRoles(models.RoleVoter))
	SetupVotingRoutes(voter, deps.Voting)
	SetupVoterSelfRoutes(voter, deps.DB)

	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	SetupElectionAdminRoutes(admin, deps.Voting.Elections)
	SetupPositionRoutes(admin, deps.DB)
	SetupCandidateRoutes(admin, deps.DB)
	SetupVoterRoutes(admin, deps.DB)
	SetupDepartmentRoutes(admin, deps.DB)

	superadmin := authed.Group("")
	superadmin.Use(middleware.RequireRoles(models.RoleSuperAdmin))
	SetupAdminRoutes(superadmin, deps.DB)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	return router
}
