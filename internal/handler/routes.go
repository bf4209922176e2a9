package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/attendfi/attendfi-api/internal/middleware"
	"github.com/attendfi/attendfi-api/internal/models"
	"github.com/attendfi/attendfi-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth             *AuthHandler
	Event            *EventHandler
	Enrollment       *EnrollmentHandler
	Session          *SessionHandler
	Claim            *ClaimHandler
	Protocol         *ProtocolHandler
	Statement        *StatementHandler
	Notification     *NotificationHandler
	Metrics          *MetricsHandler
	AuthService      *service.AuthService
	EnableStatements bool
}

// RegisterRoutes mounts the API under the given prefix. Reads are public
// with optional authentication so organizer-only fields can be revealed,
// writes require a token.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	r.GET("/metrics/snapshot", h.Metrics.Snapshot)

	api := r.Group(prefix)

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/register", h.Auth.Register)

	public := api.Group("")
	public.Use(middleware.OptionalJWT(h.AuthService))
	public.GET("/events", h.Event.List)
	public.GET("/events/:id", h.Event.Get)
	public.GET("/events/:id/sessions/:index", h.Event.GetSession)
	public.GET("/events/:id/participants/:address", h.Enrollment.GetParticipant)
	public.GET("/protocol", h.Protocol.State)
	public.GET("/notifications/stream", h.Notification.Stream)

	authed := api.Group("")
	authed.Use(middleware.JWT(h.AuthService))
	authed.POST("/events", h.Event.Create)
	authed.POST("/events/:id/enroll", h.Enrollment.Enroll)
	authed.GET("/enrollments", h.Enrollment.ListMine)
	authed.POST("/events/:id/sessions/:index/code", h.Session.SetCode)
	authed.POST("/events/:id/sessions/:index/attend", h.Session.Attend)
	authed.POST("/events/:id/claim", h.Claim.ClaimFirstPortion)
	authed.POST("/events/:id/sessions/:index/claim-unattended", h.Claim.ClaimUnattended)
	authed.GET("/events/:id/balance", h.Claim.Balance)
	authed.GET("/balances", h.Claim.Balances)
	if h.EnableStatements {
		authed.GET("/events/:id/statement", h.Statement.Download)
		authed.POST("/events/:id/statement-link", h.Statement.Link)
		public.GET("/statements/download", h.Statement.DownloadSigned)
	}

	admin := api.Group("/protocol")
	admin.Use(middleware.JWT(h.AuthService), middleware.RequireRoles(models.RoleAdmin))
	admin.PUT("/max-sessions", h.Protocol.SetMaxSessions)
}
