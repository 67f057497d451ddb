package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// Handlers groups every route handler the router mounts.
type Handlers struct {
	Complaint    *ComplaintHandler
	Reward       *RewardHandler
	Notification *NotificationHandler
	Location     *LocationHandler
	Health       *HealthHandler
}

type RouterConfig struct {
	JWTSecret      string
	RequestTimeout time.Duration
}

// NewRouter builds the engine. Every route is served both at the root and
// under /api.
func NewRouter(h Handlers, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	binding.EnableDecoderDisallowUnknownFields = true

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(logger), Timeout(cfg.RequestTimeout))

	r.GET("/", h.Health.Root)
	r.GET("/health", h.Health.Health)

	registerRoutes(&r.RouterGroup, h, cfg)
	api := r.Group("/api")
	api.GET("", h.Health.Root)
	registerRoutes(api, h, cfg)

	return r
}

func registerRoutes(rg *gin.RouterGroup, h Handlers, cfg RouterConfig) {
	complaints := rg.Group("/complaints")
	{
		complaints.POST("", h.Complaint.CreateComplaint)
		complaints.GET("", h.Complaint.GetComplaints)
		complaints.GET("/stats", h.Complaint.GetStats)
		complaints.GET("/:id", h.Complaint.GetComplaint)
		complaints.PUT("/:id", RequireAdmin(cfg.JWTSecret), h.Complaint.UpdateStatus)
		complaints.POST("/:id/feedback", h.Complaint.SubmitFeedback)
	}

	rewards := rg.Group("/rewards")
	{
		rewards.GET("/:citizenId", h.Reward.GetPoints)
		rewards.POST("/claim", h.Reward.Claim)
	}

	rg.GET("/citizens/:citizenId/notifications", h.Notification.GetNotifications)
	rg.GET("/location/reverse", h.Location.Reverse)
}
