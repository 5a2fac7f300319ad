package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/domain"
	"github.com/persistorai/cobuy/internal/middleware"
	"github.com/persistorai/cobuy/internal/ws"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log           *logrus.Logger
	Backend       domain.Backend
	Hub           *ws.Hub
	Trainer       domain.TrainingService
	Recommender   domain.RecommendationService
	Models        domain.ModelService
	Queue         domain.TrainQueue
	Admin         domain.AdminService
	CORSOrigins   []string
	Version       string
	ArtifactDir   string
	SchemaVersion int
}

// Router-level limits.
const (
	maxBodySize       = 1 << 20 // 1 MB
	rateLimit         = 100     // requests per second per IP
	rateBurst         = 200     // token bucket burst size
	merchantRateLimit = 50      // requests per second per merchant
	merchantRateBurst = 100
)

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, rateLimit, rateBurst, middleware.ByClientIP).Handler())
	r.Use(middleware.PrometheusMiddleware())

	// Unauthenticated, like health.
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	var pinger Pinger
	if deps.Backend != nil {
		pinger = deps.Backend
	}

	health := NewHealthHandler(pinger, deps.Hub, log, deps.Version, deps.ArtifactDir, deps.SchemaVersion)
	train := NewTrainHandler(deps.Trainer, deps.Queue, log)
	recs := NewRecommendationHandler(deps.Recommender, log)
	model := NewModelHandler(deps.Models, log)
	admin := NewAdminHandler(deps.Admin, log)

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	// All other API routes require authentication.
	resolver := middleware.NewCachedMerchantResolver(ctx, deps.Backend)
	bfGuard := middleware.NewBruteForceGuard(ctx, log)
	api.Use(middleware.BruteForceMiddleware(bfGuard))
	api.Use(middleware.AuthMiddleware(resolver, log, bfGuard))
	api.Use(middleware.NewRateLimiter(ctx, merchantRateLimit, merchantRateBurst, middleware.ByMerchant).Handler())

	// Training.
	api.POST("/train", train.Train)
	api.POST("/sales/committed", train.SaleCommitted)
	api.GET("/training-runs", admin.TrainingRuns)

	// Recommendations.
	api.POST("/recommendations", recs.Recommend)
	api.GET("/recommendations", recs.RecommendQuery)
	api.POST("/recommendations/scores", recs.Scores)

	// Model.
	api.GET("/model", model.Get)
	api.DELETE("/model", model.Delete)

	// Admin.
	api.POST("/admin/retrain-all", admin.RetrainAll)

	// WebSocket endpoint.
	if deps.Hub != nil {
		api.GET("/ws", wsHandler(ctx, log, deps.Hub, deps.CORSOrigins, resolver))
	}
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
