package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/neurobridge-delivery/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-delivery/internal/http/middleware"
	"github.com/yungbote/neurobridge-delivery/internal/observability"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	DeliveryHandler *httpH.DeliveryHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	if h := cfg.DeliveryHandler; h != nil {
		// Encounters
		api.POST("/encounters", h.StartEncounter)
		api.POST("/encounters/:id/signals", h.RecordSignal)
		api.POST("/encounters/:id/complete", h.CompleteEncounter)

		// Retention
		api.POST("/retention-checks/:id/answer", h.AnswerRetentionCheck)
		api.GET("/learners/:learner_id/retention-checks/due", h.ListDueRetentionChecks)

		// Insights
		api.GET("/learners/:learner_id/style-profile", h.GetStyleProfile)
		api.GET("/learners/:learner_id/retention-stats", h.RetentionStats)
		api.GET("/learners/:learner_id/concepts/:concept_id/mastery", h.ConceptMastery)
	}

	return r
}
