package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/insightdeck/insightdeck/internal/common"
	"github.com/insightdeck/insightdeck/internal/httpapi/handlers"
	"github.com/insightdeck/insightdeck/internal/httpapi/middleware"
	"github.com/insightdeck/insightdeck/internal/identity"
)

// NewRouter wires the endpoint surface. verified guards the bearer-token
// routes; prototype is the explicit anonymous escape hatch for the
// conversational flow.
func NewRouter(h *handlers.Handler, verified, prototype identity.Resolver) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	// Browser SPA on another origin: permissive CORS, preflight included.
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:          12 * time.Hour,
	}))

	r.NoRoute(func(c *gin.Context) {
		common.Error(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Error(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	f := r.Group("/functions")
	f.GET("/get-mapbox-token", h.MapboxToken)

	authed := f.Group("", middleware.Auth(verified))
	authed.POST("/generate-advanced-charts", h.GenerateAdvancedCharts)
	authed.POST("/generate-chart", h.GenerateChart)
	authed.POST("/customize-chart", h.CustomizeChart)
	authed.POST("/generate-insights", h.GenerateInsights)
	authed.POST("/generate-policies", h.GeneratePolicies)
	authed.POST("/ask-ai", h.AskAI)
	authed.POST("/generate-with-knowledge", h.GenerateWithKnowledge)
	authed.POST("/upload-file", h.UploadFile)

	proto := f.Group("", middleware.Auth(prototype))
	proto.POST("/generate-multiple-charts", h.GenerateMultipleCharts)
	proto.POST("/conversational-chat", h.ConversationalChat)

	return r
}
