package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"timesheets/internal/httpmiddleware"
	"timesheets/web"
)

// RouterOptions carries the optional middleware wired into the router.
type RouterOptions struct {
	CORSOrigins []string
	Limiter     httpmiddleware.Limiter  // nil disables rate limiting
	Metrics     *httpmiddleware.Metrics // nil disables /metrics
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()

	r.Use(httpmiddleware.RequestID())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
		Formatter: logFormatter,
	}))
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/", page("index.html"))
	r.GET("/admin", page("admin.html"))

	api := r.Group("/api")
	if opts.Limiter != nil {
		api.Use(httpmiddleware.GinMiddleware(opts.Limiter))
	}
	{
		api.GET("/developers", h.ListDevelopers)
		api.POST("/developers", h.CreateDeveloper)
		api.GET("/developers/:id", h.GetDeveloper)
		api.PUT("/developers/:id", h.UpdateDeveloper)
		api.DELETE("/developers/:id", h.DeleteDeveloper)
		api.POST("/developers/:id/avatar", h.UploadAvatar)

		api.GET("/timesheets", h.ListTimesheets)
		api.POST("/timesheets", h.CreateTimesheet)
		api.GET("/timesheets/:id", h.GetTimesheet)
		api.PUT("/timesheets/:id", h.UpdateTimesheet)
		api.DELETE("/timesheets/:id", h.DeleteTimesheet)

		api.GET("/statistics", h.Statistics)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", httpmiddleware.RequestIDHeader},
		ExposeHeaders: []string{httpmiddleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func logFormatter(p gin.LogFormatterParams) string {
	reqID, _ := p.Keys["request_id"].(string)
	return fmt.Sprintf("%s | %3d | %13v | %15s | %-7s %s | req=%s %s\n",
		p.TimeStamp.Format(time.RFC3339),
		p.StatusCode,
		p.Latency,
		p.ClientIP,
		p.Method,
		p.Path,
		reqID,
		p.ErrorMessage,
	)
}

func page(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := web.FS.ReadFile(name)
		if err != nil {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", b)
	}
}
