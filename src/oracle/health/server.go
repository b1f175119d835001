package health

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewServer builds the HTTP server exposing /health and /metrics. The
// caller owns ListenAndServe and Shutdown.
func NewServer(addr string, checker *Checker, log zerolog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/health", func(c *gin.Context) {
		snap := checker.Snapshot()
		code := http.StatusOK
		if !snap.Healthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, snap)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info().Str("addr", addr).Msg("health server configured")
	return &http.Server{Addr: addr, Handler: r}
}
