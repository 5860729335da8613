package httpcontroller

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/seamless-recorder/internal/logger"
)

// setupRequestLogger logs every request through the module logger
func (s *Server) setupRequestLogger() {
	httpLogger := s.log.Module("request")

	s.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogMethod:    true,
		LogError:     true,
		LogUserAgent: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := logger.LogLevelInfo
			switch {
			case v.Status >= 500:
				level = logger.LogLevelError
			case v.Status >= 400:
				level = logger.LogLevelWarn
			case v.URI == "/metrics":
				// scraped every few seconds
				level = logger.LogLevelDebug
			}

			fields := []logger.Field{
				logger.String("remote_ip", v.RemoteIP),
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Float64("latency_ms", float64(v.Latency)/float64(time.Millisecond)),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			if v.Status >= 400 && v.UserAgent != "" {
				fields = append(fields, logger.String("user_agent", v.UserAgent))
			}

			httpLogger.Log(level, fmt.Sprintf("%s %s %d", v.Method, v.URI, v.Status), fields...)
			return nil
		},
	}))
}
