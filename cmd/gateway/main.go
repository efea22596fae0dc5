package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"asistencia/internal/auth"
	"asistencia/internal/backend"
	"asistencia/internal/checkin"
	"asistencia/internal/config"
	"asistencia/internal/handoff"
	"asistencia/internal/httpmiddleware"
	"asistencia/internal/registration"
	"asistencia/internal/resolver"
	"asistencia/internal/store"
)

func main() {
	cfg := config.Load()
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "gateway").Logger()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}
}

func runHTTP(cfg config.App, logger zerolog.Logger) error {
	client := backend.New(cfg.BackendBaseURL)
	res := resolver.New(client, cfg.SearchPageLimit)

	var redisClient *store.Redis
	var prefillStore handoff.Store
	if cfg.HandoffBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		prefillStore = handoff.NewRedisStore(redisClient.Client, "checkin:prefill", cfg.HandoffTTL)
	} else {
		prefillStore = handoff.NewInMemory()
	}

	sessions := checkin.NewManager(func() *checkin.Session {
		return checkin.NewSession(client, res, prefillStore, checkin.Config{
			ActivityID: cfg.ActivityID,
			Log:        logger,
		})
	}, 30*time.Minute)

	signup := registration.NewService(client, logger, cfg.ActivityID)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "ok"}
		if redisClient != nil {
			healthy := redisClient.Healthy(c.Request.Context())
			body["redis"] = healthy
			if !healthy {
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, body)
	})

	r.POST("/v1/kiosks/register", func(c *gin.Context) {
		var req struct {
			KioskID string `json:"kiosk_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		tokens, err := auth.Issue(req.KioskID, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.KioskAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/sessions", func(c *gin.Context) {
		id, _ := sessions.Open()
		c.JSON(http.StatusCreated, gin.H{"session_id": id})
	})

	authGroup.DELETE("/sessions/:id", func(c *gin.Context) {
		sessions.Close(c.Param("id"))
		c.Status(http.StatusNoContent)
	})

	authGroup.POST("/sessions/:id/search", func(c *gin.Context) {
		session, ok := sessions.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		var req struct {
			Query string `json:"query"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		state, err := session.Search(c.Request.Context(), req.Query)
		if err != nil {
			if errors.Is(err, resolver.ErrEmptyQuery) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "query required"})
				return
			}
			if errors.Is(err, checkin.ErrBusy) {
				c.JSON(http.StatusConflict, gin.H{"error": "busy"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"state": state, "message": session.Message()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"state":      state,
			"message":    session.Message(),
			"candidates": session.Candidates(),
			"prefill":    session.Prefill(),
		})
	})

	authGroup.POST("/sessions/:id/confirm", func(c *gin.Context) {
		session, ok := sessions.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		var req struct {
			PersonaID string `json:"persona_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := session.Confirm(c.Request.Context(), req.PersonaID)
		if err != nil {
			writeCheckinError(c, session, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"state":      result.State,
			"message":    result.Message,
			"registered": result.Outcome.Registered,
		})
	})

	authGroup.POST("/sessions/:id/batch", func(c *gin.Context) {
		session, ok := sessions.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		var req struct {
			PersonaIDs []string `json:"persona_ids"`
			Policy     string   `json:"policy"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		policy := checkin.PolicyStopOnError
		if req.Policy == "continue" {
			policy = checkin.PolicyContinueOnError
		}
		result, err := session.MarkSelected(c.Request.Context(), req.PersonaIDs, policy)
		if err != nil && result.Marked == 0 && result.Failed == 0 {
			writeCheckinError(c, session, err)
			return
		}
		status := http.StatusOK
		if result.Failed > 0 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"state":   session.State(),
			"message": session.Message(),
			"marked":  result.Marked,
			"failed":  result.Failed,
			"skipped": result.Skipped,
			"items":   batchItems(result),
		})
	})

	authGroup.POST("/registrations", func(c *gin.Context) {
		var in registration.Input
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := signup.Register(c.Request.Context(), in)
		if err != nil {
			var fieldErrs registration.FieldErrors
			if errors.As(err, &fieldErrs) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": fieldErrs})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "registration failed, try again"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"persona":  result.Person,
			"message":  result.Message,
			"attended": result.AttendanceAcknowledged,
		})
	})

	authGroup.GET("/prefill", func(c *gin.Context) {
		prefill, ok, err := prefillStore.Take(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "prefill unavailable"})
			return
		}
		if !ok {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, gin.H{"prefill": prefill})
	})

	authGroup.GET("/activities", func(c *gin.Context) {
		activities, err := client.Activities(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "listing failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"activities": activities})
	})

	authGroup.POST("/activities", func(c *gin.Context) {
		var in backend.CreateActivityInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		activity, err := client.CreateActivity(c.Request.Context(), in)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "create failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"activity": activity})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // outbound registry calls carry no timeout
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Msg("starting gateway")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("gateway exited")
	return nil
}

func writeCheckinError(c *gin.Context, session *checkin.Session, err error) {
	switch {
	case errors.Is(err, checkin.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "busy"})
	case errors.Is(err, checkin.ErrNothingSelected):
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing selected"})
	case errors.Is(err, checkin.ErrUnknownPerson):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown persona"})
	case errors.Is(err, checkin.ErrNoActivityToday):
		// Nothing to do today; a success response with its own message.
		c.JSON(http.StatusOK, gin.H{"state": session.State(), "message": session.Message()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"state": session.State(), "message": session.Message()})
	}
}

func batchItems(result checkin.BatchResult) []gin.H {
	items := make([]gin.H, 0, len(result.Items))
	for _, item := range result.Items {
		entry := gin.H{"persona_id": item.PersonID, "skipped": item.Skipped}
		if item.Err != nil {
			entry["error"] = true
		} else if !item.Skipped {
			entry["registered"] = item.Outcome.Registered
		}
		items = append(items, entry)
	}
	return items
}

// CORS middleware for browser kiosks.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
