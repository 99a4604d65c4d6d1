package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/placemate/mailsentry/internal/auth"
	"github.com/placemate/mailsentry/internal/classify"
	"github.com/placemate/mailsentry/internal/config"
	"github.com/placemate/mailsentry/internal/llm"
	"github.com/placemate/mailsentry/internal/logger"
	"github.com/placemate/mailsentry/internal/mail"
	natsjs "github.com/placemate/mailsentry/internal/nats"
	"github.com/placemate/mailsentry/internal/notify"
	"github.com/placemate/mailsentry/internal/providers/gmail"
	"github.com/placemate/mailsentry/internal/providers/outlook"
	"github.com/placemate/mailsentry/internal/store"
	"github.com/placemate/mailsentry/internal/sweep"
)

const runTimeout = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		panic(fmt.Sprintf("init logger: %v", err))
	}
	defer log.Sync()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()

	notifier, err := notify.NewTelegram(cfg.TelegramToken, log)
	if err != nil {
		log.Fatal("failed to create notifier", zap.Error(err))
	}

	var backend classify.AIBackend
	if cfg.AI.APIKey != "" {
		client, err := llm.NewClient(llm.Config{APIKey: cfg.AI.APIKey, ModelName: cfg.AI.Model}, log)
		if err != nil {
			log.Fatal("failed to create AI backend", zap.Error(err))
		}
		backend = client
	} else {
		log.Warn("no AI backend configured, classification is keyword-only")
	}
	classifier := classify.New(backend, log, cfg.AI.Timeout)

	var events sweep.EventPublisher
	if cfg.NATSURL != "" {
		publisher, err := natsjs.NewPublisher(cfg.NATSURL)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer publisher.Close()
		events = publisher
	}

	authClient := auth.NewBetterAuthClient(cfg.Auth.ServerURL, cfg.Auth.ServiceKey)
	factory := fetcherFactory(authClient)

	orchestrator := sweep.New(st, classifier, notifier, factory, events, log, sweep.Config{
		Lookback:      cfg.Sweep.Lookback,
		AlertCooldown: cfg.Sweep.AlertCooldown,
	})

	// One run at a time; overlapping triggers are rejected, not queued.
	var runMu sync.Mutex

	var lastMu sync.RWMutex
	var lastRun *sweep.RunSummary

	runOnce := func(ctx context.Context) (sweep.RunSummary, bool) {
		if !runMu.TryLock() {
			return sweep.RunSummary{}, false
		}
		defer runMu.Unlock()

		runCtx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()

		summary := orchestrator.Run(runCtx)

		lastMu.Lock()
		lastRun = &summary
		lastMu.Unlock()

		return summary, true
	}

	if cfg.Sweep.PollInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Sweep.PollInterval)
			defer ticker.Stop()
			for range ticker.C {
				if _, ok := runOnce(context.Background()); !ok {
					log.Warn("skipping scheduled sweep, previous run still in progress")
				}
			}
		}()
	}

	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		lastMu.RLock()
		last := lastRun
		lastMu.RUnlock()

		resp := gin.H{"status": "ok"}
		if last != nil {
			resp["last_run"] = last
		}
		c.JSON(http.StatusOK, resp)
	})

	api := r.Group("/api")
	if cfg.Auth.JWKSURL != "" {
		verifier, err := auth.NewJWTVerifier(cfg.Auth.JWKSURL)
		if err != nil {
			log.Fatal("failed to create JWT verifier", zap.Error(err))
		}
		api.Use(authMiddleware(verifier))
	} else {
		log.Warn("no JWKS URL configured, trigger endpoint is unauthenticated")
	}

	api.POST("/runs", func(c *gin.Context) {
		summary, ok := runOnce(c.Request.Context())
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting server", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

// fetcherFactory builds provider adapters on demand. Token acquisition
// happens per sweep so an expired credential surfaces as a provider-level
// failure for that recipient only.
func fetcherFactory(authClient *auth.BetterAuthClient) sweep.FetcherFactory {
	return func(ctx context.Context, recipientID string, provider mail.Provider) (sweep.Fetcher, error) {
		token, err := authClient.GetToken(ctx, recipientID, provider)
		if err != nil {
			return nil, fmt.Errorf("get token: %w", err)
		}

		switch provider {
		case mail.ProviderGmail:
			return gmail.New(ctx, token)
		case mail.ProviderOutlook:
			return outlook.New(ctx, token)
		default:
			return nil, fmt.Errorf("unsupported provider %q", provider)
		}
	}
}

func authMiddleware(verifier *auth.JWTVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := verifier.PrincipalFromRequest(c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set("principal_id", principal.ID)
		c.Next()
	}
}
