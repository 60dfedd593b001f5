package main

import (
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/insightdeck/insightdeck/internal/ai"
	"github.com/insightdeck/insightdeck/internal/audit"
	"github.com/insightdeck/insightdeck/internal/config"
	"github.com/insightdeck/insightdeck/internal/conversation"
	"github.com/insightdeck/insightdeck/internal/db"
	"github.com/insightdeck/insightdeck/internal/generation"
	"github.com/insightdeck/insightdeck/internal/httpapi"
	"github.com/insightdeck/insightdeck/internal/httpapi/handlers"
	"github.com/insightdeck/insightdeck/internal/identity"
	"github.com/insightdeck/insightdeck/internal/knowledge"
	"github.com/insightdeck/insightdeck/internal/policycache"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	rds := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	provider := ai.NewOpenRouterProvider(
		cfg.OpenRouterBaseURL,
		cfg.OpenRouterAPIKey,
		cfg.OpenRouterModel,
		cfg.OpenRouterFallbackModel,
		cfg.OpenRouterSiteURL,
		cfg.OpenRouterAppName,
	)

	runner := generation.NewRunner(provider, cfg.TaskTimeout)
	orch := generation.NewOrchestrator(runner)
	kb := knowledge.NewLoader(gdb, cfg.KnowledgeMaxFiles, cfg.KnowledgeMaxPerFile)
	convs := conversation.NewRepo(gdb)
	policies := policycache.NewCache(gdb, rds)

	// Prefer the broker for audit writes; fall back to inline writes
	// when it is unreachable so generation still works locally.
	var recorder audit.Recorder
	if pub, err := audit.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue); err != nil {
		logrus.WithError(err).Warn("rabbit unavailable, audit writes go direct")
		recorder = audit.NewDirectRecorder(audit.NewWriter(gdb, policies))
	} else {
		defer pub.Close()
		recorder = audit.NewAsyncRecorder(pub)
	}

	h := handlers.NewHandler(cfg, orch, kb, convs, policies, recorder)
	router := httpapi.NewRouter(h,
		identity.NewJWT(cfg.JWTSecret),
		identity.NewStatic(cfg.PrototypeUserID),
	)

	logrus.WithField("addr", cfg.ListenAddr).Info("server starting")
	if err := router.Run(cfg.ListenAddr); err != nil {
		logrus.WithError(err).Fatal("server exited")
	}
}
