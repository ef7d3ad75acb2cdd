package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"formlink-backend/internal/admin"
	"formlink-backend/internal/auth"
	"formlink-backend/internal/cache"
	"formlink-backend/internal/config"
	"formlink-backend/internal/engine"
	"formlink-backend/internal/metadata"
	"formlink-backend/internal/regsync"
	"formlink-backend/internal/store"
	"formlink-backend/internal/suggest"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db: %s/%s)", cfg.Server.Port, cfg.Database.Driver, cfg.Database.Name)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Bootstrap system tables
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap system tables: %v", err)
	}
	log.Println("System tables ready")

	// 4. Create registry and load configuration
	reg := metadata.NewRegistry()
	offline := cache.NewOffline(db)

	var refresher *regsync.RefreshScheduler
	if cfg.Upstream.ConfigURL != "" {
		fetcher := regsync.NewFetcher(cfg.Upstream.ConfigURL, upstreamTimeout(cfg), offline)
		fetcher.Sync(ctx, reg)
		if cfg.Upstream.RefreshMs > 0 {
			refresher = regsync.NewRefreshScheduler(fetcher, reg, time.Duration(cfg.Upstream.RefreshMs)*time.Millisecond)
			refresher.Start()
			defer refresher.Stop()
		}
	} else {
		if err := metadata.LoadAll(ctx, db, reg); err != nil {
			log.Printf("WARN: Failed to load configuration: %v", err)
		}
	}

	// 5. Build the evaluation engine
	lookupURL := cfg.Upstream.LookupURL
	if lookupURL == "" {
		lookupURL = fmt.Sprintf("http://localhost:%d/api/related_field_value", cfg.Server.Port)
	}
	lookup := engine.NewLookupClient(lookupURL, upstreamTimeout(cfg), offline)
	evaluator := engine.NewEvaluator(engine.NewFormulaEngine(), lookup)

	// 6. Suggestion loader
	history := suggest.NewStoreHistory(db)
	suggester := suggest.NewLoader(reg, history, offline, cfg.Suggest)

	// 7. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: engine.ErrorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 8. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 9. Public form-assist API
	engineHandler := engine.NewHandler(db, reg, evaluator, suggester, cfg.Engine.TriggerBudget)
	engine.RegisterRoutes(app, engineHandler)

	// 10. Admin configuration API (auth + admin required)
	authMW := auth.Middleware(cfg.JWTSecret)
	adminMW := auth.RequireAdmin()
	adminHandler := admin.NewHandler(db, reg)
	admin.RegisterAdminRoutes(app, adminHandler, authMW, adminMW)

	// 11. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

func upstreamTimeout(cfg *config.Config) time.Duration {
	ms := cfg.Upstream.TimeoutMs
	if ms <= 0 {
		ms = 10000
	}
	return time.Duration(ms) * time.Millisecond
}
