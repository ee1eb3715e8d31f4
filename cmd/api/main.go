package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"card-offers-api/internal/auth"
	"card-offers-api/internal/cache"
	"card-offers-api/internal/config"
	"card-offers-api/internal/database"
	"card-offers-api/internal/events"
	"card-offers-api/internal/handler"
	"card-offers-api/internal/middleware"
	"card-offers-api/internal/service"
	"card-offers-api/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Optional JSON config file path")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize tracing
	if _, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "card-offers-api",
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracing: %v", err)
		}
	}()

	// Initialize listing cache
	var listCache cache.Cache
	if cfg.Cache.Enabled {
		if cfg.Cache.RedisAddr != "" {
			redisCache, err := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
			if err != nil {
				log.Fatalf("Failed to connect to Redis: %v", err)
			}
			defer redisCache.Close()
			listCache = redisCache
			log.Printf("Listing cache: redis (%s)", cfg.Cache.RedisAddr)
		} else {
			listCache = cache.NewInMemoryCache()
			log.Printf("Listing cache: in-memory")
		}
	}

	// Initialize event hooks
	eventManager := events.NewManager(cfg.Events.Enabled)
	defer eventManager.Shutdown()
	subscribeLogHandlers(eventManager)

	// Initialize service and handlers
	svc := service.NewServiceWithOptions(db, service.Options{
		Cache:  listCache,
		Events: eventManager,
	})
	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
	})

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.AllowDebugHeader)
	if cfg.Auth.AllowDebugHeader {
		log.Printf("WARNING: X-Debug-User header auth is enabled; do not use in production")
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing())
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Security.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Debug-User"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Routes
	r.Route("/offers", func(r chi.Router) {
		r.Use(verifier.Middleware())
		r.Post("/", h.IngestOffers)
		r.Get("/", h.ListOffers)
		r.Delete("/", h.PurgeOffers)
		r.Post("/{offer_id}/highlight", h.ToggleHighlight)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Printf("Database: %s", cfg.Database.Path)

	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}

// subscribeLogHandlers wires the default event subscribers: everything the
// write paths publish ends up in the server log.
func subscribeLogHandlers(m *events.Manager) {
	m.Subscribe(events.EventOffersIngested, func(ctx context.Context, e events.Event) error {
		if data, ok := e.Data.(events.OffersIngestedData); ok {
			log.Printf("event %s: user=%s sources=%v count=%d", e.Type, data.UserID, data.Sources, data.Count)
		}
		return nil
	})
	m.Subscribe(events.EventOffersReaped, func(ctx context.Context, e events.Event) error {
		if data, ok := e.Data.(events.OffersReapedData); ok {
			log.Printf("event %s: user=%s card=%q deleted=%d", e.Type, data.UserID, data.CardNum, data.Deleted)
		}
		return nil
	})
	m.Subscribe(events.EventOffersPurged, func(ctx context.Context, e events.Event) error {
		if data, ok := e.Data.(events.OffersPurgedData); ok {
			log.Printf("event %s: user=%s source=%q deleted=%d", e.Type, data.UserID, data.Source, data.Deleted)
		}
		return nil
	})
}
