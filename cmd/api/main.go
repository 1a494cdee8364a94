package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"offer-tracker/internal/config"
	"offer-tracker/internal/events"
	"offer-tracker/internal/handler"
	"offer-tracker/internal/middleware"
	"offer-tracker/internal/service"
	"offer-tracker/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", "", "Path to a JSON config file")
	enableTLS := flag.Bool("tls", false, "Enable HTTPS/TLS")
	certFile := flag.String("cert", "", "TLS certificate file path (required if -tls is set)")
	keyFile := flag.String("key", "", "TLS private key file path (required if -tls is set)")
	flag.Parse()

	if *enableTLS && (*certFile == "" || *keyFile == "") {
		log.Fatalf("-tls requires both -cert and -key")
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if _, err := tracing.InitTracing(cfg.Tracing); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := service.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize offer tracker: %v", err)
	}

	rt.Events.Subscribe(events.EventFollowupDue, func(_ context.Context, e events.Event) error {
		offer := e.Data.(events.OfferData).Offer
		logger.Info("follow-up due", "offer_id", offer.ID, "case_number", offer.CaseNumber, "due", offer.FollowupDate)
		return nil
	})
	rt.Events.Subscribe(events.EventDataCleared, func(context.Context, events.Event) error {
		logger.Warn("all offer tracker data cleared")
		return nil
	})

	if rt.Reminders != nil {
		rt.Reminders.Start(ctx)
	}

	h := handler.NewHandlerWithOptions(rt.Service, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
		Logger:      logger,
	})

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.TracingMiddleware(cfg.Tracing.ServiceName))

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(cfg.Security.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h.Routes(r)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if *enableTLS {
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error closing server: %v", err)
		}
	}()

	protocol := "HTTP"
	if *enableTLS {
		protocol = "HTTPS"
	}
	log.Printf("Starting %s server on %s", protocol, server.Addr)
	log.Printf("Database: %s, legacy store: %s", cfg.Database.Path, cfg.Legacy.Backend)
	if cfg.RateLimit.Enabled {
		log.Printf("Rate limit: %d requests per %d seconds", cfg.RateLimit.Rate, cfg.RateLimit.Window)
	}

	if *enableTLS {
		err = server.ListenAndServeTLS(*certFile, *keyFile)
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.Close(closeCtx); err != nil {
		log.Printf("Error releasing stores: %v", err)
	}
	if err := tracing.Shutdown(closeCtx); err != nil {
		log.Printf("Error flushing traces: %v", err)
	}
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
