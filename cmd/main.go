package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cafe-ordering/internal/backend"
	"cafe-ordering/internal/config"
	"cafe-ordering/internal/database"
	"cafe-ordering/internal/logger"
	"cafe-ordering/internal/messaging"
	"cafe-ordering/internal/models"
	"cafe-ordering/internal/payment"
	"cafe-ordering/internal/services/customer"
	"cafe-ordering/internal/services/notification"
	"cafe-ordering/internal/tracking"
)

func main() {
	// Parse command line flags
	var (
		mode          = flag.String("mode", "", "Service mode (customer-api, order-watcher, notification-subscriber)")
		port          = flag.Int("port", 3000, "HTTP port")
		maxConcurrent = flag.Int("max-concurrent", 50, "Maximum concurrent order creations")
		sessionToken  = flag.String("session-token", "", "Session token (required for order-watcher mode)")
		pollInterval  = flag.Int("poll-interval", 30, "Order poll interval in seconds")
		prefetch      = flag.Int("prefetch", 1, "RabbitMQ prefetch count")
	)
	flag.Parse()

	// Validate required mode flag
	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log := logger.New(*mode)
	requestID := logger.GenerateRequestID()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode": *mode,
	})

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		cancel()
	}()

	// Route to appropriate service
	switch *mode {
	case "customer-api":
		if err := runCustomerAPI(ctx, cfg, log, *port, *maxConcurrent); err != nil {
			log.Error("service_failed", "Customer API failed", requestID, err, nil)
			os.Exit(1)
		}
	case "order-watcher":
		if *sessionToken == "" {
			log.Error("validation_failed", "session-token is required for order-watcher mode", requestID, nil, nil)
			os.Exit(1)
		}
		if err := runOrderWatcher(ctx, cfg, log, *sessionToken, *pollInterval); err != nil {
			log.Error("service_failed", "Order watcher failed", requestID, err, nil)
			os.Exit(1)
		}
	case "notification-subscriber":
		if err := runNotificationSubscriber(ctx, cfg, log, *prefetch); err != nil {
			log.Error("service_failed", "Notification subscriber failed", requestID, err, nil)
			os.Exit(1)
		}
	default:
		log.Error("validation_failed", fmt.Sprintf("Unknown mode: %s", *mode), requestID, nil, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// runCustomerAPI runs the customer-facing HTTP API
func runCustomerAPI(ctx context.Context, cfg *config.Config, log *logger.Logger, port, maxConcurrent int) error {
	requestID := logger.GenerateRequestID()

	// Initialize database
	db, err := database.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	log.Info("db_connected", "Connected to PostgreSQL database", requestID, nil)

	// Run database migrations
	if err := db.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize messaging
	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)

	publisher := messaging.NewPublisher(conn, log)
	processor := payment.NewProcessorClient(cfg.Processor)

	// Initialize service and handler
	service := customer.NewService(db, publisher, processor, log, maxConcurrent)
	handler := customer.NewHandler(service, log)

	// Setup HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler.SetupRoutes(),
	}

	// Start HTTP server in goroutine
	go func() {
		log.Info("service_started", fmt.Sprintf("Customer API started on port %d", port), requestID, map[string]interface{}{
			"port":           port,
			"max_concurrent": maxConcurrent,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server_failed", "HTTP server failed", requestID, err, nil)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return server.Shutdown(shutdownCtx)
}

// runOrderWatcher polls the customer API and prints status changes to the
// console until interrupted.
func runOrderWatcher(ctx context.Context, cfg *config.Config, log *logger.Logger, token string, intervalSeconds int) error {
	requestID := logger.GenerateRequestID()

	client := backend.NewClient(cfg.Backend.BaseURL)
	poller := tracking.NewPoller(client, log,
		tracking.WithInterval(time.Duration(intervalSeconds)*time.Second),
		tracking.WithErrorHandler(func(err error) {
			fmt.Printf("⚠️  Could not refresh orders: %v\n", err)
		}),
	)

	lastStatus := make(map[string]models.OrderStatus)
	poller.Start(ctx, token, func(orders []models.Order) {
		for _, o := range orders {
			prev, seen := lastStatus[o.ID]
			if !seen {
				fmt.Printf("📋 Order %s: %s (total $%s)\n", o.ID, o.Status, o.Total.String())
			} else if prev != o.Status {
				fmt.Printf("🔔 Order %s: %s -> %s\n", o.ID, prev, o.Status)
			}
			lastStatus[o.ID] = o.Status
		}
	})

	log.Info("service_started", "Order watcher started", requestID, map[string]interface{}{
		"interval_seconds": intervalSeconds,
	})

	<-ctx.Done()
	poller.Stop()
	return nil
}

// runNotificationSubscriber consumes order notifications from RabbitMQ
func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	consumer := messaging.NewConsumer(conn, log, messaging.NotificationsQueue, "notification-subscriber", prefetch)
	subscriber := notification.NewSubscriber(consumer, log)

	return subscriber.Start(ctx)
}
