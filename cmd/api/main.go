package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/takeawayhq/voicedesk/backend/internal/config"
	"github.com/takeawayhq/voicedesk/backend/internal/handler"
	"github.com/takeawayhq/voicedesk/backend/internal/model/menu"
	"github.com/takeawayhq/voicedesk/backend/internal/notify"
	dialogService "github.com/takeawayhq/voicedesk/backend/internal/service/dialog"
	intentService "github.com/takeawayhq/voicedesk/backend/internal/service/intent"
	orderService "github.com/takeawayhq/voicedesk/backend/internal/service/order"
	mongoStore "github.com/takeawayhq/voicedesk/backend/internal/store/mongo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	clock := dialogService.SystemClock{}
	catalog := menu.NewMemoryCatalog(menu.Seed())

	// Order persistence: Mongo when a URI is configured, memory otherwise.
	var orderStore orderService.Store
	if cfg.Mongo.URI != "" {
		storage, err := mongoStore.New(mongoStore.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		})
		if err != nil {
			log.Fatalf("failed to connect to mongodb: %v", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = storage.Close(closeCtx)
		}()
		if err := storage.CreateIndexes(ctx); err != nil {
			log.Printf("warning: failed to create mongodb indexes: %v", err)
		}
		orderStore = mongoStore.NewOrderRepository(storage, catalog, clock)
		log.Println("Order store backed by MongoDB")
	} else {
		orderStore = orderService.NewMemoryStore(catalog, clock)
		log.Println("MONGO_URI not set, keeping orders in memory")
	}

	// Notifications: NATS when a URL is configured, log-only otherwise.
	var notifier orderService.Notifier
	if cfg.NATS.URL != "" {
		natsNotifier, err := notify.NewNATSNotifier(cfg.NATS.URL)
		if err != nil {
			log.Printf("warning: failed to connect to NATS: %v", err)
			notifier = notify.LogNotifier{}
		} else {
			defer natsNotifier.Close()
			notifier = natsNotifier
			log.Println("Order notifications published to NATS")
		}
	} else {
		notifier = notify.LogNotifier{}
		log.Println("NATS_URL not set, logging order notifications")
	}

	// Intent classification: LLM with keyword fallback when credentials
	// are present, keyword heuristics alone otherwise.
	var intents *intentService.Service
	if cfg.Intent.Enabled() {
		chatModel, err := cfg.Intent.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize chat model: %v", err)
		} else {
			intents, err = intentService.NewService(ctx, chatModel, intentService.Config{
				Enabled:       true,
				MinConfidence: cfg.Intent.MinConfidence,
			})
			if err != nil {
				log.Printf("warning: failed to initialize intent classifier: %v", err)
				intents = nil
			} else {
				log.Println("LLM intent classifier enabled")
			}
		}
	} else {
		log.Println("Ark credentials not configured, using keyword intent classifier")
	}

	throttle := orderService.NewThrottle(orderStore, cfg.Throttling.MaxOrdersPerSlot)
	finalizer := orderService.NewFinalizer(orderStore, throttle, notifier, clock)
	cancellation := orderService.NewCancellation(cfg.Throttling.CancellationWindow)

	sessions := dialogService.NewSessionStore(cfg.Dialog.SessionTTL, clock)
	machine := dialogService.NewMachine(catalog, finalizer, clock, cfg.Dialog.MinimumPickupLead)

	router := handler.NewRouter(handler.Deps{
		Menu:         catalog,
		Sessions:     sessions,
		Machine:      machine,
		Intents:      intents,
		Orders:       orderStore,
		Cancellation: cancellation,
		Clock:        clock,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("VoiceDesk backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
