package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"

	"github.com/PabloGalante/rentchat/internal/adapters/auth"
	"github.com/PabloGalante/rentchat/internal/adapters/cache"
	httpadapter "github.com/PabloGalante/rentchat/internal/adapters/http"
	"github.com/PabloGalante/rentchat/internal/adapters/notify"
	firestorestore "github.com/PabloGalante/rentchat/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/rentchat/internal/adapters/storage/memory"
	mongostore "github.com/PabloGalante/rentchat/internal/adapters/storage/mongo"
	"github.com/PabloGalante/rentchat/internal/app/booking"
	"github.com/PabloGalante/rentchat/internal/app/chatroom"
	"github.com/PabloGalante/rentchat/internal/app/listingwatch"
	"github.com/PabloGalante/rentchat/internal/config"
	"github.com/PabloGalante/rentchat/internal/domain"
	"github.com/PabloGalante/rentchat/internal/observability"
)

// stores groups the ports served by one storage backend.
type stores struct {
	messages domain.MessageLog
	chats    domain.ConversationStore
	profiles domain.ProfileStore
	ledger   domain.BookingLedger
	listings domain.ListingFeed
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := observability.Init(observability.Options{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
	})

	if err := run(cfg); err != nil {
		log.Error("rentchat api stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := observability.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Firebase: FCM and ID tokens
	var fbApp *firebase.App
	if cfg.UsesFirebase() {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.GCPProjectID})
		if err != nil {
			return fmt.Errorf("initializing firebase app: %w", err)
		}
		fbApp = app
	}

	// Storage: Memory, Firestore or Mongo
	st, err := openStores(ctx, cfg, fbApp)
	if err != nil {
		return err
	}
	defer st.close()

	profiles := st.profiles
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		log.Info("profile cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.ProfileTTL)
		profiles = cache.NewProfileCache(rdb, profiles, cfg.Redis.ProfileTTL)
	}

	notifier, closeNotifier, err := buildNotifier(ctx, cfg, fbApp)
	if err != nil {
		return err
	}
	defer closeNotifier()

	authn, err := buildAuthenticator(ctx, cfg, fbApp)
	if err != nil {
		return err
	}

	registry := chatroom.NewRegistry(ctx, chatroom.Deps{
		Log:           st.messages,
		Chats:         st.chats,
		Profiles:      profiles,
		Notifier:      notifier,
		Booking:       booking.NewChannel(st.ledger),
		NotifyTimeout: cfg.NotifyTimeout,
	})
	defer registry.CloseAll()

	if cfg.WatchListings {
		w := listingwatch.New(st.listings, notifier)
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error("listing watcher stopped", "error", err)
			}
		}()
	}

	// HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpadapter.NewServer(registry, booking.NewInbox(st.ledger), authn),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("rentchat api listening", "port", cfg.Port, "mode", cfg.Mode, "storage", cfg.StorageBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg *config.Config, app *firebase.App) (*stores, error) {
	log := observability.Logger()

	switch cfg.StorageBackend {
	case "firestore":
		log.Info("using firestore storage", "project", cfg.GCPProjectID)
		var fs *firestorestore.Store
		if app != nil {
			// share the firebase app's client and credentials
			client, err := app.Firestore(ctx)
			if err != nil {
				return nil, fmt.Errorf("initializing firestore client: %w", err)
			}
			fs = firestorestore.NewStoreWithClient(client)
		} else {
			var err error
			fs, err = firestorestore.NewStore(ctx, cfg.GCPProjectID)
			if err != nil {
				return nil, fmt.Errorf("initializing firestore store: %w", err)
			}
		}
		// 1 store, implements every port
		return &stores{
			messages: fs, chats: fs, profiles: fs, ledger: fs, listings: fs,
			close: func() { _ = fs.Close() },
		}, nil

	case "mongo":
		log.Info("using mongo storage", "database", cfg.Mongo.Database)
		ms, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("initializing mongo store: %w", err)
		}
		return &stores{
			messages: ms, chats: ms, profiles: ms, ledger: ms, listings: ms,
			close: func() { _ = ms.Close(context.Background()) },
		}, nil

	default:
		log.Info("using in-memory storage")
		msgs := memstore.NewMessageStore()
		return &stores{
			messages: msgs,
			chats:    msgs,
			profiles: memstore.NewProfileStore(),
			ledger:   memstore.NewBookingLedger(),
			listings: memstore.NewListingFeed(),
			close:    func() {},
		}, nil
	}
}

func buildNotifier(ctx context.Context, cfg *config.Config, app *firebase.App) (domain.Notifier, func(), error) {
	var (
		fanout  notify.Fanout
		closers []func()
	)

	for _, name := range cfg.Notifiers {
		switch name {
		case "log":
			fanout = append(fanout, notify.LogNotifier{})
		case "fcm":
			client, err := app.Messaging(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("initializing fcm client: %w", err)
			}
			fanout = append(fanout, notify.NewFCMNotifier(client))
		case "kafka":
			k := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			fanout = append(fanout, k)
			closers = append(closers, func() { _ = k.Close() })
		}
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(fanout) == 1 {
		return fanout[0], closeAll, nil
	}
	return fanout, closeAll, nil
}

func buildAuthenticator(ctx context.Context, cfg *config.Config, app *firebase.App) (auth.Authenticator, error) {
	switch cfg.Auth.Provider {
	case "jwt":
		var (
			v   *auth.JWTVerifier
			err error
		)
		if cfg.Auth.JWTPublicKey != "" {
			v, err = auth.NewRSAVerifier(cfg.Auth.JWTPublicKey)
		} else {
			v, err = auth.NewHMACVerifier(cfg.Auth.JWTSecret)
		}
		if err != nil {
			return nil, fmt.Errorf("initializing jwt verifier: %w", err)
		}
		return auth.BearerAuthenticator{Verifier: v}, nil

	case "firebase":
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("initializing firebase auth client: %w", err)
		}
		return auth.BearerAuthenticator{Verifier: auth.NewFirebaseVerifier(client)}, nil

	default:
		if cfg.Mode == config.ModeGCP {
			observability.Logger().Warn("header authentication trusts X-User-ID; use it behind a trusted proxy only")
		}
		return auth.HeaderAuthenticator{}, nil
	}
}
