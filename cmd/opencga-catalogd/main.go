// Package main implements the OpenCGA catalog daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nicholsn/opencga/internal/catalog/api"
	"github.com/nicholsn/opencga/internal/catalog/audit"
	"github.com/nicholsn/opencga/internal/catalog/authorization"
	catalogio "github.com/nicholsn/opencga/internal/catalog/io"
	"github.com/nicholsn/opencga/internal/catalog/manager"
	"github.com/nicholsn/opencga/internal/catalog/persistence"
	"github.com/nicholsn/opencga/internal/common"
	"github.com/nicholsn/opencga/internal/scheduler/sge"
	"github.com/nicholsn/opencga/internal/storage/metadata"
	metadata_mongodb "github.com/nicholsn/opencga/internal/storage/metadata/mongodb"
)

func runServer(ctx context.Context, configPath string) error {
	log.Default().Println("Loading OpenCGA catalog daemon...")
	log.Default().Println("Config Path:", configPath)

	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg)
	common.PrintSplash()

	// === Main Router ===
	r := chi.NewRouter()
	common.AddCors(r, cfg)
	common.AddHealthEndpoint(r, cfg)

	// === Metadata store ===
	log.Printf("🗄️  Connecting to MongoDB database %q", cfg.Mongo.Database)
	db, err := persistence.NewMongoDBCatalogDatabase(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Catalog.Offset)
	if err != nil {
		log.Printf("❌ MongoDB connect failed: %v", err)
		return err
	}
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			log.Printf("error closing catalog database: %v", err)
		}
	}()
	log.Println("✅ MongoDB connection established")

	adaptor, err := metadata_mongodb.NewMongoDBMetadataAdaptor(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	lockDuration := time.Duration(cfg.Storage.LockDuration) * time.Second
	lockTimeout := time.Duration(cfg.Storage.LockTimeout) * time.Second
	meta := metadata.NewManagerWithLocks(adaptor, lockDuration, lockTimeout)

	// === Audit trail ===
	var sink audit.Sink = audit.NopSink{}
	if cfg.Audit.Enabled {
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			cfg.Audit.User, cfg.Audit.Password, cfg.Audit.Host, cfg.Audit.Port, cfg.Audit.DBName)
		log.Printf("🗄️  Connecting to audit store postgres://%s:****@%s:%d/%s",
			cfg.Audit.User, cfg.Audit.Host, cfg.Audit.Port, cfg.Audit.DBName)
		auditDB, err := common.InitializeDatabase(dsn, "")
		if err != nil {
			return fmt.Errorf("open audit store: %w", err)
		}
		pgSink, err := audit.NewPostgresSink(auditDB)
		if err != nil {
			return fmt.Errorf("prepare audit store: %w", err)
		}
		defer func() {
			if err := pgSink.Close(); err != nil {
				log.Printf("error closing audit store: %v", err)
			}
		}()
		sink = pgSink
		log.Println("✅ Audit trail enabled")
	}

	// === Catalog core ===
	auth := authorization.NewManager(db, adaptor, lockDuration, lockTimeout,
		authorization.WithAuditSink(sink))
	ioManager, err := catalogio.NewManager(cfg)
	if err != nil {
		return err
	}
	scheduler := sge.NewManager(cfg.SGE, nil)
	catalog := manager.NewCatalog(db, auth, ioManager, cfg.Catalog.Offset,
		manager.WithScheduler(scheduler),
		manager.WithMetadataManager(meta),
		manager.WithAuditSink(sink),
	)

	// === REST routes ===
	api.NewServer(catalog).RegisterRoutes(r, cfg.Server.ContextPath)

	// === API docs ===
	if err := common.AddSwaggerUIFromFS(r, api.SpecFS, "openapi.yaml",
		"OpenCGA Catalog", "/swagger", "/api-docs/openapi.yaml", cfg); err != nil {
		return err
	}

	// === Start Server ===
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}
	log.Printf("▶️ OpenCGA catalog listening on %s (contextPath=%q)\n", addr, cfg.Server.ContextPath)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// Batch operations this process admitted and never finished would stay
	// RUNNING forever; flag them so a later run can resume them.
	if err := meta.AbortPendingOperations(shutdownCtx); err != nil {
		log.Printf("error aborting pending batch operations: %v", err)
	}
	return nil
}

// setupLogging routes the daemon log through a rotating file when one is
// configured.
func setupLogging(cfg *common.Config) {
	if cfg.Logging.File == "" {
		return
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configPath := ""
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()
	if err := runServer(ctx, configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
