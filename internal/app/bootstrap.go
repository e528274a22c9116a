package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	wstore "github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/adapter/weaviate"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/config"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

type Dependencies struct {
	DB          *sql.DB
	VectorStore VectorStore
	NSQProducer *nsq.Producer
}

// Bootstrap connects the relational store, the chunk index and the queue.
// Postgres and Weaviate are retried while they start; topic creation runs in
// the background.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	delay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	db, err := openDatabase(ctx, cfg, delay)
	if err != nil {
		return nil, err
	}
	if err := migrateUp(db, cfg.MigrationPath); err != nil {
		db.Close()
		return nil, err
	}

	wClient, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("weaviate client error: %w", err)
	}
	vecStore := wstore.NewStore(wClient)
	if err := EnsureSchemaWithRetry(ctx, vecStore, cfg.BootstrapRetryAttempts, delay); err != nil {
		db.Close()
		return nil, fmt.Errorf("weaviate schema error: %w", err)
	}

	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}

	// Consumers looking topics up through nsqlookupd fail until the topic exists.
	go ensureTopics(ctx, cfg.NSQDHTTP, cfg.BootstrapRetryAttempts, delay)

	return &Dependencies{
		DB:          db,
		VectorStore: vecStore,
		NSQProducer: producer,
	}, nil
}

func openDatabase(ctx context.Context, cfg *config.Config, delay time.Duration) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := retry(ctx, "ping postgres", cfg.BootstrapRetryAttempts, delay, db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return db, nil
}

func migrateUp(db *sql.DB, path string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up error: %w", err)
	}
	return nil
}

// EnsureSchemaWithRetry creates the chunk class, retrying while Weaviate starts.
func EnsureSchemaWithRetry(ctx context.Context, store VectorStore, attempts int, delay time.Duration) error {
	return retry(ctx, "ensure weaviate schema", attempts, delay, store.EnsureSchema)
}

// retry runs fn up to attempts times with delay between failures and returns
// the last error. It stops early when ctx is done.
func retry(ctx context.Context, step string, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		slog.WarnContext(ctx, "bootstrap step failed, retrying", "step", step, "attempt", i, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func ensureTopics(ctx context.Context, nsqdHTTP string, attempts int, delay time.Duration) {
	client := &http.Client{Timeout: 5 * time.Second}
	for _, topic := range config.Topics {
		err := retry(ctx, "create topic "+topic, attempts, delay, func(ctx context.Context) error {
			return createTopic(ctx, client, nsqdHTTP, topic)
		})
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			continue
		}
		slog.Info("NSQ topic ready", "topic", topic)
	}
}

func createTopic(ctx context.Context, client *http.Client, nsqdHTTP, topic string) error {
	u := url.URL{Scheme: "http", Host: nsqdHTTP, Path: "/topic/create", RawQuery: url.Values{"topic": {topic}}.Encode()}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nsqd answered %s", resp.Status)
	}
	return nil
}
