// Package cli implements the webanalyzer command-line interface: starting
// analysis runs, watching them live, serving the read-side HTTP API, and
// querying persisted runs (source code, link details) from a durable store.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arvindnair/webanalyzer/internal/store"
	"github.com/arvindnair/webanalyzer/internal/telemetry"
)

var (
	verbose   bool
	mongoURI  string
	mongoDB   string
	redisAddr string
)

// Execute runs the webanalyzer CLI. This is the only entry point main calls.
func Execute() error {
	root := &cobra.Command{
		Use:          "webanalyzer",
		Short:        "Crawl a website, validate its links, and store the results hierarchically",
		Long: `webanalyzer performs a bounded breadth-first crawl of a website, validates
every discovered hyperlink, classifies each page by structural content type,
reconstructs the navigation topology, and persists all artifacts under a
hierarchical source-code deduplication scheme.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection URI for durable storage (in-memory store when unset)")
	root.PersistentFlags().StringVar(&mongoDB, "mongo-db", "webanalyzer", "MongoDB database name")
	root.PersistentFlags().StringVar(&redisAddr, "redis-addr", "", "Redis address for source-read caching (no cache when unset)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newSourceCmd())
	root.AddCommand(newLinksCmd())

	return root.ExecuteContext(context.Background())
}

func newSink() *telemetry.Sink {
	level := charmlog.InfoLevel
	if verbose {
		level = charmlog.DebugLevel
	}
	return telemetry.NewSink(os.Stderr, level)
}

// buildStore assembles the configured store stack: MemoryStore by default,
// MongoStore when --mongo-uri is set, optionally wrapped in a CachingStore
// when --redis-addr is set. The returned cleanup disconnects any clients.
func buildStore(ctx context.Context, sink *telemetry.Sink) (store.Store, func(), error) {
	cleanup := func() {}

	var st store.Store
	if mongoURI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to mongodb: %w", err)
		}
		if err := store.EnsureIndexes(ctx, client.Database(mongoDB)); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, fmt.Errorf("ensure mongodb indexes: %w", err)
		}
		st = store.NewMongoStore(client, mongoDB, sink)
		cleanup = func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}
	} else {
		st = store.NewMemoryStore(sink)
	}

	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		st = store.NewCachingStore(st, client, sink)
		inner := cleanup
		cleanup = func() {
			_ = client.Close()
			inner()
		}
	}

	return st, cleanup, nil
}

// requireDurableStore guards the read commands: querying a past run only
// makes sense against a store that outlives the process.
func requireDurableStore() error {
	if mongoURI == "" {
		return fmt.Errorf("this command reads a persisted run and requires --mongo-uri")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func joinPath(path []string) string {
	return strings.Join(path, " > ")
}
