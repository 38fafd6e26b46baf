// Command shopify-etl runs one extraction for a mode (daily or backfill):
// fetch orders, products, and inventory levels from the Shopify Admin API,
// reconcile order line items, and load the result into PostgreSQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mlovary/shopify-etl/pkg/config"
	"github.com/mlovary/shopify-etl/pkg/logging"
	"github.com/mlovary/shopify-etl/pkg/pipeline"
	"github.com/mlovary/shopify-etl/pkg/ratelimit"
	"github.com/mlovary/shopify-etl/pkg/reconcile"
	"github.com/mlovary/shopify-etl/pkg/shopify"
	"github.com/mlovary/shopify-etl/pkg/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("shopify-etl", flag.ContinueOnError)
	modeFlag := flags.String("mode", string(reconcile.ModeDaily), "extraction mode: daily or backfill")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	mode, err := reconcile.ParseMode(*modeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	// A .env file is a convenience for local runs; schedulers set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		return 1
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	ctx := context.Background()

	limiter, cleanup, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Call limit store unavailable")
		return 1
	}
	defer cleanup()

	client, err := shopify.New(cfg.Shopify, limiter)
	if err != nil {
		logger.Error().Err(err).Msg("Shopify client setup failed")
		return 1
	}

	sink, err := store.New(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Error().Err(err).Msg("Sink connection failed")
		return 1
	}
	defer sink.Close()

	if err := store.EnsureSchema(ctx, sink.Pool()); err != nil {
		logger.Error().Err(err).Msg("Schema check failed")
		return 1
	}

	channels := reconcile.NewChannelMap(cfg.Shopify.ChannelFallback)
	p := pipeline.New(client, sink, channels)

	if err := p.Run(ctx, mode); err != nil {
		logger.Error().Err(err).Str("mode", string(mode)).Msg("Extraction run failed")
		return 1
	}

	return 0
}

// newLimiter builds the call-limit tracker, Redis-backed when configured.
func newLimiter(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*ratelimit.Tracker, func(), error) {
	if cfg.RedisAddr == "" {
		return ratelimit.NewTracker(ratelimit.NewMemoryStore(), logger), func() {}, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Sharing call limit state via Redis")
	tracker := ratelimit.NewTracker(ratelimit.NewRedisStore(redisClient, cfg.Shopify.Shop), logger)
	return tracker, func() { redisClient.Close() }, nil
}
