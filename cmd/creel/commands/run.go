package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyluth/creel/internal/audience"
	"github.com/dyluth/creel/internal/config"
	"github.com/dyluth/creel/internal/debounce"
	"github.com/dyluth/creel/internal/engine"
	"github.com/dyluth/creel/internal/logging"
	"github.com/dyluth/creel/internal/notify"
	"github.com/dyluth/creel/pkg/ledger"
)

var configPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the correlation engine",
	Long: `Run the correlation engine: subscribe to the inbound item channel,
correlate submissions into shipments, and publish notifications on the
outbound send channel. Runs until interrupted.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "creel.yml", "Path to the configuration file")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Instance, logging.ParseLevel(cfg.LogLevel))
	defer log.Sync() //nolint:errcheck

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("invalid redis.url: %w", err)
	}

	client, err := ledger.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis may still be coming up alongside us; retry before giving up.
	ping := backoff.NewExponentialBackOff()
	ping.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(func() error {
		return client.Ping(ctx)
	}, backoff.WithContext(ping, ctx)); err != nil {
		return fmt.Errorf("redis not reachable: %w", err)
	}
	log.Info("connected to redis", zap.String("url", cfg.Redis.URL))

	dispatcher := notify.NewDispatcher(
		notify.NewLedgerTransport(client),
		log,
		cfg.Notify.MaxAlbum,
		cfg.Notify.SendTimeout(),
	)

	eng := engine.New(engine.Config{
		Ledger:        client,
		Debounce:      debounce.New(debounce.RealClock()),
		Dispatcher:    dispatcher,
		Logger:        log,
		QuietPeriod:   cfg.Correlator.QuietPeriod(),
		BindingTTL:    cfg.Correlator.BindingTTL(),
		PromptTTL:     cfg.Prompts.TTL(),
		ManagerScope:  audience.ManagerScope(cfg.Notify.Policy.Managers),
		IncludeClient: cfg.Notify.Policy.IncludeClientOrDefault(),
		ExcludeAuthor: cfg.Notify.Policy.ExcludeAuthorOrDefault(),
	})

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
