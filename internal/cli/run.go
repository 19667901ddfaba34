package cli

import (
	"time"

	"github.com/spf13/cobra"

	"raydium-pool-watch/internal/app"
	"raydium-pool-watch/internal/logging"
	"raydium-pool-watch/internal/raydium"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pool watcher daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		defer logger.Sync()

		return app.New(cfg, logger).Run(cmd.Context())
	},
}

func init() {
	// Flag defaults take precedence over config-layer defaults when
	// bound, so they must agree with config.Load.
	runCmd.Flags().String("rpc", "https://api.mainnet-beta.solana.com", "Solana JSON-RPC endpoint")
	runCmd.Flags().String("ws", "wss://api.mainnet-beta.solana.com", "Solana WebSocket endpoint")
	runCmd.Flags().String("program", raydium.AMMV4Program, "AMM program ID to watch")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	runCmd.Flags().String("log-format", "json", "log format (json, console)")
	runCmd.Flags().String("metrics-addr", ":9090", "health/metrics HTTP address (empty to disable)")
	runCmd.Flags().String("storage", "memory", "storage backend (memory, postgres)")
	runCmd.Flags().String("postgres-dsn", "", "Postgres DSN")
	runCmd.Flags().String("clickhouse-dsn", "", "ClickHouse DSN for snapshots (optional)")
	runCmd.Flags().Bool("migrate", true, "apply database migrations on startup")
	runCmd.Flags().String("poll-spec", "*/10 * * * * *", "reserve poll cron spec (with seconds)")
	runCmd.Flags().String("sweep-spec", "0 */5 * * * *", "lifecycle sweep cron spec (with seconds)")
	runCmd.Flags().Float64("change-threshold", 0.005, "fractional change that triggers a snapshot")
	runCmd.Flags().Int("event-buffer", 1024, "event channel buffer size")
	runCmd.Flags().Duration("stale-window", time.Hour, "max pool age past open time")
	runCmd.Flags().Duration("progress-timeout", 30*time.Minute, "max wait for a pool to open")
	runCmd.Flags().Duration("monitoring-max-age", time.Hour, "max monitoring window per pool")
	runCmd.Flags().Int("max-pending", 100, "pending pool capacity")
}
