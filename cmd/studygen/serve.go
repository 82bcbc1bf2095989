package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/studygen/internal/app"
)

var (
	servePort      string
	serveStepDelay time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the development generation API",
	Long: `Start an HTTP server that stores jobs, simulates the generation pipeline
step by step, and pushes progress over SSE and WebSocket.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "port to listen on (overrides PORT)")
	serveCmd.Flags().DurationVar(&serveStepDelay, "step-delay", 0, "time between simulated steps (overrides SIM_STEP_DELAY)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd, func(cfg *app.Config) {
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}
		if cmd.Flags().Changed("step-delay") {
			cfg.SimStepDelay = serveStepDelay
		}
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return err
	}
	defer a.Close()

	log.Info("Starting dev API", "addr", cfg.Addr(), "db", a.DB.Dialect())
	return a.Run(ctx)
}
