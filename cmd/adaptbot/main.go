package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/EgorLis/adaptgo/internal/bot"
	"github.com/spf13/cobra"
)

// задаются при сборке через -ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "adaptbot",
		Short:         "Demo bot for the Adapt chat service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(runCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		configPath string
		token      string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Log in and answer chat commands until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bot.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if token != "" {
				cfg.Token = token
			}
			log, err := bot.NewLogger(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}

			b, err := bot.New(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := b.Start(ctx); err != nil {
				return err
			}
			defer b.Stop()

			log.Info().Str("version", version).Msg("running… press Ctrl+C to stop")
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "conf/adaptbot.yaml", "path to the YAML config")
	cmd.Flags().StringVar(&token, "token", "", "bot token (overrides config and ADAPT_TOKEN)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("adaptbot %s (%s) %s %s/%s\n", version, commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
