// Command tnomd runs the Nibiru oracle price-feeder monitor: it polls
// a redundant set of chain REST endpoints, tracks oracle signing and
// wallet balance per slash-window epoch, and alerts PagerDuty and/or
// Telegram on threshold breaches and recoveries.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nibiru-oracle/tnomd/tnom"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		workingDir     string
		configPath     string
		alertPath      string
		prometheusHost string
		prometheusPort int
		showVersion    bool
	)

	cmd := &cobra.Command{
		Use:   "tnomd",
		Short: "Monitor a Nibiru oracle price-feeder validator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Println(version)
				return nil
			}
			return run(cmd.Context(), workingDir, configPath, alertPath, prometheusHost, prometheusPort)
		},
	}

	cmd.Flags().StringVar(&workingDir, "working-dir", mustGetwd(), "working directory for the database and default config locations")
	cmd.Flags().StringVar(&configPath, "config-path", "", "path to config.yml (default <working-dir>/config.yml)")
	cmd.Flags().StringVar(&alertPath, "alert-path", "", "path to alert.yml (default <working-dir>/alert.yml)")
	cmd.Flags().StringVar(&prometheusHost, "prometheus-host", "", "override the metrics bind host from alert.yml")
	cmd.Flags().IntVar(&prometheusPort, "prometheus-port", 0, "override the metrics bind port from alert.yml")
	cmd.Flags().BoolVar(&showVersion, "version", false, "print the version and exit")

	return cmd
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func run(ctx context.Context, workingDir, configPath, alertPath, prometheusHost string, prometheusPort int) error {
	log := tnom.NewLogger()

	if configPath == "" {
		configPath = filepath.Join(workingDir, "config.yml")
	}
	if alertPath == "" {
		alertPath = filepath.Join(workingDir, "alert.yml")
	}

	cfg, err := tnom.LoadConfig(configPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return err
	}

	alertCfg, err := tnom.LoadAlertConfig(alertPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to load alert config")
		return err
	}
	if prometheusHost != "" {
		alertCfg.PrometheusHost = prometheusHost
	}
	if prometheusPort != 0 {
		alertCfg.PrometheusPort = prometheusPort
	}

	dbDir := filepath.Join(workingDir, "chain_database")
	if err = os.MkdirAll(dbDir, 0o755); err != nil {
		log.Error().Err(err).Msg("failed to create database directory")
		return err
	}

	store, err := tnom.OpenEpochStore(filepath.Join(dbDir, "tnom.db"))
	if err != nil {
		log.Error().Err(err).Msg("failed to open epoch store")
		return err
	}
	defer store.Close()

	supervisor := tnom.NewSupervisor(cfg, alertCfg, store, log)
	return supervisor.Run(ctx)
}
