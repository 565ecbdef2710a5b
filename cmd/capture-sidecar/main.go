package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sweetshark/capture-sidecar/internal/config"
	"github.com/sweetshark/capture-sidecar/internal/logging"
	"github.com/sweetshark/capture-sidecar/internal/sidecar"
)

const (
	version = "0.1.0"

	logMaxSizeMB  = 10
	logMaxBackups = 3
)

var (
	cfgFile  string
	logLevel string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "capture-sidecar",
	Short: "Per-process audio capture sidecar",
	Long:  `capture-sidecar captures the audio a single Windows process renders and streams it to a host over stdin/stdout.`,
	Run: func(cmd *cobra.Command, args []string) {
		runSidecar()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enter the request/response loop on stdin/stdout",
	Run: func(cmd *cobra.Command, args []string) {
		runSidecar()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("capture-sidecar v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSidecar() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "capture-sidecar: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	initLogging(cfg)

	log.Info("starting", "version", version)

	s := sidecar.New(cfg, os.Stdout)
	defer s.Close()

	if err := s.Run(os.Stdin); err != nil {
		log.Error("dispatch loop exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("stdin closed, shutting down")
}

// initLogging sets up structured logging from config. Diagnostics must
// never land on stdout: that channel is reserved for the JSON-RPC
// responses and events the host parses.
func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stderr

	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, logMaxSizeMB, logMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "capture-sidecar: failed to open log file %s: %v (logging to stderr only)\n", cfg.LogFile, err)
		} else {
			output = logging.TeeWriter(os.Stderr, rw)
		}
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")
}
