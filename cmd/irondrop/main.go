// Command irondrop serves a directory over HTTP: browsing, ranged
// downloads, direct binary uploads, and name search, from a single binary.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dev-harsh1998/irondrop/internal/config"
	"github.com/dev-harsh1998/irondrop/internal/logging"
	"github.com/dev-harsh1998/irondrop/internal/server"
	"github.com/dev-harsh1998/irondrop/internal/ui"
)

var flags struct {
	directory         string
	listen            string
	port              int
	threads           int
	chunkSize         int
	allowedExtensions string
	username          string
	password          string
	enableUpload      bool
	maxUploadSizeMiB  int64
	uploadDir         string
	configFile        string
	rateLimitMbps     float64
	verbose           bool
	detailedLogging   bool
	noQR              bool
}

func main() {
	root := &cobra.Command{
		Use:           "irondrop",
		Short:         "Single-binary HTTP file server with uploads and search",
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	fs := root.Flags()
	fs.StringVarP(&flags.directory, "directory", "d", "", "directory to serve (required)")
	fs.StringVarP(&flags.listen, "listen", "l", "127.0.0.1", "listen address")
	fs.IntVarP(&flags.port, "port", "p", 8080, "listen port")
	fs.IntVar(&flags.threads, "threads", 8, "worker threads")
	fs.IntVar(&flags.chunkSize, "chunk-size", 8192, "download chunk size in bytes")
	fs.StringVar(&flags.allowedExtensions, "allowed-extensions", "*", "comma-separated glob list of served extensions")
	fs.StringVar(&flags.username, "username", "", "basic auth username")
	fs.StringVar(&flags.password, "password", "", "basic auth password")
	fs.BoolVar(&flags.enableUpload, "enable-upload", false, "accept uploads")
	fs.Int64Var(&flags.maxUploadSizeMiB, "max-upload-size", 0, "maximum upload size in MiB (0 = unlimited)")
	fs.StringVar(&flags.uploadDir, "upload-dir", "", "upload destination (defaults to the served directory)")
	fs.StringVar(&flags.configFile, "config-file", "", "INI config file path")
	fs.Float64Var(&flags.rateLimitMbps, "rate-limit", 0, "per-client bandwidth limit in Mbps (0 = unlimited)")
	fs.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")
	fs.BoolVar(&flags.detailedLogging, "detailed-logging", false, "annotate log lines with callers")
	fs.BoolVar(&flags.noQR, "no-qr", false, "skip the startup QR code")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "irondrop: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)

	logging.SetDetailed(cfg.DetailedLogging)
	if cfg.Verbose {
		logging.SetLevel(1)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	url, err := srv.Start()
	if err != nil {
		return err
	}
	defer func() { _ = srv.Shutdown() }()

	printBanner(cfg, url)
	if !flags.noQR {
		if err := ui.PrintQR(url); err != nil {
			logging.Debug("QR rendering failed", zap.Error(err))
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	fmt.Fprintln(os.Stderr, "shutting down")
	return nil
}

// applyFlagOverrides layers explicitly set flags over the INI values:
// CLI > INI > defaults.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	set := func(name string) bool { return cmd.Flags().Changed(name) }

	if set("directory") || cfg.Directory == "" {
		cfg.Directory = flags.directory
	}
	if set("listen") {
		cfg.Listen = flags.listen
	}
	if set("port") {
		cfg.Port = flags.port
	}
	if set("threads") {
		cfg.Threads = flags.threads
	}
	if set("chunk-size") {
		cfg.ChunkSize = flags.chunkSize
	}
	if set("allowed-extensions") {
		cfg.AllowedExtensions = config.SplitExtensionList(flags.allowedExtensions)
	}
	if set("username") {
		cfg.Username = flags.username
	}
	if set("password") {
		cfg.Password = flags.password
	}
	if set("enable-upload") {
		cfg.EnableUpload = flags.enableUpload
	}
	if set("max-upload-size") {
		cfg.MaxUploadSizeMiB = flags.maxUploadSizeMiB
	}
	if set("upload-dir") {
		cfg.UploadDir = flags.uploadDir
	}
	if set("rate-limit") {
		cfg.RateLimitMbps = flags.rateLimitMbps
	}
	if set("verbose") {
		cfg.Verbose = flags.verbose
	}
	if set("detailed-logging") {
		cfg.DetailedLogging = flags.detailedLogging
	}
}

func printBanner(cfg *config.Config, url string) {
	fmt.Fprintf(os.Stderr, "Serving %s\n", cfg.Directory)
	fmt.Fprintf(os.Stderr, "URL: %s\n", url)
	if cfg.EnableUpload {
		limit := "unlimited"
		if n := cfg.MaxUploadBytes(); n > 0 {
			limit = units.BytesSize(float64(n))
		}
		fmt.Fprintf(os.Stderr, "Uploads: enabled → %s (max %s)\n", cfg.EffectiveUploadDir(), limit)
	}
	if cfg.AuthEnabled() {
		fmt.Fprintln(os.Stderr, "Auth: basic")
	}
	if cfg.RateLimitMbps > 0 {
		fmt.Fprintf(os.Stderr, "Rate limit: %.1f Mbps per client\n", cfg.RateLimitMbps)
	}
	if len(cfg.AllowedExtensions) != 1 || cfg.AllowedExtensions[0] != "*" {
		fmt.Fprintf(os.Stderr, "Extensions: %s\n", strings.Join(cfg.AllowedExtensions, ", "))
	}
}
