// Package commands wires the configuration, services and HTTP server into
// the blueprint command line.
package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"blueprint-backend/config"
	"blueprint-backend/services"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
	logger   *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "blueprint",
	Short: "Floor-plan device positioning server",
	Long: `Blueprint keeps the positions of IoT anchors, tags and devices on a
floor plan, checks them against a boundary and streams every change to
connected viewers over WebSocket.`,
	Version:           Version,
	PersistentPreRunE: initConfig,
	SilenceUsage:      true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger = services.NewLogger(os.Stderr, cfg.Logging.Level)
	return nil
}

// storeOptions - 설정의 줌 한계와 초기 경계
func storeOptions(c *config.Config) services.StoreOptions {
	opts := services.DefaultStoreOptions()
	opts.MinScale = c.Viewport.MinZoom
	opts.MaxScale = c.Viewport.MaxZoom
	opts.Boundary.X = c.Boundary.X
	opts.Boundary.Y = c.Boundary.Y
	opts.Boundary.Width = c.Boundary.Width
	opts.Boundary.Height = c.Boundary.Height
	return opts
}

func loaderOptions(c *config.Config) services.LoaderOptions {
	return services.LoaderOptions{
		BaseURL: c.Loader.BaseURL,
		Token:   c.Loader.Token,
		Timeout: c.Loader.Timeout,
	}
}
