package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/msalah0e/trustmap/internal/cache"
	"github.com/msalah0e/trustmap/internal/config"
	"github.com/msalah0e/trustmap/internal/ethos"
	"github.com/msalah0e/trustmap/internal/fetch"
	"github.com/msalah0e/trustmap/internal/logging"
	"github.com/msalah0e/trustmap/internal/metrics"
	"github.com/msalah0e/trustmap/internal/ui"
	"github.com/msalah0e/trustmap/internal/update"
)

var version = "0.3.0"

var (
	offlineMode bool
	verbose     bool
	noCache     bool
	cfg         *config.Config
	logger      = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "trustmap",
	Short: "trustmap — explore trust networks as graphs",
	Long: ui.Brand.Sprint(ui.Mark+" trustmap") + " — vouches, reviews and invitations around any identity\n" +
		ui.Subtle.Sprint("Look up a profile, print its rings, export a graph, or open the live explorer"),
	Version:       version + " " + ui.Mark,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		if verbose {
			cfg.Log.Level = "debug"
		}
		logger = logging.Init(cfg.Log)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
		if !offlineMode {
			update.CheckForUpdate(version)
		}
	},
}

func init() {
	rootCmd.SetVersionTemplate("trustmap {{ .Version }}\n")
	rootCmd.PersistentFlags().BoolVar(&offlineMode, "offline", false, "Skip the update check")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Bypass the response cache")

	rootCmd.AddCommand(
		lookupCmd(),
		graphCmd(),
		historyCmd(),
		serveCmd(),
		cacheCmd(),
		configCmd(),
		doctorCmd(),
		selfCmd(),
		completionCmd(),
	)
}

// Execute runs the root command. Commands return their fatal errors so
// deferred cleanup (closing the cache) runs; they are reported here and main
// exits 1.
func Execute() error {
	err := rootCmd.Execute()
	reportError(os.Stderr, err)
	return err
}

func reportError(w io.Writer, err error) {
	if err == nil {
		return
	}
	ui.Bad.Fprintf(w, "  %s %v\n", ui.StatusIcon(false), err)
}

// client is the API client plus the cached source built on it.
type client struct {
	api    *ethos.Client
	source *fetch.CachedSource
	store  cache.Store
}

func (c *client) Close() {
	if err := c.store.Close(); err != nil {
		logger.Warn("closing cache", zap.Error(err))
	}
}

// newClient wires the API client, the response cache and metrics.
func newClient(m *metrics.Metrics) (*client, error) {
	api := ethos.New(cfg.API, version, ethos.WithLogger(logger), ethos.WithMetrics(m))
	backend := cfg.Cache.Backend
	if noCache {
		backend = "none"
	}
	store, err := cache.Open(backend, logger)
	if err != nil {
		return nil, err
	}
	return &client{
		api:    api,
		source: fetch.NewCachedSource(api, store, cfg.Cache.TTL.Duration, m, logger),
		store:  store,
	}, nil
}
