package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/msalah0e/trustmap/internal/cache"
	"github.com/msalah0e/trustmap/internal/config"
	"github.com/msalah0e/trustmap/internal/serve"
	"github.com/msalah0e/trustmap/internal/ui"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"dr"},
		Short:   "Health check — config, cache, API and explorer",
		Run: func(cmd *cobra.Command, args []string) {
			ui.Banner("health check")
			problems := 0

			if _, err := os.Stat(config.Path()); err == nil {
				fmt.Printf("  %s config: %s\n", ui.StatusIcon(true), config.Path())
			} else {
				fmt.Printf("  %s config: defaults %s\n", ui.Subtle.Sprint("-"), ui.Subtle.Sprint("(trustmap config init)"))
			}

			if store, err := cache.Open(cfg.Cache.Backend, logger); err != nil {
				fmt.Printf("  %s cache (%s): %v\n", ui.StatusIcon(false), cfg.Cache.Backend, err)
				problems++
			} else {
				_ = store.Close()
				fmt.Printf("  %s cache (%s): %s\n", ui.StatusIcon(true), cfg.Cache.Backend, cache.Dir())
			}

			if status, elapsed, err := probe(cmd.Context(), cfg.API.BaseURL); err != nil {
				fmt.Printf("  %s api: %s — %v\n", ui.StatusIcon(false), cfg.API.BaseURL, err)
				problems++
			} else {
				fmt.Printf("  %s api: %s — %d in %s\n", ui.StatusIcon(status < 500), cfg.API.BaseURL, status, elapsed.Round(time.Millisecond))
				if status >= 500 {
					problems++
				}
			}

			if running, pid := serve.IsRunning(); running {
				fmt.Printf("  %s explorer: running (PID %d)\n", ui.StatusIcon(true), pid)
			} else {
				fmt.Printf("  %s explorer: not running\n", ui.Subtle.Sprint("-"))
			}

			fmt.Println()
			if problems == 0 {
				ui.Good.Println("  All checks passed")
			} else {
				ui.Warn.Printf("  %s %d problem(s)\n", ui.WarnIcon(), problems)
			}
		},
	}
}

// probe issues a GET against the API root and reports status and latency.
func probe(ctx context.Context, url string) (int, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.API.Timeout.Duration)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, err
	}
	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, time.Since(start), nil
}
