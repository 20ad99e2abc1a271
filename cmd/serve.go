package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/msalah0e/trustmap/internal/explorer"
	"github.com/msalah0e/trustmap/internal/metrics"
	"github.com/msalah0e/trustmap/internal/serve"
	"github.com/msalah0e/trustmap/internal/ui"
)

func serveCmd() *cobra.Command {
	var port int
	var background bool
	var theme string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live graph explorer in the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			if running, pid := serve.IsRunning(); running {
				fmt.Printf("  Explorer already running (PID %d)\n", pid)
				return nil
			}
			if port == 0 {
				port = cfg.Serve.Port
			}
			if theme != "" {
				cfg.Serve.Theme = theme
			}

			if background {
				exe, err := os.Executable()
				if err != nil {
					return err
				}
				child := exec.Command(exe, "serve", "--port", strconv.Itoa(port), "--offline")
				if verbose {
					child.Args = append(child.Args, "--verbose")
				}
				if theme != "" {
					child.Args = append(child.Args, "--theme", theme)
				}
				setDetached(child)
				if err := child.Start(); err != nil {
					return fmt.Errorf("failed to start explorer: %w", err)
				}
				_ = serve.WritePid(child.Process.Pid)

				ui.Good.Printf("  %s Explorer started on http://localhost:%d (PID %d)\n", ui.StatusIcon(true), port, child.Process.Pid)
				return nil
			}

			ecfg, err := explorer.ConfigFrom(cfg)
			if err != nil {
				return err
			}
			m := metrics.NewWithRuntime()
			c, err := newClient(m)
			if err != nil {
				return err
			}
			defer c.Close()

			ui.Banner("live explorer")
			fmt.Printf("  Open http://localhost:%d\n", port)
			fmt.Printf("  %s\n\n", ui.Subtle.Sprintf("metrics on /metrics · requests logged to %s", serve.LogPath()))
			_ = serve.WritePid(os.Getpid())
			defer os.Remove(serve.PidFile())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := serve.New(serve.Config{Port: port, Verbose: verbose, Version: version},
				ecfg, c.source, c.api, serve.WithLogger(logger), serve.WithMetrics(m))
			if err := srv.Start(ctx); err != nil {
				logger.Error("server stopped", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().BoolVarP(&background, "bg", "b", false, "Run in background")
	cmd.Flags().StringVar(&theme, "theme", "", "Colour theme: dark or light")

	cmd.AddCommand(
		serveStopCmd(),
		serveStatusCmd(),
		serveLogsCmd(),
	)
	return cmd
}

func serveStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background explorer",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid := serve.IsRunning()
			if !running {
				fmt.Println("  Explorer is not running")
				return nil
			}
			proc, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}
			if err := stopProcess(proc); err != nil {
				return fmt.Errorf("failed to stop explorer: %w", err)
			}
			_ = os.Remove(serve.PidFile())
			ui.Good.Printf("  %s Explorer stopped (PID %d)\n", ui.StatusIcon(true), pid)
			return nil
		},
	}
}

func serveStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the background explorer is running",
		Run: func(cmd *cobra.Command, args []string) {
			if running, pid := serve.IsRunning(); running {
				ui.Good.Printf("  %s Explorer running (PID %d)\n", ui.StatusIcon(true), pid)
				return
			}
			fmt.Println("  Explorer is not running")
			fmt.Println("  Start: trustmap serve --bg")
		},
	}
}

func serveLogsCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent explorer request logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ui.Banner("explorer logs")

			logs, err := serve.ReadLogs(count)
			if err != nil {
				return fmt.Errorf("failed to read logs: %w", err)
			}
			if len(logs) == 0 {
				fmt.Println("  No requests logged yet.")
				return nil
			}

			headers := []string{"Time", "Method", "Path", "Status", "Duration"}
			var rows [][]string
			for _, entry := range logs {
				rows = append(rows, []string{
					entry.Timestamp.Format("15:04:05"),
					entry.Method,
					truncate(entry.Path, 30),
					fmt.Sprintf("%s %d", ui.StatusIcon(entry.Status < 400), entry.Status),
					fmt.Sprintf("%.0fms", entry.Duration),
				})
			}
			ui.Table(headers, rows)
			fmt.Printf("\n  %d entries\n", len(logs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 50, "Number of log entries to show")
	return cmd
}
