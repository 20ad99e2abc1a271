package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/msalah0e/trustmap/internal/explorer"
	"github.com/msalah0e/trustmap/internal/stats"
	"github.com/msalah0e/trustmap/internal/ui"
)

func historyCmd() *cobra.Command {
	var count int
	var clear bool

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"recent"},
		Short:   "Show recently explored identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clear {
				if err := stats.Clear(); err != nil {
					return err
				}
				ui.Good.Printf("  %s History cleared\n", ui.StatusIcon(true))
				return nil
			}

			ui.Banner("history")
			entries, err := stats.Recent(count)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("  Nothing explored yet. Try: trustmap graph vouches <handle>")
				return nil
			}

			headers := []string{"Time", "Command", "Kind", "Handle", "Outcome", "Nodes"}
			var rows [][]string
			for _, e := range entries {
				nodes := ""
				if e.Nodes > 0 {
					nodes = strconv.Itoa(e.Nodes)
				}
				rows = append(rows, []string{
					e.Timestamp.Format("Jan 02 15:04"),
					e.Command,
					e.Kind,
					truncate(e.Handle, 24),
					fmt.Sprintf("%s %s", ui.StatusIcon(e.OK()), e.Outcome),
					nodes,
				})
			}
			ui.Table(headers, rows)

			s, err := stats.Summarize()
			if err != nil {
				return err
			}
			fmt.Printf("\n  %d explorations · %d without results", s.Total, s.Failed)
			if len(s.Handles) > 0 {
				fmt.Printf(" · most explored: %s (%d)", s.Handles[0].Handle, s.Handles[0].Count)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete the history")
	return cmd
}

// recordHistory appends an exploration to the local history. Failures are
// logged, never fatal.
func recordHistory(command, kind, handle string, status explorer.Status, nodes int) {
	outcome := string(status.Phase)
	switch status.Phase {
	case explorer.PhaseReady:
		outcome = "ok"
	case "":
		outcome = string(explorer.PhaseError)
	}
	if err := stats.Record(stats.Entry{Command: command, Kind: kind, Handle: handle, Outcome: outcome, Nodes: nodes}); err != nil {
		logger.Debug("history not recorded")
	}
}

func recordLookup(handle string, err error) {
	status := explorer.Status{Phase: explorer.PhaseReady}
	if err != nil {
		status.Phase = explorer.PhaseError
	}
	recordHistory("lookup", "", handle, status, 0)
}
