package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/msalah0e/trustmap/internal/cache"
	"github.com/msalah0e/trustmap/internal/ui"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the API response cache",
	}

	cmd.AddCommand(
		cacheDirCmd(),
		cacheClearCmd(),
		cacheBundleCmd(),
	)

	return cmd
}

func cacheDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dir",
		Short: "Print the cache directory",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(cache.Dir())
		},
	}
}

func cacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached response",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cache.Clear(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			ui.Good.Printf("  %s Cache cleared: %s\n", ui.StatusIcon(true), cache.Dir())
			return nil
		},
	}
}

func cacheBundleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bundle <output.tar.gz>",
		Short: "Create a portable archive of the cache",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			output := args[0]
			ui.Banner("bundling")

			if err := cache.Bundle(output); err != nil {
				ui.Bad.Printf("  Bundle failed: %v\n", err)
				os.Exit(1)
			}

			ui.Good.Printf("  %s Bundle created: %s\n", ui.StatusIcon(true), output)
		},
	}
}
