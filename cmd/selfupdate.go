package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/msalah0e/trustmap/internal/ui"
	"github.com/msalah0e/trustmap/internal/update"
)

func selfCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "self",
		Aliases: []string{"self-update", "selfupdate"},
		Short:   "Manage trustmap itself",
	}

	cmd.AddCommand(
		selfUpdateCmd(),
	)

	return cmd
}

func selfUpdateCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update trustmap to the latest version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if check {
				ui.Banner("version check")
				update.CheckNow(version)
				return nil
			}

			ui.Banner("self-update")
			if _, err := exec.LookPath("go"); err != nil {
				return fmt.Errorf("go toolchain not found, download a release from https://github.com/msalah0e/trustmap/releases")
			}

			fmt.Println("  Updating via go install...")
			c := exec.Command("go", "install", "github.com/msalah0e/trustmap@latest")
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			if err := c.Run(); err != nil {
				return fmt.Errorf("update failed: %w", err)
			}
			fmt.Println()
			ui.Good.Printf("  %s trustmap updated successfully\n", ui.StatusIcon(true))
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Only check for a newer version")
	return cmd
}
