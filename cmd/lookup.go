package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/msalah0e/trustmap/internal/ui"
)

func lookupCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "lookup <handle|0xaddress>",
		Aliases: []string{"whois"},
		Short:   "Resolve a handle or wallet address to a profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(nil)
			if err != nil {
				return err
			}
			defer c.Close()

			id, err := c.api.Lookup(cmd.Context(), args[0])
			recordLookup(args[0], err)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", args[0], err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(id)
			}

			ui.Banner("lookup")
			profile := ui.Subtle.Sprint("none")
			if id.HasProfile() {
				profile = strconv.FormatInt(*id.ProfileID, 10)
			}
			rows := [][]string{
				{"Name", id.Label()},
				{"Username", id.Username},
				{"Profile", profile},
				{"Account", strconv.FormatInt(id.ID, 10)},
				{"Score", strconv.Itoa(id.Score)},
			}
			for _, r := range rows {
				if r[1] == "" {
					continue
				}
				fmt.Printf("  %s  %s\n", ui.Brand.Sprintf("%-10s", r[0]), r[1])
			}
			if !id.HasProfile() {
				fmt.Println()
				ui.Warn.Printf("  %s no profile yet, graphs are unavailable\n", ui.WarnIcon())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the identity as JSON")
	return cmd
}
