package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/msalah0e/trustmap/internal/explorer"
	"github.com/msalah0e/trustmap/internal/graph"
	"github.com/msalah0e/trustmap/internal/render"
	"github.com/msalah0e/trustmap/internal/ui"
	"github.com/msalah0e/trustmap/internal/view"
)

func graphCmd() *cobra.Command {
	var (
		rings      string
		sentiments string
		format     string
		output     string
		width      float64
	)

	cmd := &cobra.Command{
		Use:     "graph <vouches|reviews|invitations> <handle|0xaddress>",
		Aliases: []string{"g", "map"},
		Short:   "Fetch and print the neighbourhood of an identity",
		Long: `Fetch the two-ring neighbourhood of an identity and print it.

Formats:
  rings   tree of the root and each ring (default)
  table   one row per visible identity
  json    canonical graph and visible subgraph
  dot     Graphviz source, render with: twopi -Tsvg
  html    self-contained page with the settled layout`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: kindCompletionFunc,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := graph.ParseKind(args[0])
			if err != nil {
				return err
			}
			req := explorer.Request{Kind: kind, Handle: args[1], Layout: format == "html"}
			if cmd.Flags().Changed("rings") {
				if req.Rings, err = graph.ParseRings(rings); err != nil {
					return err
				}
				if req.Rings == nil {
					req.Rings = []int{}
				}
			}
			if sentiments != "" {
				for _, part := range strings.Split(sentiments, ",") {
					s, err := graph.ParseSentiment(part)
					if err != nil {
						return err
					}
					req.Sentiments = append(req.Sentiments, s)
				}
			}
			if width > 0 {
				req.Size = view.Size{Width: width, Height: width}
			}

			ecfg, err := explorer.ConfigFrom(cfg)
			if err != nil {
				return err
			}
			c, err := newClient(nil)
			if err != nil {
				return err
			}
			defer c.Close()

			start := time.Now()
			res, err := explorer.Run(cmd.Context(), c.source, c.api, ecfg, req, explorer.WithLogger(logger))
			recordHistory("graph", string(kind), args[1], res.Status, len(res.Visible.Nodes))
			if err != nil {
				return fmt.Errorf("%s for %s: %w", kind, args[1], err)
			}
			if res.Graph == nil {
				ui.Warn.Printf("  %s %s\n", ui.WarnIcon(), res.Status.Message)
				return nil
			}

			switch format {
			case "json":
				data, err := res.Visible.ExportJSON()
				if err != nil {
					return err
				}
				return writeOutput(output, string(data)+"\n")
			case "dot":
				return writeOutput(output, graph.ExportDOT(kind, res.Visible.Nodes, res.Visible.Edges))
			case "html":
				if output == "" {
					output = fmt.Sprintf("trustmap-%s-%s.html", sanitizeName(res.Root.Label()), kind)
				}
				if err := writeOutput(output, render.StaticPage(res.Scene, ecfg.View)); err != nil {
					return err
				}
				ui.Good.Printf("  %s Wrote %s (%d nodes, %d layout ticks)\n",
					ui.StatusIcon(true), output, len(res.Scene.Nodes), res.Ticks)
				return nil
			case "table":
				printNodeTable(res)
			default:
				ui.Banner(string(kind))
				fmt.Print(graph.RenderRings(kind, res.Visible.Nodes, res.Visible.Edges,
					paint(ui.Brand), paint(ui.Subtle), paint(ui.Info)))
			}

			gs := res.Graph.GetStats()
			fmt.Printf("\n  %d of %d identities · %d of %d edges · %s\n",
				len(res.Visible.Nodes), gs.Nodes, len(res.Visible.Edges), gs.Edges,
				time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&rings, "rings", "r", "2", "Rings to show beyond ring 1, e.g. 2 (empty for ring 1 only)")
	cmd.Flags().StringVarP(&sentiments, "sentiment", "s", "", "Review sentiments to keep, e.g. positive,neutral")
	cmd.Flags().StringVarP(&format, "format", "f", "rings", "Output format: rings, table, json, dot, html")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().Float64Var(&width, "width", 0, "Layout width in pixels for html output")
	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"rings", "table", "json", "dot", "html"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func printNodeTable(res explorer.Result) {
	out := make(map[string]int)
	in := make(map[string]int)
	for _, e := range res.Visible.Edges {
		out[e.Source]++
		in[e.Target]++
	}
	headers := []string{"Name", "Key", "Ring", "Role", "Out", "In", "Score"}
	var rows [][]string
	for _, n := range res.Visible.Nodes {
		rows = append(rows, []string{
			truncate(n.Identity.Label(), 28),
			n.Key,
			ui.Ring(n.Level, strconv.Itoa(n.Level)),
			ui.Role(string(n.Role)),
			strconv.Itoa(out[n.Key]),
			strconv.Itoa(in[n.Key]),
			strconv.Itoa(n.Identity.Score),
		})
	}
	ui.Table(headers, rows)
}

func writeOutput(path, content string) error {
	if path == "" || path == "-" {
		_, err := fmt.Print(content)
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, strings.TrimPrefix(s, "@"))
}

func paint(c *color.Color) func(string) string {
	return func(s string) string { return c.Sprint(s) }
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
