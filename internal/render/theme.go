package render

import (
	"fmt"
	"strings"

	"github.com/msalah0e/trustmap/internal/graph"
)

// Theme is the palette passed to the renderer. It is chosen by the caller
// and never read from the environment.
type Theme struct {
	Name       string                     `json:"name"`
	Background string                     `json:"background"`
	Panel      string                     `json:"panel"`
	Text       string                     `json:"text"`
	Muted      string                     `json:"muted"`
	Edge       string                     `json:"edge"`
	Highlight  string                     `json:"highlight"`
	Ring       string                     `json:"ring"`
	Roles      map[graph.Role]string      `json:"roles"`
	Sentiments map[graph.Sentiment]string `json:"sentiments"`
}

// Dark is the default theme.
func Dark() Theme {
	return Theme{
		Name:       "dark",
		Background: "#0a0e17",
		Panel:      "rgba(10,14,23,0.9)",
		Text:       "#e0e0e0",
		Muted:      "#888888",
		Edge:       "rgba(255,255,255,0.18)",
		Highlight:  "#2DB682",
		Ring:       "rgba(255,255,255,0.05)",
		Roles:      roleColors(),
		Sentiments: sentimentColors(),
	}
}

// Light is the light theme.
func Light() Theme {
	return Theme{
		Name:       "light",
		Background: "#f7f8fa",
		Panel:      "rgba(255,255,255,0.92)",
		Text:       "#1d2330",
		Muted:      "#6b7280",
		Edge:       "rgba(0,0,0,0.18)",
		Highlight:  "#1f9d6c",
		Ring:       "rgba(0,0,0,0.05)",
		Roles:      roleColors(),
		Sentiments: sentimentColors(),
	}
}

// ThemeByName returns "dark" or "light".
func ThemeByName(name string) (Theme, error) {
	switch strings.ToLower(name) {
	case "", "dark":
		return Dark(), nil
	case "light":
		return Light(), nil
	}
	return Theme{}, fmt.Errorf("unknown theme: %q (use dark or light)", name)
}

func roleColors() map[graph.Role]string {
	return map[graph.Role]string{
		graph.RoleRoot:     "#2DB682",
		graph.RoleGiven:    "#0171E3",
		graph.RoleReceived: "#E07C3A",
		graph.RoleBoth:     "#9B59B6",
		graph.RoleExtended: "#7f8c8d",
	}
}

func sentimentColors() map[graph.Sentiment]string {
	return map[graph.Sentiment]string{
		graph.SentimentPositive: "#27ae60",
		graph.SentimentNeutral:  "#95a5a6",
		graph.SentimentNegative: "#e74c3c",
	}
}
