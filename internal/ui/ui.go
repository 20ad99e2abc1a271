package ui

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Brand colors
var (
	Brand  = color.New(color.FgHiGreen, color.Bold)
	Subtle = color.New(color.FgHiBlack)
	Warn   = color.New(color.FgYellow)
	Info   = color.New(color.FgCyan)
	Good   = color.New(color.FgGreen)
	Bad    = color.New(color.FgRed)
)

// Ring colors, indexed by level. Deeper rings reuse the last entry.
var rings = []*color.Color{
	color.New(color.FgHiGreen, color.Bold),
	color.New(color.FgHiCyan),
	color.New(color.FgBlue),
	color.New(color.FgMagenta),
}

const Mark = "◎"

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Banner prints the trustmap banner.
func Banner(subtitle string) {
	fmt.Printf("%s %s · %s\n\n", Mark, Brand.Sprint("trustmap"), subtitle)
}

// Ring paints s in the color of the given ring level.
func Ring(level int, s string) string {
	if level < 0 {
		level = 0
	}
	if level >= len(rings) {
		level = len(rings) - 1
	}
	return rings[level].Sprint(s)
}

// Role paints a node role relative to the root.
func Role(role string) string {
	switch role {
	case "root":
		return Brand.Sprint(role)
	case "given":
		return Info.Sprint(role)
	case "received":
		return Warn.Sprint(role)
	case "both":
		return Good.Sprint(role)
	}
	return Subtle.Sprint(role)
}

// Width is the printed width of s, ignoring color codes.
func Width(s string) int {
	return utf8.RuneCountInString(ansi.ReplaceAllString(s, ""))
}

func pad(s string, w int) string {
	if n := Width(s); n < w {
		return s + strings.Repeat(" ", w-n)
	}
	return s
}

// Table prints a simple aligned table. Cells may be colored.
func Table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && Width(cell) > widths[i] {
				widths[i] = Width(cell)
			}
		}
	}

	headerLine := "  "
	sepLine := "  "
	for i, h := range headers {
		headerLine += pad(h, widths[i]) + "  "
		sepLine += strings.Repeat("─", widths[i]) + "  "
	}
	Subtle.Println(strings.TrimRight(headerLine, " "))
	Subtle.Println(strings.TrimRight(sepLine, " "))

	for _, row := range rows {
		line := "  "
		for i, cell := range row {
			if i < len(widths) {
				line += pad(cell, widths[i]) + "  "
			}
		}
		fmt.Println(strings.TrimRight(line, " "))
	}
}

// StatusIcon returns a status icon string.
func StatusIcon(ok bool) string {
	if ok {
		return Good.Sprint("✓")
	}
	return Bad.Sprint("✗")
}

// WarnIcon returns a warning icon.
func WarnIcon() string {
	return Warn.Sprint("⚠")
}
