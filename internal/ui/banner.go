package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var logoArt = []string{
	`           __                                  __       `,
	`  _______ / /___ ___ ____ ___ ___ ____ ____ _ / /_ ___  `,
	` / __/ -_) / -_) _ '(_-</ -_) _ '/ _ '/ _ '/ __/ -_) `,
	`/_/  \__/_/\__/\_,_/___/\__/\_, /\_,_/\_,_/\__/\__/  `,
	`                           /___/                        `,
}

// gradient colours, one per logo row
var logoColors = []string{"208", "215", "226", "118", "51"}

// Banner prints the program banner on w. With logo false only the title
// line is printed.
func Banner(w io.Writer, version string, logo bool, opts ...ConsoleOption) {
	c := NewConsole(w, opts...)
	if logo {
		for i, row := range logoArt {
			style := c.r.NewStyle().Foreground(lipgloss.Color(logoColors[i%len(logoColors)]))
			fmt.Fprintln(w, style.Render(row))
		}
	}
	fmt.Fprintf(w, "\n  %s  %s\n", c.title.Render("releasegate"), c.Dim("v"+version))
	if logo {
		fmt.Fprintln(w, c.rule.Render(strings.Repeat("-", ruleWidth)))
	}
}
