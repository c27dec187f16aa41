package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the carecall ASCII art banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	// Teal to blue gradient
	lines := []struct {
		text  string
		color string
	}{
		{`   ___ __ _ _ __ ___  ___ __ _| | |`, "#2dd4bf"},
		{`  / __/ _' | '__/ _ \/ __/ _' | | |`, "#22d3ee"},
		{` | (_| (_| | | |  __/ (_| (_| | | |`, "#38bdf8"},
		{`  \___\__,_|_|  \___|\___\__,_|_|_|`, "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  caregiver call assistant v"+version).Faint())
	fmt.Fprintln(w)
}
