package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const logo = `                       _            _           _
  ___ _ __ _   _ _ __ | |_ ___   __| | __ _ ___| |__
 / __| '__| | | | '_ \| __/ _ \ / _` + "`" + ` |/ _` + "`" + ` / __| '_ \
| (__| |  | |_| | |_) | || (_) | (_| | (_| \__ \ | | |
 \___|_|   \__, | .__/ \__\___/ \__,_|\__,_|___/_| |_|
           |___/|_|`

// newRenderer returns a lipgloss renderer for w honoring NO_COLOR and
// CLICOLOR_FORCE.
func newRenderer(w io.Writer) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(termenv.EnvColorProfile())
	return r
}

// printBanner writes the startup banner. It is the only output visible in
// the terminal during normal operation; structured logs go to the log file.
func printBanner(w io.Writer, title string, lines [][2]string) {
	r := newRenderer(w)
	logoStyle := r.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	keyStyle := r.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	valueStyle := r.NewStyle().Foreground(lipgloss.Color("39"))

	var b strings.Builder
	b.WriteString(logoStyle.Render(logo))
	b.WriteString("\n\n")
	b.WriteString(r.NewStyle().Bold(true).Render(title))
	b.WriteString("\n")
	for _, l := range lines {
		b.WriteString(keyStyle.Render(l[0]))
		b.WriteString(valueStyle.Render(l[1]))
		b.WriteString("\n")
	}
	fmt.Fprintln(w, b.String())
}
