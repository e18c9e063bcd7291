package cmd

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/shaharia-lab/cryptodash/internal/bundle"
	"github.com/shaharia-lab/cryptodash/internal/config"
	"github.com/shaharia-lab/cryptodash/internal/rewrite"
	"github.com/shaharia-lab/cryptodash/internal/server"
)

// NewRoutesCmd returns the "routes" subcommand that prints the rule table or
// resolves sample paths.
func NewRoutesCmd(cfg *config.AppConfig) *cobra.Command {
	var (
		configFile string
		method     string
	)

	cmd := &cobra.Command{
		Use:   "routes [path...]",
		Short: "Show redirect and rewrite rules or resolve request paths",
		Long: `Without arguments, print every redirect and rewrite rule in evaluation
order. With paths, show how the gateway would handle a request for each.

Examples:
  cryptodash routes
  cryptodash routes /api/users/42 /dashboard
  cryptodash routes --method POST /api/auth/login`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("config") {
				cfg.FrontendConfigFile = configFile
			}
			fc, err := loadFrontendConfig(cfg)
			if err != nil {
				return err
			}
			rules, err := fc.Compile()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ruleTable(fc))
				return nil
			}

			files, err := bundle.Select(fc.Output, WebFS, fc.DistDir)
			if err != nil {
				return err
			}
			pipeline, err := server.NewPipeline(rules, files, fc.DevServerURL)
			if err != nil {
				return err
			}
			t := newTable("METHOD", "PATH", "HANDLED BY", "RULE", "TARGET")
			for _, p := range args {
				rt, err := resolveRoute(pipeline, strings.ToUpper(method), p)
				if err != nil {
					return err
				}
				rule := "-"
				if rt.Rule != nil {
					rule = rt.Rule.Source
				}
				t.Row(strings.ToUpper(method), p, describeStep(rt), rule, rt.Target())
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", cfg.FrontendConfigFile, "Frontend config file (overrides CRYPTODASH_CONFIG env var)")
	cmd.Flags().StringVar(&method, "method", http.MethodGet, "HTTP method of the resolved requests")
	return cmd
}

func newTable(headers ...string) *table.Table {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
}

func ruleTable(fc *config.FrontendConfig) *table.Table {
	t := newTable("PHASE", "#", "SOURCE", "DESTINATION", "CONDITIONS")
	for i, r := range fc.Redirects {
		status := r.StatusCode
		if status == 0 {
			status = http.StatusTemporaryRedirect
			if r.Permanent {
				status = http.StatusPermanentRedirect
			}
		}
		t.Row("redirect "+strconv.Itoa(status), strconv.Itoa(i), r.Source, r.Destination, conditions(r.Has, r.Missing))
	}
	phases := []struct {
		name  string
		rules []config.RewriteRule
	}{
		{"beforeFiles", fc.Rewrites.BeforeFiles},
		{"afterFiles", fc.Rewrites.AfterFiles},
		{"fallback", fc.Rewrites.Fallback},
	}
	for _, ph := range phases {
		for i, r := range ph.rules {
			t.Row(ph.name, strconv.Itoa(i), r.Source, r.Destination, conditions(r.Has, r.Missing))
		}
	}
	return t
}

func conditions(has, missing []rewrite.Condition) string {
	var parts []string
	for _, c := range has {
		parts = append(parts, "has "+describeCondition(c))
	}
	for _, c := range missing {
		parts = append(parts, "missing "+describeCondition(c))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func describeCondition(c rewrite.Condition) string {
	s := c.Type
	if c.Key != "" {
		s += " " + c.Key
	}
	if c.Value != "" {
		s += "=" + c.Value
	}
	return s
}

// resolveRoute runs the gateway pipeline for a request to p.
func resolveRoute(pipeline *server.Pipeline, method, p string) (server.Route, error) {
	if !strings.HasPrefix(p, "/") {
		return server.Route{}, fmt.Errorf("path %q must start with /", p)
	}
	req, err := http.NewRequest(method, p, nil)
	if err != nil {
		return server.Route{}, fmt.Errorf("path %q: %w", p, err)
	}
	return pipeline.Resolve(req)
}

func describeStep(rt server.Route) string {
	switch {
	case rt.Location != "":
		return string(rt.Step) + " " + strconv.Itoa(rt.Status)
	case !rt.Found() && rt.Step != server.StepNotFound:
		return string(rt.Step) + " (not found)"
	default:
		return string(rt.Step)
	}
}
