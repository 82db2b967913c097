// ABOUTME: Rule set CLI commands
// ABOUTME: Lists the workflow tables and saves edited rule sets back through the write path
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/harperreed/leadsheet/handlers"
	"github.com/harperreed/leadsheet/models"
)

func orAny(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

// RulesListCommand prints every rule table.
func RulesListCommand(p *handlers.Pipeline, args []string) error {
	fs := flag.NewFlagSet("rules list", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print JSON")
	_ = fs.Parse(args)

	data := p.Snapshot(context.Background(), false)
	if *asJSON {
		return printJSON(data.RuleSets)
	}

	printSource(data)
	_, _ = fmt.Fprintf(stdout, "\nStages: %s\n", strings.Join(data.Stages(), " → "))

	_, _ = fmt.Fprintln(stdout, "\nSTAGE RULES")
	if len(data.StageRules) == 0 {
		_, _ = fmt.Fprintln(stdout, "  (none; every move is allowed)")
	} else {
		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "  FROM\tTO\tREQUIRES\tFORBIDDEN")
		for _, r := range data.StageRules {
			forbidden := ""
			if r.Forbidden {
				forbidden = "yes"
			}
			_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", orAny(r.FromStage), r.ToStage, dash(strings.Join(r.RequiresFields, ", ")), forbidden)
		}
		_ = w.Flush()
	}

	_, _ = fmt.Fprintln(stdout, "\nSLA RULES")
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, r := range data.SLARules {
		_, _ = fmt.Fprintf(w, "  %s\t%gh\t%s\n", r.Stage, r.ThresholdHours, dash(r.AlertLevel))
	}
	_ = w.Flush()

	_, _ = fmt.Fprintln(stdout, "\nAUTO ACTIONS")
	w = tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, r := range data.AutoActionRules {
		_, _ = fmt.Fprintf(w, "  %s\t%s\tin %d day(s)\n", r.TriggerStage, r.DefaultNextAction, r.DefaultDays)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintln(stdout, "\nCATEGORY OVERRIDES")
	w = tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, r := range data.CategoryOverrides {
		_, _ = fmt.Fprintf(w, "  %s\t%s\t+%s\t-%s\n",
			r.Category, orAny(r.Stage), dash(strings.Join(r.Add, ", ")), dash(strings.Join(r.Drop, ", ")))
	}
	return w.Flush()
}

// RulesExportCommand writes the rule sets as JSON.
func RulesExportCommand(p *handlers.Pipeline, args []string) error {
	fs := flag.NewFlagSet("rules export", flag.ExitOnError)
	output := fs.String("output", "", "Output file (default: stdout)")
	_ = fs.Parse(args)

	data := p.Snapshot(context.Background(), false)
	raw, err := json.MarshalIndent(data.RuleSets, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	if *output != "" {
		return os.WriteFile(*output, append(raw, '\n'), 0644)
	}
	_, _ = fmt.Fprintln(stdout, string(raw))
	return nil
}

// RulesImportCommand validates a JSON rule file and saves it.
func RulesImportCommand(p *handlers.Pipeline, args []string) error {
	fs := flag.NewFlagSet("rules import", flag.ExitOnError)
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("rules file required")
	}

	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}
	var rules models.RuleSets
	if err := json.Unmarshal(raw, &rules); err != nil {
		return fmt.Errorf("failed to parse rules file: %w", err)
	}

	writer := p.Engine().Writer()
	if err := writer.SaveConfig(context.Background(), rules); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(stdout, "✓ Rules saved to %s\n", writer.Target())
	_, _ = fmt.Fprintf(stdout, "  %d stage rules, %d SLA rules, %d auto actions, %d category overrides\n",
		len(rules.StageRules), len(rules.SLARules), len(rules.AutoActionRules), len(rules.CategoryOverrides))
	return nil
}
