// ABOUTME: Lead CLI commands
// ABOUTME: Human-friendly commands for listing, adding, editing, and moving leads
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/harperreed/leadsheet/handlers"
	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/workflow"
)

// stdout receives all command output.
var stdout io.Writer = os.Stdout

// companyWidth is how many characters of a company name fit in a table row.
func companyWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 40
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width < 100 {
		return 20
	}
	return 20 + (width-100)/2
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSource(data *models.SystemData) {
	source := string(data.DataSource)
	if data.ReadOnly {
		source += ", read-only"
	}
	_, _ = fmt.Fprintf(stdout, "Source: %s\n", source)
	if data.LastError != "" {
		_, _ = fmt.Fprintf(stdout, "  last error: %s\n", data.LastError)
	}
}

// LeadsListCommand lists leads with optional filters.
func LeadsListCommand(p *handlers.Pipeline, args []string) error {
	fs := flag.NewFlagSet("leads list", flag.ExitOnError)
	stage := fs.String("stage", "", "Filter by stage")
	category := fs.String("category", "", "Filter by category (substring)")
	owner := fs.String("owner", "", "Filter by YDS POC")
	health := fs.String("health", "", "Filter by health (Healthy, Warning, Violated) or label (Overdue, Stagnant)")
	query := fs.String("query", "", "Search company, contact, email, number, and lead ID")
	open := fs.Bool("open", false, "Only leads that are not Won or Lost")
	limit := fs.Int("limit", 50, "Maximum results")
	refresh := fs.Bool("refresh", false, "Bypass the cache")
	asJSON := fs.Bool("json", false, "Print JSON")
	_ = fs.Parse(args)

	leads, data := p.Leads(context.Background(), handlers.LeadQuery{
		Stage:    *stage,
		Category: *category,
		Owner:    *owner,
		Health:   *health,
		Search:   *query,
		OpenOnly: *open,
		Limit:    *limit,
	}, *refresh)

	if *asJSON {
		return printJSON(leads)
	}

	printSource(data)
	if len(leads) == 0 {
		_, _ = fmt.Fprintln(stdout, "No leads found")
		return nil
	}

	width := companyWidth()
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPANY\tSTAGE\tPRIORITY\tOWNER\tQTY\tNEXT ACTION\tHEALTH")
	_, _ = fmt.Fprintln(w, "--\t-------\t-----\t--------\t-----\t---\t-----------\t------")
	for _, lead := range leads {
		next := "-"
		if lead.NextActionDate != "" {
			next = lead.NextActionDate
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			lead.LeadID,
			truncate(dash(lead.CompanyName), width),
			lead.CurrentStage(),
			dash(lead.Priority),
			dash(lead.YdsPoc),
			lead.EstimatedQty,
			next,
			lead.SLAStatus,
		)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(stdout, "\n%d lead(s)\n", len(leads))
	return nil
}

// LeadsShowCommand prints one lead in full.
func LeadsShowCommand(p *handlers.Pipeline, args []string) error {
	fs := flag.NewFlagSet("leads show", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print JSON")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("lead ID required")
	}

	lead, data, err := p.Lead(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(lead)
	}

	h := workflow.DetermineLeadHealth(lead, data.SLARules, p.Now())
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, f := range models.LeadFields {
		if v := f.Value(&lead); v != "" && v != "0" {
			_, _ = fmt.Fprintf(w, "%s:\t%s\n", f.Header, v)
		}
	}
	keys := make([]string, 0, len(lead.Extra))
	for k := range lead.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "%s:\t%s\n", k, lead.Extra[k])
	}
	_, _ = fmt.Fprintf(w, "Health:\t%s (%s) %s\n", h.Label, h.Status, h.Message)
	return w.Flush()
}

// LeadsAddCommand adds a new lead.
func LeadsAddCommand(p *handlers.Pipeline, args []string) error {
	fs := flag.NewFlagSet("leads add", flag.ExitOnError)
	company := fs.String("company", "", "Company name")
	contact := fs.String("contact", "", "Contact person")
	number := fs.String("number", "", "Phone number")
	email := fs.String("email", "", "Email address")
	city := fs.String("city", "", "City")
	source := fs.String("source", "", "Lead source")
	category := fs.String("category", "", "Category")
	product := fs.String("product", "", "Product type")
	printType := fs.String("print", "", "Print type")
	qty := fs.Int("qty", 0, "Estimated quantity")
	owner := fs.String("owner", "", "YDS POC")
	priority := fs.String("priority", "", "Priority (derived from quantity when empty)")
	remarks := fs.String("remarks", "", "Remarks")
	allowDuplicate := fs.Bool("allow-duplicate", false, "Add even if the email or number is already used")
	_ = fs.Parse(args)

	input := handlers.AddLeadInput{
		CompanyName:   *company,
		ContactPerson: *contact,
		Number:        *number,
		Email:         *email,
		City:          *city,
		Source:        *source,
		Category:      *category,
		ProductType:   *product,
		PrintType:     *printType,
		EstimatedQty:  *qty,
		Owner:         *owner,
		Priority:      *priority,
		Remarks:       *remarks,
	}

	created, err := p.Add(context.Background(), input.Lead(), *allowDuplicate)
	if err != nil {
		if errors.Is(err, handlers.ErrDuplicateLead) {
			return fmt.Errorf("%w (use --allow-duplicate to add anyway)", err)
		}
		return err
	}

	_, _ = fmt.Fprintf(stdout, "✓ Lead added: %s (ID: %s)\n", dash(created.CompanyName), created.LeadID)
	_, _ = fmt.Fprintf(stdout, "  Stage: %s\n", created.CurrentStage())
	_, _ = fmt.Fprintf(stdout, "  Priority: %s\n", created.Priority)
	if created.RowIndex >= 2 {
		_, _ = fmt.Fprintf(stdout, "  Row: %d (%s)\n", created.RowIndex, p.Engine().Writer().Target())
	} else {
		_, _ = fmt.Fprintf(stdout, "  Row: not in sheet yet (%s)\n", p.Engine().Writer().Target())
	}
	return nil
}

// fieldFlags collects repeated --set key=value flags.
type fieldFlags map[string]string

func (f fieldFlags) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (f fieldFlags) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	f[strings.TrimSpace(key)] = value
	return nil
}

// LeadsUpdateCommand edits fields on an existing lead.
func LeadsUpdateCommand(p *handlers.Pipeline, args []string) error {
	fs := flag.NewFlagSet("leads update", flag.ExitOnError)
	fields := fieldFlags{}
	fs.Var(fields, "set", "Field to set as key=value (repeatable); key is a field name or sheet header")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("lead ID required")
	}
	if len(fields) == 0 {
		return fmt.Errorf("no fields to update; use --set key=value")
	}

	lead, err := p.Update(context.Background(), fs.Arg(0), fields)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(stdout, "✓ Lead updated: %s (ID: %s)\n", dash(lead.CompanyName), lead.LeadID)
	_, _ = fmt.Fprintf(stdout, "  Fields: %s\n", fields.String())
	return nil
}

// LeadsMoveCommand moves a lead to another stage.
func LeadsMoveCommand(p *handlers.Pipeline, args []string) error {
	fs := flag.NewFlagSet("leads move", flag.ExitOnError)
	_ = fs.Parse(args)

	if fs.NArg() < 2 {
		return fmt.Errorf("usage: leads move <id> <stage>")
	}
	to := strings.Join(fs.Args()[1:], " ")

	lead, err := p.Move(context.Background(), fs.Arg(0), to)
	if err != nil {
		var verr *workflow.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("cannot move to %s; missing: %s", to, strings.Join(verr.Missing, ", "))
		}
		return err
	}

	_, _ = fmt.Fprintf(stdout, "✓ %s moved to %s\n", lead.LeadID, lead.CurrentStage())
	if lead.NextAction != "" {
		_, _ = fmt.Fprintf(stdout, "  Next action: %s (%s)\n", lead.NextAction, lead.NextActionDate)
	}
	return nil
}

// LeadsMissingCommand previews what a stage move still needs.
func LeadsMissingCommand(p *handlers.Pipeline, args []string) error {
	fs := flag.NewFlagSet("leads missing", flag.ExitOnError)
	_ = fs.Parse(args)

	if fs.NArg() < 2 {
		return fmt.Errorf("usage: leads missing <id> <stage>")
	}
	to := strings.Join(fs.Args()[1:], " ")

	check, err := p.Missing(context.Background(), fs.Arg(0), to)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(stdout, "%s: %s → %s\n", check.LeadID, check.From, check.To)
	switch {
	case !check.Allowed:
		_, _ = fmt.Fprintf(stdout, "  ✗ %s\n", check.Reason)
	case len(check.Missing) == 0:
		_, _ = fmt.Fprintln(stdout, "  ✓ ready to move")
	default:
		_, _ = fmt.Fprintf(stdout, "  missing: %s\n", strings.Join(check.Missing, ", "))
	}
	if len(check.Required) > 0 {
		_, _ = fmt.Fprintf(stdout, "  required: %s\n", strings.Join(check.Required, ", "))
	}
	return nil
}

// LeadsHealthCommand prints the health summary and the leads needing attention.
func LeadsHealthCommand(p *handlers.Pipeline, args []string) error {
	fs := flag.NewFlagSet("leads health", flag.ExitOnError)
	owner := fs.String("owner", "", "Only leads owned by this YDS POC")
	_ = fs.Parse(args)

	report := p.Health(context.Background())

	_, _ = fmt.Fprintf(stdout, "Healthy: %d  Warning: %d  Violated: %d\n\n",
		report.Counts[workflow.HealthHealthy], report.Counts[workflow.HealthWarning], report.Counts[workflow.HealthViolated])

	var entries []handlers.HealthEntry
	for _, e := range report.Attention {
		if *owner == "" || strings.EqualFold(e.Owner, *owner) {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(stdout, "Nothing needs attention")
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPANY\tSTAGE\tOWNER\tSTATUS\tDETAIL")
	_, _ = fmt.Fprintln(w, "--\t-------\t-----\t-----\t------\t------")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.LeadID, truncate(dash(e.CompanyName), 24), e.Stage, dash(e.Owner), e.Label, e.Message)
	}
	return w.Flush()
}
