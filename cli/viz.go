// ABOUTME: Visualization CLI commands
// ABOUTME: Handles the pipeline graph and the terminal dashboard
package cli

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-graphviz"
	"golang.org/x/term"

	"github.com/harperreed/leadsheet/handlers"
	"github.com/harperreed/leadsheet/viz"
)

// VizPipelineCommand renders the stage pipeline graph.
func VizPipelineCommand(p *handlers.Pipeline, args []string) error {
	fs := flag.NewFlagSet("viz pipeline", flag.ExitOnError)
	output := fs.String("output", "", "Output file (default: stdout)")
	format := fs.String("format", "", "dot, svg, or png (default: from the output extension, else dot)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	name := *format
	if name == "" && *output != "" {
		name = filepath.Ext(*output)
	}
	gvFormat, err := viz.ParseFormat(name)
	if err != nil {
		return err
	}
	if gvFormat == graphviz.PNG && *output == "" && term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("refusing to write PNG to a terminal; use --output")
	}

	ctx := context.Background()
	generator := viz.NewGraphGenerator(p.Snapshot(ctx, false))

	var buf bytes.Buffer
	if err := generator.Render(ctx, gvFormat, &buf); err != nil {
		return err
	}

	if *output != "" {
		return os.WriteFile(*output, buf.Bytes(), 0644)
	}

	_, err = stdout.Write(buf.Bytes())
	return err
}

// VizDashboardCommand prints the pipeline dashboard.
func VizDashboardCommand(p *handlers.Pipeline, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	refresh := fs.Bool("refresh", false, "Bypass the cache")
	_ = fs.Parse(args)

	data := p.Snapshot(context.Background(), *refresh)
	stats := viz.GenerateDashboardStats(data, p.Now())
	_, _ = fmt.Fprint(stdout, viz.RenderDashboard(stats))
	return nil
}
