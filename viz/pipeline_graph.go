// ABOUTME: Pipeline graph generation with graphviz
// ABOUTME: Stage nodes with lead counts, allowed transitions, and forbidden moves drawn red and dashed
package viz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/workflow"
)

// Edge is one transition drawn in the pipeline graph.
type Edge struct {
	From      string
	To        string
	Forbidden bool
}

type GraphGenerator struct {
	data *models.SystemData
}

func NewGraphGenerator(data *models.SystemData) *GraphGenerator {
	return &GraphGenerator{data: data}
}

func isForbidden(from, to string, forbidden map[string][]string) bool {
	return workflow.ValidateTransition(from, to, forbidden) != nil
}

// PipelineEdges lists the forward flow between consecutive open stages, the
// drop-out from every open stage to Lost, and every forbidden transition.
func PipelineEdges(stages []string, forbidden map[string][]string) []Edge {
	var edges []Edge
	seen := make(map[string]bool)
	add := func(from, to string) {
		key := strings.ToLower(from) + "->" + strings.ToLower(to)
		if seen[key] || strings.EqualFold(from, to) {
			return
		}
		seen[key] = true
		edges = append(edges, Edge{From: from, To: to, Forbidden: isForbidden(from, to, forbidden)})
	}

	var open []string
	lost := ""
	won := ""
	for _, s := range stages {
		switch {
		case strings.EqualFold(s, models.StageLost):
			lost = s
		case strings.EqualFold(s, models.StageWon):
			won = s
		default:
			open = append(open, s)
		}
	}

	for i := 0; i+1 < len(open); i++ {
		add(open[i], open[i+1])
	}
	if won != "" && len(open) > 0 {
		add(open[len(open)-1], won)
	}
	if lost != "" {
		for _, s := range open {
			add(s, lost)
		}
	}

	for _, from := range stages {
		for _, to := range stages {
			if isForbidden(from, to, forbidden) {
				add(from, to)
			}
		}
	}
	return edges
}

func stageColor(stage string) string {
	switch {
	case strings.EqualFold(stage, models.StageWon):
		return "palegreen"
	case strings.EqualFold(stage, models.StageLost):
		return "mistyrose"
	default:
		return "lightblue"
	}
}

func (g *GraphGenerator) build(gv *graphviz.Graphviz) (*cgraph.Graph, error) {
	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("failed to create graph: %w", err)
	}
	graph.SetRankDir(cgraph.LRRank)
	graph.SetLabel("Lead Pipeline")

	stages, counts := StageCounts(g.data)

	nodes := make(map[string]*cgraph.Node, len(stages))
	for i, stage := range stages {
		node, err := graph.CreateNodeByName(fmt.Sprintf("stage_%d", i))
		if err != nil {
			_ = graph.Close()
			return nil, fmt.Errorf("failed to create stage node: %w", err)
		}
		node.SetLabel(fmt.Sprintf("%s\n%d leads", stage, counts[stage]))
		node.SetShape("box")
		node.SetStyle("filled")
		node.SetFillColor(stageColor(stage))
		nodes[strings.ToLower(stage)] = node
	}

	forbidden := workflow.ForbiddenMap(g.data.StageRules)
	for _, e := range PipelineEdges(stages, forbidden) {
		from, to := nodes[strings.ToLower(e.From)], nodes[strings.ToLower(e.To)]
		if from == nil || to == nil {
			continue
		}
		edge, err := graph.CreateEdgeByName(e.From+"->"+e.To, from, to)
		if err != nil {
			_ = graph.Close()
			return nil, fmt.Errorf("failed to create edge: %w", err)
		}
		if e.Forbidden {
			edge.SetColor("red")
			edge.SetStyle("dashed")
			edge.SetLabel("forbidden")
		}
	}
	return graph, nil
}

// StageCounts counts leads per configured stage, appending stages only seen on leads.
func StageCounts(data *models.SystemData) ([]string, map[string]int) {
	stages := append([]string(nil), data.Stages()...)
	canonical := make(map[string]string, len(stages))
	for _, s := range stages {
		canonical[strings.ToLower(s)] = s
	}
	counts := make(map[string]int, len(stages))
	for _, l := range data.Leads {
		stage := l.CurrentStage()
		name, ok := canonical[strings.ToLower(stage)]
		if !ok {
			name = stage
			canonical[strings.ToLower(stage)] = stage
			stages = append(stages, stage)
		}
		counts[name]++
	}
	return stages, counts
}

// Render writes the pipeline graph in format (graphviz.XDOT, graphviz.SVG, graphviz.PNG).
func (g *GraphGenerator) Render(ctx context.Context, format graphviz.Format, w io.Writer) error {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to create graphviz instance: %w", err)
	}
	defer func() { _ = gv.Close() }()

	graph, err := g.build(gv)
	if err != nil {
		return err
	}
	defer func() { _ = graph.Close() }()

	if err := gv.Render(ctx, graph, format, w); err != nil {
		return fmt.Errorf("failed to render graph: %w", err)
	}
	return nil
}

// GeneratePipelineGraph returns the pipeline graph as DOT source.
func (g *GraphGenerator) GeneratePipelineGraph(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	if err := g.Render(ctx, graphviz.XDOT, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ParseFormat maps a file extension or format name to a graphviz format.
func ParseFormat(name string) (graphviz.Format, error) {
	switch strings.TrimPrefix(strings.ToLower(name), ".") {
	case "", "dot", "gv", "xdot":
		return graphviz.XDOT, nil
	case "svg":
		return graphviz.SVG, nil
	case "png":
		return graphviz.PNG, nil
	default:
		return "", fmt.Errorf("unsupported graph format: %s (valid: dot, svg, png)", name)
	}
}
