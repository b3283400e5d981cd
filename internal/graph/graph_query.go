package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

// TemplateUsage is one template using a component.
type TemplateUsage struct {
	Template   string
	Attributes []string
	Lines      []int
}

// ComponentCount is a component with the number of templates using it.
type ComponentCount struct {
	Name      string
	Templates int
}

// GraphQuerier answers component-usage questions from the graph.
type GraphQuerier struct {
	driver neo4j.DriverWithContext
}

// NewGraphQuerier creates a new graph querier.
func NewGraphQuerier(driver neo4j.DriverWithContext) *GraphQuerier {
	return &GraphQuerier{driver: driver}
}

// TemplatesUsing lists the templates that render the named component.
func (gq *GraphQuerier) TemplatesUsing(ctx context.Context, component string) ([]TemplateUsage, error) {
	session := gq.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (t:Template)-[r:USES]->(c:Component {name: $component})
		RETURN t.path AS template, r.attributes AS attributes, r.lines AS lines
		ORDER BY t.path
	`, map[string]any{"component": component})
	if err != nil {
		return nil, fmt.Errorf("query usages of %s: %w", component, err)
	}

	var usages []TemplateUsage
	for result.Next(ctx) {
		record := result.Record()
		template, _ := record.Get("template")
		attributes, _ := record.Get("attributes")
		lines, _ := record.Get("lines")

		usages = append(usages, TemplateUsage{
			Template:   fmt.Sprintf("%v", template),
			Attributes: toStrings(attributes),
			Lines:      toInts(lines),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read usages of %s: %w", component, err)
	}

	log.Debug().Str("component", component).Int("templates", len(usages)).Msg("Graph query complete")
	return usages, nil
}

// Components lists every known component ordered by usage.
func (gq *GraphQuerier) Components(ctx context.Context) ([]ComponentCount, error) {
	session := gq.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (c:Component)
		OPTIONAL MATCH (t:Template)-[:USES]->(c)
		RETURN c.name AS name, count(t) AS templates
		ORDER BY templates DESC, name
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}

	var counts []ComponentCount
	for result.Next(ctx) {
		record := result.Record()
		name, _ := record.Get("name")
		templates, _ := record.Get("templates")
		n, _ := templates.(int64)
		counts = append(counts, ComponentCount{Name: fmt.Sprintf("%v", name), Templates: int(n)})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read components: %w", err)
	}

	log.Info().Int("count", len(counts)).Msg("Loaded components from graph")
	return counts, nil
}

func toStrings(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprintf("%v", item))
	}
	return out
}

func toInts(v any) []int {
	items, _ := v.([]any)
	out := make([]int, 0, len(items))
	for _, item := range items {
		if n, ok := item.(int64); ok {
			out = append(out, int(n))
		}
	}
	return out
}
