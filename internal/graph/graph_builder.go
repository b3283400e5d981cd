package graph

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"twig-cs-formatter/internal/reflow"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

// Usage aggregates every open tag of one component within a template.
type Usage struct {
	Component  string
	Attributes []string
	Lines      []int
}

// Usages groups scanned components by name. Attribute names are deduplicated
// and sorted; spreads and Twig blocks are left out.
func Usages(components []reflow.Component) []Usage {
	byName := make(map[string]*Usage)
	var order []string

	for _, c := range components {
		u, ok := byName[c.Name]
		if !ok {
			u = &Usage{Component: c.Name}
			byName[c.Name] = u
			order = append(order, c.Name)
		}
		u.Lines = append(u.Lines, c.Line)
		for _, a := range c.Attributes {
			name := attributeName(a)
			if name != "" && !slices.Contains(u.Attributes, name) {
				u.Attributes = append(u.Attributes, name)
			}
		}
	}

	usages := make([]Usage, 0, len(order))
	for _, name := range order {
		u := byName[name]
		slices.Sort(u.Attributes)
		usages = append(usages, *u)
	}
	return usages
}

func attributeName(a reflow.Attribute) string {
	if strings.HasPrefix(a.Name, "{") {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(a.Name, ":"), "=")
}

// GraphBuilder records template → component usage in Neo4j.
type GraphBuilder struct {
	driver neo4j.DriverWithContext
}

// NewGraphBuilder creates a new graph builder.
func NewGraphBuilder(driver neo4j.DriverWithContext) *GraphBuilder {
	return &GraphBuilder{driver: driver}
}

// EnsureSchema creates constraints on the Neo4j database.
func (gb *GraphBuilder) EnsureSchema(ctx context.Context) error {
	session := gb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	constraints := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (t:Template) REQUIRE t.path IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (c:Component) REQUIRE c.name IS UNIQUE",
	}

	for _, c := range constraints {
		if _, err := session.Run(ctx, c, nil); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}

	log.Info().Msg("Graph schema ensured")
	return nil
}

// RecordTemplate replaces the stored usages of a template with the
// components found in text.
func (gb *GraphBuilder) RecordTemplate(ctx context.Context, path, text string) (int, error) {
	usages := Usages(reflow.ScanComponents(text))

	session := gb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (t:Template {path: $path})
			WITH t
			OPTIONAL MATCH (t)-[r:USES]->(:Component)
			DELETE r
		`, map[string]any{"path": path}); err != nil {
			return nil, fmt.Errorf("reset template %s: %w", path, err)
		}

		for _, u := range usages {
			lines := make([]any, len(u.Lines))
			for i, l := range u.Lines {
				lines[i] = int64(l)
			}
			attrs := make([]any, len(u.Attributes))
			for i, a := range u.Attributes {
				attrs[i] = a
			}

			if _, err := tx.Run(ctx, `
				MATCH (t:Template {path: $path})
				MERGE (c:Component {name: $component})
				MERGE (t)-[r:USES]->(c)
				SET r.attributes = $attributes, r.lines = $lines
			`, map[string]any{
				"path":       path,
				"component":  u.Component,
				"attributes": attrs,
				"lines":      lines,
			}); err != nil {
				return nil, fmt.Errorf("record usage %s in %s: %w", u.Component, path, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return 0, err
	}

	log.Debug().Str("template", path).Int("components", len(usages)).Msg("Recorded template")
	return len(usages), nil
}
