// Package planner redistributes orders across compatible machines and
// adjusts existing sequences for urgent manual prioritizations.
package planner

import (
	"encoding/json"
	"fmt"

	"github.com/imprenta-ai/flexoplan/flexoplan"
	"github.com/imprenta-ai/flexoplan/flexoplan/annotations"
)

// CompatibilityGraph is an undirected graph on machine ids. An edge
// means the two machines can exchange roll-bearing jobs.
type CompatibilityGraph map[int]map[int]struct{}

// Neighbors returns the machines compatible with id.
func (g CompatibilityGraph) Neighbors(id int) map[int]struct{} {
	return g[id]
}

// BuildCompatibilityGraph parses each machine's share-rolls declaration
// and materializes the symmetric closure. Declarations are potentially
// one-sided; every declared edge A->B also yields B->A. Self-loops are
// discarded, as are declarations that do not parse.
func BuildCompatibilityGraph(machines []flexoplan.Machine, collector *annotations.Collector) CompatibilityGraph {
	graph := make(CompatibilityGraph, len(machines))
	for _, m := range machines {
		graph[m.ID] = make(map[int]struct{})
	}

	for _, m := range machines {
		if m.ShareRolls == "" {
			continue
		}
		ids, err := parseMachineIDs(m.ShareRolls)
		if err != nil {
			collector.Emit(annotations.WarnParse, map[string]any{
				"machine": m.ID,
				"field":   "share_rolls",
				"value":   m.ShareRolls,
			})
			continue
		}
		for _, compatible := range ids {
			graph[m.ID][compatible] = struct{}{}
			if _, known := graph[compatible]; known {
				graph[compatible][m.ID] = struct{}{}
			}
		}
	}

	for id, edges := range graph {
		delete(edges, id)
	}

	collector.Emit(annotations.GraphBuilt, map[string]any{
		"machines": len(graph),
	})
	return graph
}

// parseMachineIDs accepts a JSON list of machine ids encoded either as
// numbers or as numeric strings.
func parseMachineIDs(raw string) ([]int, error) {
	var entries []json.Number
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		// Lists of quoted ids decode as strings, not numbers.
		var strEntries []string
		if err2 := json.Unmarshal([]byte(raw), &strEntries); err2 != nil {
			return nil, err
		}
		entries = make([]json.Number, len(strEntries))
		for i, s := range strEntries {
			entries[i] = json.Number(s)
		}
	}

	ids := make([]int, 0, len(entries))
	for _, n := range entries {
		id, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("machine id %q: %w", n, err)
		}
		ids = append(ids, int(id))
	}
	return ids, nil
}
