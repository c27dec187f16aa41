package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/carecall/pkg/domain"
)

// endNodeID is the synthetic node for steps that close the call after accepting a reply.
const endNodeID = "__end__"

// GenerateMermaid produces a Mermaid flowchart of a scenario.
// It applies semantic styling:
// - First step: ((Circle))
// - Terminal step: ([Stadium])
// - Step waiting for a reply: [/Parallelogram/]
// Edges are labeled with the accepted reply categories.
// If state is running the scenario, visited and current steps are highlighted.
func GenerateMermaid(scenario *domain.Scenario, state *domain.State) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	closes := false
	for i, step := range scenario.Steps {
		safeID := sanitizeMermaidID(step.ID)

		opener, closer := "[", "]"
		switch {
		case i == 0:
			opener, closer = "((", "))"
		case step.Terminal():
			opener, closer = "([", "])"
		case len(step.Accepts) > 0:
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, step.ID, closer)

		if len(step.Accepts) == 0 {
			continue
		}
		target := step.Next
		if target == "" {
			target = endNodeID
			closes = true
		}
		label := strings.ReplaceAll(strings.Join(step.Accepts, " / "), "\"", "'")
		fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, label, sanitizeMermaidID(target))
	}

	if closes {
		fmt.Fprintf(&sb, "    %s((\"end\"))\n", endNodeID)
	}

	if state != nil && state.ScenarioID == scenario.ID {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range state.History {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if state.CurrentStepID != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(state.CurrentStepID))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
