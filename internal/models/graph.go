package models

// ServiceGraph is the directed call graph of the monitored services.
type ServiceGraph struct {
	Edges []ServiceGraphEdge `json:"edges" yaml:"edges"`
}

// ServiceGraphEdge represents a dependency edge between two services.
type ServiceGraphEdge struct {
	Source    string  `json:"source" yaml:"source"`
	Target    string  `json:"target" yaml:"target"`
	CallRate  float64 `json:"call_rate,omitempty" yaml:"callRate"`
	ErrorRate float64 `json:"error_rate,omitempty" yaml:"errorRate"`
}

// Nodes returns every service named by the graph, in first-seen order.
func (g ServiceGraph) Nodes() []string {
	seen := make(map[string]struct{}, len(g.Edges)*2)
	nodes := make([]string, 0, len(g.Edges)*2)
	for _, edge := range g.Edges {
		for _, n := range []string{edge.Source, edge.Target} {
			if n == "" {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			nodes = append(nodes, n)
		}
	}
	return nodes
}
