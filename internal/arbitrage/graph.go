package arbitrage

import (
	"math"

	"github.com/mselser95/cycle-arb/pkg/types"
)

// Edge is a directed conversion between two assets on one venue.
// Weight is -ln(Rate), so a loop with negative summed weight is profitable.
type Edge struct {
	From   string
	To     string
	Rate   float64
	Weight float64
	Side   types.Side
	Sample types.PriceSample

	from int
	to   int
}

// Graph is a directed multigraph of assets; parallel edges come from
// different venues quoting the same pair.
type Graph struct {
	nodes []string
	index map[string]int
	edges []Edge
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

func (g *Graph) node(name string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
	return len(g.nodes) - 1
}

// AddEdge appends e, registering its endpoints.
func (g *Graph) AddEdge(e Edge) {
	e.from = g.node(e.From)
	e.to = g.node(e.To)
	g.edges = append(g.edges, e)
}

// AddSample adds both directed edges implied by one sample:
// asset -> quote at price (selling the asset) and quote -> asset at 1/price.
func (g *Graph) AddSample(s types.PriceSample) error {
	err := s.Validate()
	if err != nil {
		return err
	}

	g.AddEdge(Edge{
		From:   s.Asset,
		To:     s.Quote,
		Rate:   s.Price,
		Weight: -math.Log(s.Price),
		Side:   types.SideSell,
		Sample: s,
	})
	g.AddEdge(Edge{
		From:   s.Quote,
		To:     s.Asset,
		Rate:   1 / s.Price,
		Weight: -math.Log(1 / s.Price),
		Side:   types.SideBuy,
		Sample: s,
	})

	return nil
}

// BuildGraph converts samples into a graph. Malformed samples are skipped and
// returned as errors; the graph is still usable.
func BuildGraph(samples []types.PriceSample) (*Graph, []error) {
	g := NewGraph()
	var errs []error

	for _, s := range samples {
		err := g.AddSample(s)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return g, errs
}

// Nodes returns the asset names in insertion order.
func (g *Graph) Nodes() []string {
	return g.nodes
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	return g.edges
}
