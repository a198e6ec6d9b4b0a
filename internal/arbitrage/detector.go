package arbitrage

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mselser95/cycle-arb/pkg/types"
	"go.uber.org/zap"
)

// negativeTolerance guards the profitability check against float noise.
const negativeTolerance = 1e-12

// ErrCycleReconstruction means the predecessor walk did not close within |V|
// steps. It indicates a detection bug, not bad market data.
var ErrCycleReconstruction = errors.New("cycle reconstruction exceeded node bound")

// Detector finds negative-weight cycles in the price graph.
type Detector struct {
	config *DetectorConfig
	logger *zap.Logger
}

// DetectorConfig holds detector configuration.
type DetectorConfig struct {
	MaxCycleLength int
	Numeraire      string
	Logger         *zap.Logger
}

// NewDetector creates a new cycle detector.
func NewDetector(cfg *DetectorConfig) *Detector {
	if cfg.MaxCycleLength < 2 {
		cfg.MaxCycleLength = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Detector{
		config: cfg,
		logger: cfg.Logger,
	}
}

// DetectCycles builds a graph from the snapshot and returns every distinct
// profitable cycle within the length bound. Malformed samples are logged and
// skipped. A snapshot where no asset has two venues yields no cycles.
func (d *Detector) DetectCycles(snap types.Snapshot) ([]*Cycle, error) {
	start := time.Now()
	defer func() {
		DetectionDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	if snap.MaxVenuesPerAsset() < 2 {
		DetectionSkippedTotal.WithLabelValues("insufficient-data").Inc()
		d.logger.Debug("detection-skipped",
			zap.Int("samples", len(snap.Samples)),
			zap.Error(types.ErrInsufficientData))
		return nil, nil
	}

	graph, errs := BuildGraph(snap.Sorted())
	for _, err := range errs {
		SamplesSkippedTotal.Inc()
		d.logger.Warn("sample-skipped", zap.Error(err))
	}

	return d.DetectCyclesInGraph(graph)
}

// DetectCyclesInGraph runs Bellman-Ford from every node of a prebuilt graph.
func (d *Detector) DetectCyclesInGraph(g *Graph) ([]*Cycle, error) {
	n := len(g.nodes)
	GraphNodes.Set(float64(n))
	GraphEdges.Set(float64(len(g.edges)))

	if n < 2 || len(g.edges) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var cycles []*Cycle

	dist := make([]float64, n)
	pred := make([]int, n)

	for src := 0; src < n; src++ {
		for i := range dist {
			dist[i] = math.Inf(1)
			pred[i] = -1
		}
		dist[src] = 0

		for round := 0; round < n-1; round++ {
			if !relax(g, dist, pred) {
				break
			}
		}

		for _, e := range g.edges {
			if math.IsInf(dist[e.from], 1) {
				continue
			}
			if dist[e.from]+e.Weight >= dist[e.to]-negativeTolerance {
				continue
			}

			cycle, err := reconstruct(g, pred, e.to)
			if err != nil {
				return cycles, err
			}

			key := cycle.Key()
			if seen[key] {
				continue
			}
			seen[key] = true

			if cycle.Len() > d.config.MaxCycleLength {
				CyclesDroppedTotal.WithLabelValues("too-long").Inc()
				d.logger.Debug("cycle-dropped-too-long",
					zap.Strings("path", cycle.Path()),
					zap.Int("max-length", d.config.MaxCycleLength))
				continue
			}
			if cycle.WeightSum() >= -negativeTolerance {
				CyclesDroppedTotal.WithLabelValues("not-negative").Inc()
				continue
			}

			cycle.rotate(d.config.Numeraire)
			cycles = append(cycles, cycle)
			CyclesDetectedTotal.Inc()

			d.logger.Debug("cycle-detected",
				zap.Strings("path", cycle.Path()),
				zap.Float64("weight-sum", cycle.WeightSum()),
				zap.Float64("profit-pct", cycle.ProfitPercent()*100))
		}
	}

	return cycles, nil
}

// relax runs one Bellman-Ford round and reports whether any distance improved.
func relax(g *Graph, dist []float64, pred []int) bool {
	changed := false
	for i, e := range g.edges {
		if math.IsInf(dist[e.from], 1) {
			continue
		}
		if dist[e.from]+e.Weight < dist[e.to]-negativeTolerance {
			dist[e.to] = dist[e.from] + e.Weight
			pred[e.to] = i
			changed = true
		}
	}
	return changed
}

// reconstruct walks predecessors back from a vertex that still relaxes.
// The first |V| steps land on the cycle, the second walk collects it.
func reconstruct(g *Graph, pred []int, from int) (*Cycle, error) {
	n := len(g.nodes)

	x := from
	for i := 0; i < n; i++ {
		if pred[x] < 0 {
			return nil, fmt.Errorf("%w: no predecessor for %s", ErrCycleReconstruction, g.nodes[x])
		}
		x = g.edges[pred[x]].from
	}

	var reversed []Edge
	cur := x
	for steps := 0; ; steps++ {
		if steps >= n {
			return nil, fmt.Errorf("%w: walk from %s did not close", ErrCycleReconstruction, g.nodes[x])
		}
		if pred[cur] < 0 {
			return nil, fmt.Errorf("%w: no predecessor for %s", ErrCycleReconstruction, g.nodes[cur])
		}
		e := g.edges[pred[cur]]
		reversed = append(reversed, e)
		cur = e.from
		if cur == x {
			break
		}
	}

	edges := make([]Edge, len(reversed))
	for i, e := range reversed {
		edges[len(reversed)-1-i] = e
	}

	return &Cycle{Edges: edges}, nil
}
