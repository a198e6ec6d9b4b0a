package arbitrage

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mselser95/cycle-arb/pkg/types"
	"go.uber.org/zap"
)

func injectedGraph(nodes []string, forward, backward float64) *Graph {
	g := NewGraph()
	for i := range nodes {
		from, to := nodes[i], nodes[(i+1)%len(nodes)]
		sample := types.PriceSample{Asset: from, Quote: to, Venue: "inj", Price: 1}
		g.AddEdge(Edge{From: from, To: to, Weight: forward, Side: types.SideSell, Sample: sample})
		g.AddEdge(Edge{From: to, To: from, Weight: backward, Side: types.SideBuy, Sample: sample})
	}
	return g
}

func TestDetectCyclesInGraph(t *testing.T) {
	tests := []struct {
		name       string
		nodes      []string
		forward    float64
		backward   float64
		maxLength  int
		wantCycles int
		wantProfit float64
	}{
		{
			name:       "three-cycle-negative",
			nodes:      []string{"A", "B", "C"},
			forward:    -0.01,
			backward:   0.01,
			maxLength:  3,
			wantCycles: 1,
			wantProfit: math.Exp(0.03) - 1,
		},
		{
			name:       "all-weights-non-negative",
			nodes:      []string{"A", "B", "C"},
			forward:    0.01,
			backward:   0.0,
			maxLength:  3,
			wantCycles: 0,
		},
		{
			name:       "zero-sum-is-not-profitable",
			nodes:      []string{"A", "B", "C"},
			forward:    0.0,
			backward:   0.0,
			maxLength:  3,
			wantCycles: 0,
		},
		{
			name:       "four-cycle-dropped-by-length-bound",
			nodes:      []string{"A", "B", "C", "D"},
			forward:    -0.01,
			backward:   0.02,
			maxLength:  3,
			wantCycles: 0,
		},
		{
			name:       "four-cycle-kept-with-larger-bound",
			nodes:      []string{"A", "B", "C", "D"},
			forward:    -0.01,
			backward:   0.02,
			maxLength:  4,
			wantCycles: 1,
			wantProfit: math.Exp(0.04) - 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(&DetectorConfig{MaxCycleLength: tt.maxLength, Logger: zap.NewNop()})

			cycles, err := d.DetectCyclesInGraph(injectedGraph(tt.nodes, tt.forward, tt.backward))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(cycles) != tt.wantCycles {
				t.Fatalf("expected %d cycles, got %d", tt.wantCycles, len(cycles))
			}
			if tt.wantCycles == 0 {
				return
			}

			c := cycles[0]
			if c.Len() != len(tt.nodes) {
				t.Errorf("expected %d legs, got %d", len(tt.nodes), c.Len())
			}
			if !c.Closed() {
				t.Errorf("cycle %v is not closed", c.Path())
			}
			for _, e := range c.Edges {
				if e.Weight != tt.forward {
					t.Errorf("cycle used edge %s->%s with weight %f", e.From, e.To, e.Weight)
				}
			}
			if math.Abs(c.ProfitPercent()-tt.wantProfit) > 1e-9 {
				t.Errorf("expected profit %f, got %f", tt.wantProfit, c.ProfitPercent())
			}
		})
	}
}

func TestDetectCyclesInGraph_ThreeCycleProfit(t *testing.T) {
	d := NewDetector(&DetectorConfig{MaxCycleLength: 3, Logger: zap.NewNop()})

	cycles, err := d.DetectCyclesInGraph(injectedGraph([]string{"A", "B", "C"}, -0.01, 0.01))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d", len(cycles))
	}

	// exp(0.03) - 1 = 3.0454%
	pct := cycles[0].ProfitPercent() * 100
	if math.Abs(pct-3.05) > 0.01 {
		t.Errorf("expected profit ~3.05%%, got %.4f%%", pct)
	}
	if math.Abs(cycles[0].WeightSum()+0.03) > 1e-12 {
		t.Errorf("expected weight sum -0.03, got %f", cycles[0].WeightSum())
	}
}

func TestDetectCycles_Snapshot(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name       string
		samples    []types.PriceSample
		wantCycles int
	}{
		{
			name: "cross-venue-spread",
			samples: []types.PriceSample{
				NewTestSample("SOL", "Orca", 100, 1_000_000, now),
				NewTestSample("SOL", "Raydium", 101.5, 1_000_000, now),
			},
			wantCycles: 1,
		},
		{
			name: "same-price-everywhere",
			samples: []types.PriceSample{
				NewTestSample("SOL", "Orca", 100, 1_000_000, now),
				NewTestSample("SOL", "Raydium", 100, 1_000_000, now),
				NewTestSample("ETH", "Orca", 2000, 1_000_000, now),
			},
			wantCycles: 0,
		},
		{
			name: "single-venue-per-asset-is-insufficient",
			samples: []types.PriceSample{
				NewTestSample("SOL", "Orca", 100, 1_000_000, now),
				NewTestSample("ETH", "Raydium", 2000, 1_000_000, now),
			},
			wantCycles: 0,
		},
		{
			name: "triangular-through-cross-pair",
			samples: []types.PriceSample{
				NewTestSample("SOL", "Orca", 100, 1_000_000, now),
				NewTestSample("SOL", "Raydium", 100, 1_000_000, now),
				NewTestSample("ETH", "Orca", 2000, 1_000_000, now),
				{Asset: "SOL", Quote: "ETH", Venue: "Phoenix", Price: 0.052, Liquidity: 1_000_000, CapturedAt: now},
			},
			wantCycles: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(&DetectorConfig{MaxCycleLength: 3, Numeraire: "USDC", Logger: zap.NewNop()})

			cycles, err := d.DetectCycles(types.NewSnapshot(now, tt.samples))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(cycles) != tt.wantCycles {
				t.Fatalf("expected %d cycles, got %d", tt.wantCycles, len(cycles))
			}
			for _, c := range cycles {
				if c.WeightSum() >= 0 {
					t.Errorf("reported cycle with non-negative weight sum %f", c.WeightSum())
				}
				if c.Edges[0].From != "USDC" {
					t.Errorf("expected cycle to start at numeraire, got %s", c.Edges[0].From)
				}
			}
		})
	}
}

func TestDetectCycles_SkipsMalformedSamples(t *testing.T) {
	now := time.Now()
	d := NewDetector(&DetectorConfig{MaxCycleLength: 3, Logger: zap.NewNop()})

	snap := types.NewSnapshot(now, []types.PriceSample{
		NewTestSample("SOL", "Orca", 100, 1_000_000, now),
		NewTestSample("SOL", "Raydium", 101.5, 1_000_000, now),
		NewTestSample("SOL", "Phoenix", 0, 1_000_000, now),
	})

	cycles, err := d.DetectCycles(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d", len(cycles))
	}
	for _, e := range cycles[0].Edges {
		if e.Sample.Venue == "Phoenix" {
			t.Error("cycle used malformed sample")
		}
	}
}

func TestDetectCycles_Deduplicates(t *testing.T) {
	// Every source reaches the same negative loop; it must be reported once.
	g := injectedGraph([]string{"A", "B", "C"}, -0.05, 0.06)
	d := NewDetector(&DetectorConfig{MaxCycleLength: 3, Logger: zap.NewNop()})

	cycles, err := d.DetectCyclesInGraph(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("expected 1 deduplicated cycle, got %d", len(cycles))
	}
}

func TestBuildGraph(t *testing.T) {
	now := time.Now()
	g, errs := BuildGraph([]types.PriceSample{
		NewTestSample("SOL", "Orca", 100, 0, now),
		NewTestSample("SOL", "Raydium", -1, 0, now),
	})

	if len(errs) != 1 || !errors.Is(errs[0], types.ErrMalformedSample) {
		t.Fatalf("expected one malformed sample error, got %v", errs)
	}
	if len(g.Edges()) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(g.Edges()))
	}

	sell, buy := g.Edges()[0], g.Edges()[1]
	if sell.From != "SOL" || sell.To != "USDC" || math.Abs(sell.Weight+math.Log(100)) > 1e-12 {
		t.Errorf("unexpected sell edge %+v", sell)
	}
	if buy.From != "USDC" || buy.To != "SOL" || math.Abs(buy.Weight-math.Log(100)) > 1e-12 {
		t.Errorf("unexpected buy edge %+v", buy)
	}
	if len(g.Nodes()) != 2 {
		t.Errorf("expected 2 nodes, got %d", len(g.Nodes()))
	}
}

func TestReconstruct_Bound(t *testing.T) {
	g := NewGraph()
	g.AddEdge(Edge{From: "A", To: "B", Weight: -1})
	g.AddEdge(Edge{From: "B", To: "C", Weight: -1})

	// C <- B <- A, and A has no predecessor: the walk cannot close.
	pred := []int{-1, 0, 1}

	_, err := reconstruct(g, pred, 2)
	if !errors.Is(err, ErrCycleReconstruction) {
		t.Fatalf("expected ErrCycleReconstruction, got %v", err)
	}
}
