package arbitrage

import (
	"math"
	"sort"
	"strings"
)

// Cycle is an ordered sequence of edges whose endpoints close a loop.
type Cycle struct {
	Edges []Edge
}

// Len returns the number of legs.
func (c *Cycle) Len() int {
	return len(c.Edges)
}

// WeightSum returns the summed log weights.
func (c *Cycle) WeightSum() float64 {
	sum := 0.0
	for _, e := range c.Edges {
		sum += e.Weight
	}
	return sum
}

// ProfitPercent returns exp(-sum(weights)) - 1 as a fraction (0.03 = 3%).
func (c *Cycle) ProfitPercent() float64 {
	return math.Exp(-c.WeightSum()) - 1
}

// Path returns the visited assets, start repeated at the end.
func (c *Cycle) Path() []string {
	if len(c.Edges) == 0 {
		return nil
	}
	path := make([]string, 0, len(c.Edges)+1)
	for _, e := range c.Edges {
		path = append(path, e.From)
	}
	return append(path, c.Edges[0].From)
}

// Key identifies a cycle by the sorted set of participating sample keys.
func (c *Cycle) Key() string {
	keys := make([]string, 0, len(c.Edges))
	for _, e := range c.Edges {
		keys = append(keys, e.Sample.Key())
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}

// Closed reports whether every edge starts where the previous one ended.
func (c *Cycle) Closed() bool {
	if len(c.Edges) == 0 {
		return false
	}
	for i, e := range c.Edges {
		next := c.Edges[(i+1)%len(c.Edges)]
		if e.To != next.From {
			return false
		}
	}
	return true
}

// rotate returns the cycle starting at the first edge leaving start, or the
// lexicographically smallest node when start is not on the cycle.
func (c *Cycle) rotate(start string) {
	at := -1
	for i, e := range c.Edges {
		if e.From == start {
			at = i
			break
		}
	}
	if at < 0 {
		at = 0
		for i, e := range c.Edges {
			if e.From < c.Edges[at].From {
				at = i
			}
		}
	}
	if at == 0 {
		return
	}
	rotated := make([]Edge, 0, len(c.Edges))
	rotated = append(rotated, c.Edges[at:]...)
	rotated = append(rotated, c.Edges[:at]...)
	c.Edges = rotated
}
