package design

import (
	"github.com/mudesheng/roa/utils"
	log "github.com/sirupsen/logrus"
)

const (
	// KmerPerCircle is the number of probes joined into one circle.
	KmerPerCircle = 4
	// CircleSpan is the minimal distance between the starts of two probes
	// placed next to each other.
	CircleSpan = 1000
)

// Circle is a group of KmerPerCircle probes in traversal order.
type Circle [KmerPerCircle]*Segment

// Degenerate reports whether the circle repeats a single probe.
func (c Circle) Degenerate() bool {
	for _, s := range c[1:] {
		if s != c[0] {
			return false
		}
	}
	return true
}

// Graph is the adjacency of the assembler, Next[i] lists positions in Segs.
type Graph struct {
	Segs []*Segment
	Next [][]int
}

// BuildGraph links a to b when the join a->b is safe and the two probes start
// at least span bases apart. A nil matrix allows every join.
func BuildGraph(segs []*Segment, m *JoinMatrix, span int) *Graph {
	g := &Graph{Segs: segs, Next: make([][]int, len(segs))}
	for i, a := range segs {
		for j, b := range segs {
			if i == j {
				continue
			}
			if m != nil && !m.Get(a.ID, b.ID) {
				continue
			}
			if utils.AbsInt(a.Start-b.Start) < span {
				continue
			}
			g.Next[i] = append(g.Next[i], j)
		}
	}
	return g
}

// EdgeNum returns the number of edges of g.
func (g *Graph) EdgeNum() (n int) {
	for _, nx := range g.Next {
		n += len(nx)
	}
	return n
}

// CreateCircles returns at most count circles. With a join matrix it runs a
// depth first search bounded to KmerPerCircle nodes over BuildGraph; a top
// node without any outgoing edge yields a circle repeating that node. Without
// a matrix the segments are cut into consecutive groups.
func CreateCircles(segs []*Segment, m *JoinMatrix, count int) []Circle {
	if count <= 0 {
		return nil
	}
	if m == nil {
		return chunkCircles(segs, count)
	}
	g := BuildGraph(segs, m, CircleSpan)
	log.Debugf("[CreateCircles] join graph: %d nodes, %d edges", len(g.Segs), g.EdgeNum())
	return searchCircles(g, count)
}

func chunkCircles(segs []*Segment, count int) (circles []Circle) {
	for i := 0; i+KmerPerCircle <= len(segs) && len(circles) < count; i += KmerPerCircle {
		var c Circle
		copy(c[:], segs[i:i+KmerPerCircle])
		circles = append(circles, c)
	}
	return circles
}

func searchCircles(g *Graph, count int) (circles []Circle) {
	visited := make([]bool, len(g.Segs))
	stack := make([]int, 0, KmerPerCircle)
	for start := range g.Segs {
		if len(circles) >= count {
			break
		}
		if visited[start] {
			continue
		}
		stack = append(stack[:0], start)
		for len(stack) > 0 && len(circles) < count {
			top := stack[len(stack)-1]
			visited[top] = true
			if len(stack) == KmerPerCircle {
				var c Circle
				for x, n := range stack {
					c[x] = g.Segs[n]
				}
				circles = append(circles, c)
				stack = stack[:0]
				continue
			}
			if len(g.Next[top]) == 0 {
				s := g.Segs[top]
				circles = append(circles, Circle{s, s, s, s})
				stack = stack[:0]
				continue
			}
			pushed := false
			for _, n := range g.Next[top] {
				if !visited[n] {
					stack = append(stack, n)
					pushed = true
					break
				}
			}
			if !pushed {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return circles
}
