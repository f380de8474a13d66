package impact

import "github.com/floedata/floe/internal/graph"

// MaxCycles caps enumeration on graphs with pathologically many
// overlapping cycles. Real catalogs produce zero or a handful.
const MaxCycles = 1000

// SimpleCycles enumerates the simple cycles of g using Johnson's
// algorithm: for each start vertex in order, circuits are searched only
// inside the strongly connected component of the remaining subgraph,
// with blocked sets preventing re-exploration. Each cycle is reported
// once, rooted at its lowest-index vertex, as an ordered key list.
func SimpleCycles(g *graph.Graph) [][]string {
	nodes := g.Nodes()
	n := len(nodes)
	keys := make([]string, n)
	index := make(map[string]int, n)
	for i, node := range nodes {
		keys[i] = node.Key
		index[node.Key] = i
	}

	adj := make([][]int, n)
	for i, node := range nodes {
		seen := make(map[int]bool)
		for _, e := range g.Outgoing(node.Key) {
			t := index[e.Target]
			if !seen[t] {
				seen[t] = true
				adj[i] = append(adj[i], t)
			}
		}
	}

	j := &johnson{
		adj:     adj,
		blocked: make([]bool, n),
		bsets:   make([][]int, n),
		limit:   MaxCycles,
	}
	j.run(n)

	out := make([][]string, 0, len(j.cycles))
	for _, c := range j.cycles {
		cycle := make([]string, len(c))
		for i, v := range c {
			cycle[i] = keys[v]
		}
		out = append(out, cycle)
	}
	return out
}

type johnson struct {
	adj     [][]int
	blocked []bool
	// bsets[w] holds vertices to unblock when w is unblocked.
	bsets  [][]int
	stack  []int
	cycles [][]int
	limit  int
}

func (j *johnson) run(n int) {
	for s := 0; s < n && len(j.cycles) < j.limit; s++ {
		scc := j.sccOf(s)
		if len(scc) == 1 {
			// A single vertex only cycles through a self edge.
			if j.hasEdge(s, s) {
				j.cycles = append(j.cycles, []int{s})
			}
			continue
		}
		for v := range scc {
			j.blocked[v] = false
			j.bsets[v] = nil
		}
		j.circuit(s, s, scc)
	}
}

func (j *johnson) circuit(v, s int, scc map[int]bool) bool {
	found := false
	j.stack = append(j.stack, v)
	j.blocked[v] = true

	for _, w := range j.adj[v] {
		if w < s || !scc[w] || len(j.cycles) >= j.limit {
			continue
		}
		if w == s {
			cycle := make([]int, len(j.stack))
			copy(cycle, j.stack)
			j.cycles = append(j.cycles, cycle)
			found = true
		} else if !j.blocked[w] {
			if j.circuit(w, s, scc) {
				found = true
			}
		}
	}

	if found {
		j.unblock(v)
	} else {
		for _, w := range j.adj[v] {
			if w < s || !scc[w] {
				continue
			}
			if !contains(j.bsets[w], v) {
				j.bsets[w] = append(j.bsets[w], v)
			}
		}
	}
	j.stack = j.stack[:len(j.stack)-1]
	return found
}

func (j *johnson) unblock(v int) {
	j.blocked[v] = false
	pending := j.bsets[v]
	j.bsets[v] = nil
	for _, w := range pending {
		if j.blocked[w] {
			j.unblock(w)
		}
	}
}

func (j *johnson) hasEdge(from, to int) bool {
	return contains(j.adj[from], to)
}

// sccOf returns the strongly connected component containing s within
// the subgraph induced by vertices >= s (Tarjan).
func (j *johnson) sccOf(s int) map[int]bool {
	n := len(j.adj)
	const unvisited = -1
	indexOf := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range indexOf {
		indexOf[i] = unvisited
	}
	var stack []int
	counter := 0
	var result map[int]bool

	var strongconnect func(v int)
	strongconnect = func(v int) {
		indexOf[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range j.adj[v] {
			if w < s {
				continue
			}
			if indexOf[w] == unvisited {
				strongconnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indexOf[w])
			}
		}

		if lowlink[v] == indexOf[v] {
			comp := make(map[int]bool)
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp[w] = true
				if w == v {
					break
				}
			}
			if comp[s] {
				result = comp
			}
		}
	}

	for v := s; v < n; v++ {
		if indexOf[v] == unvisited {
			strongconnect(v)
		}
		if result != nil {
			break
		}
	}
	if result == nil {
		result = map[int]bool{s: true}
	}
	return result
}

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
