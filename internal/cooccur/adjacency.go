package cooccur

import "sort"

// Adjacency maps a product to every product it was bought with in the most
// recent training run. It gates which candidates may be scored.
type Adjacency map[string]map[string]struct{}

// BuildAdjacency returns the adjacency closure of pairs. Self loops are
// never recorded.
func BuildAdjacency(pairs []Pair) Adjacency {
	adj := make(Adjacency)

	for _, p := range pairs {
		if p.A == p.B {
			continue
		}
		adj.link(p.A, p.B)
		adj.link(p.B, p.A)
	}

	return adj
}

func (a Adjacency) link(from, to string) {
	set, ok := a[from]
	if !ok {
		set = make(map[string]struct{})
		a[from] = set
	}
	set[to] = struct{}{}
}

// Neighbors returns the products co-purchased with productID, sorted.
func (a Adjacency) Neighbors(productID string) []string {
	set := a[productID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)

	return out
}

// Has reports whether from and to were co-purchased.
func (a Adjacency) Has(from, to string) bool {
	_, ok := a[from][to]
	return ok
}

// ToLists converts the adjacency to its persisted shape with sorted lists.
func (a Adjacency) ToLists() map[string][]string {
	out := make(map[string][]string, len(a))
	for id := range a {
		out[id] = a.Neighbors(id)
	}

	return out
}

// AdjacencyFromLists rebuilds an Adjacency from its persisted shape.
func AdjacencyFromLists(lists map[string][]string) Adjacency {
	adj := make(Adjacency, len(lists))
	for from, tos := range lists {
		for _, to := range tos {
			if to == from {
				continue
			}
			adj.link(from, to)
		}
	}

	return adj
}
