package schema

import (
	"sort"

	"github.com/koba/rowkit/internal/dberr"
)

// Sorted returns the tables ordered so that every table comes after the
// tables it references. Ties keep schema order. Self references and
// references to tables outside the schema are ignored. Mutually referencing
// tables fail with a *dberr.CyclicDependencyError naming them.
func (s *Schema) Sorted() ([]*Table, error) {
	deps := make(map[string]map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		deps[t.Name] = map[string]bool{}
	}
	for _, t := range s.Tables {
		for _, fk := range t.ForeignKeys {
			if fk.RefTable == t.Name {
				continue
			}
			if _, ok := deps[fk.RefTable]; ok {
				deps[t.Name][fk.RefTable] = true
			}
		}
	}
	order := TopoSort(len(s.Tables), func(i, j int) bool {
		return deps[s.Tables[i].Name][s.Tables[j].Name]
	})
	if len(order) < len(s.Tables) {
		return nil, &dberr.CyclicDependencyError{Tables: remaining(s.Tables, order)}
	}
	sorted := make([]*Table, len(order))
	for i, idx := range order {
		sorted[i] = s.Tables[idx]
	}
	return sorted, nil
}

// TopoSort orders the nodes 0..n-1 so that for every pair where dependsOn(i, j)
// holds, j comes before i. Among ready nodes the lowest index goes first, so
// the result is deterministic. Nodes on or behind a cycle are left out of the
// result.
func TopoSort(n int, dependsOn func(i, j int) bool) []int {
	indegree := make([]int, n)
	dependents := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && dependsOn(i, j) {
				indegree[i]++
				dependents[j] = append(dependents[j], i)
			}
		}
	}
	var ready []int
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]int, 0, n)
	for len(ready) > 0 {
		sort.Ints(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, d := range dependents[next] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	return order
}

func remaining(tables []*Table, order []int) []string {
	done := make(map[int]bool, len(order))
	for _, i := range order {
		done[i] = true
	}
	var names []string
	for i, t := range tables {
		if !done[i] {
			names = append(names, t.Name)
		}
	}
	sort.Strings(names)
	return names
}
