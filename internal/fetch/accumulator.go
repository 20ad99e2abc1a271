package fetch

import "github.com/msalah0e/trustmap/internal/graph"

// accumulator is the growing record list shared by all stages. It enforces
// the node and record budgets at every insertion.
type accumulator struct {
	rootKey      string
	nodeBudget   int
	recordBudget int

	records []graph.Record
	seen    map[string]bool // record ids
	nodes   map[string]bool
}

func newAccumulator(rootKey string, nodeBudget, recordBudget int) *accumulator {
	if nodeBudget <= 0 {
		nodeBudget = graph.DefaultNodeBudget
	}
	return &accumulator{
		rootKey:      rootKey,
		nodeBudget:   nodeBudget,
		recordBudget: recordBudget,
		seen:         make(map[string]bool),
		nodes:        map[string]bool{rootKey: true},
	}
}

// add appends r unless it repeats a record id or would exceed a budget.
func (a *accumulator) add(r graph.Record) bool {
	if a.recordBudget > 0 && len(a.records) >= a.recordBudget {
		return false
	}
	if r.ID != "" && a.seen[r.ID] {
		return false
	}
	ok, tk := r.Origin.Key(), r.Target.Key()
	fresh := 0
	if !a.nodes[ok] {
		fresh++
	}
	if !a.nodes[tk] && tk != ok {
		fresh++
	}
	if len(a.nodes)+fresh > a.nodeBudget {
		return false
	}

	a.nodes[ok] = true
	a.nodes[tk] = true
	if r.ID != "" {
		a.seen[r.ID] = true
	}
	a.records = append(a.records, r)
	return true
}

func (a *accumulator) freeSlots() int {
	return a.nodeBudget - len(a.nodes)
}

func (a *accumulator) full() bool {
	return a.freeSlots() <= 0 || (a.recordBudget > 0 && len(a.records) >= a.recordBudget)
}

// identities returns the distinct non-root profiles first placed by records
// of the given level, in order of appearance. Identities without a profile
// id cannot be queried and are left out.
func (a *accumulator) identities(level int) []graph.Identity {
	seen := map[string]bool{a.rootKey: true}
	for _, r := range a.records {
		if r.Level < level {
			seen[r.Origin.Key()] = true
			seen[r.Target.Key()] = true
		}
	}
	var out []graph.Identity
	for _, r := range a.records {
		if r.Level != level {
			continue
		}
		for _, id := range []graph.Identity{r.Target, r.Origin} {
			k := id.Key()
			if seen[k] {
				continue
			}
			seen[k] = true
			if id.HasProfile() {
				out = append(out, id)
			}
		}
	}
	return out
}

func (a *accumulator) snapshot(stage Stage) Snapshot {
	return Snapshot{Stage: stage, Records: append([]graph.Record(nil), a.records...)}
}
