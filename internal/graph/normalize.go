package graph

import (
	"fmt"
	"sort"
	"time"
)

// DefaultNodeBudget caps the number of nodes in a canonical graph, root included.
const DefaultNodeBudget = 200

type candidate struct {
	identity Identity
	level    int
	side     int // 0 when seen as a record target, 1 as origin
	recordID string
	created  time.Time
}

func (c candidate) before(o candidate) bool {
	if c.level != o.level {
		return c.level < o.level
	}
	if c.side != o.side {
		return c.side < o.side
	}
	if c.recordID != o.recordID {
		if c.recordID == "" || o.recordID == "" {
			return o.recordID == ""
		}
		return c.recordID < o.recordID
	}
	if !c.created.Equal(o.created) {
		return c.created.After(o.created)
	}
	return identityLess(c.identity, o.identity)
}

// identityLess orders identities by content so ties never depend on input order.
func identityLess(a, b Identity) bool {
	if a.DisplayName != b.DisplayName {
		return a.DisplayName < b.DisplayName
	}
	if a.Username != b.Username {
		return a.Username < b.Username
	}
	if a.AvatarURL != b.AvatarURL {
		return a.AvatarURL < b.AvatarURL
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

// Normalize derives the canonical graph from the accumulated records. The
// root node is synthesised from root and always kept at level 0. Every other
// identity appears once, at the smallest level any record places it. The
// result does not depend on record order.
func Normalize(s Strategy, root Identity, records []Record, budget int) *Graph {
	if budget <= 0 {
		budget = DefaultNodeBudget
	}
	rootKey := root.Key()

	levels := make(map[string]int)
	originOnly := make(map[string]int)
	candidates := make(map[string][]candidate)
	given := make(map[string]bool)
	received := make(map[string]bool)

	for _, r := range records {
		lvl := r.Level
		if lvl < 1 {
			lvl = 1
		}
		id := r.ID
		ok, tk := r.Origin.Key(), r.Target.Key()

		if tk != rootKey {
			lower(levels, tk, lvl)
			candidates[tk] = append(candidates[tk], candidate{identity: r.Target, level: lvl, side: 0, recordID: id, created: r.CreatedAt})
		}
		if ok != rootKey {
			if s.InferOriginLevels {
				lower(originOnly, ok, max(lvl-1, 1))
			} else {
				lower(levels, ok, lvl)
			}
			candidates[ok] = append(candidates[ok], candidate{identity: r.Origin, level: lvl, side: 1, recordID: id, created: r.CreatedAt})
		}

		switch {
		case ok == rootKey && tk != rootKey:
			given[tk] = true
		case tk == rootKey && ok != rootKey:
			received[ok] = true
		}
	}
	for k, l := range originOnly {
		if _, found := levels[k]; !found {
			levels[k] = l
		}
	}

	nodes := make([]Node, 0, len(levels)+1)
	for key, lvl := range levels {
		nodes = append(nodes, Node{
			Key:      key,
			Identity: mergeIdentity(candidates[key]),
			Level:    lvl,
			Role:     roleOf(given[key], received[key]),
		})
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Level != nodes[j].Level {
			return nodes[i].Level < nodes[j].Level
		}
		return nodes[i].Key < nodes[j].Key
	})
	if len(nodes) > budget-1 {
		nodes = nodes[:budget-1]
	}
	nodes = append([]Node{{Key: rootKey, Identity: root, Level: 0, IsRoot: true, Role: RoleRoot}}, nodes...)

	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.Key] = true
	}

	edges := make([]Edge, 0, len(records))
	pairs := make(map[[2]string]bool)
	for _, r := range records {
		src, dst := r.Origin.Key(), r.Target.Key()
		if src == dst || !present[src] || !present[dst] {
			continue
		}
		lvl := r.Level
		if lvl < 1 {
			lvl = 1
		}
		edges = append(edges, Edge{
			ID:        r.ID,
			Source:    src,
			Target:    dst,
			Level:     lvl,
			Magnitude: r.Magnitude,
			Sentiment: r.Sentiment,
			CreatedAt: r.CreatedAt,
		})
		pairs[[2]string{src, dst}] = true
	}
	for i := range edges {
		edges[i].IsReciprocal = pairs[[2]string{edges[i].Target, edges[i].Source}]
	}
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.Magnitude != b.Magnitude {
			return a.Magnitude < b.Magnitude
		}
		return a.Sentiment < b.Sentiment
	})
	// Records without an id get one from their position among same-pair edges
	// after sorting, so it does not depend on input order.
	seq := make(map[[2]string]int)
	for i := range edges {
		pair := [2]string{edges[i].Source, edges[i].Target}
		if edges[i].ID == "" {
			edges[i].ID = fmt.Sprintf("%s-%s-%d", pair[0], pair[1], seq[pair])
		}
		seq[pair]++
	}

	return &Graph{Kind: s.Kind, RootKey: rootKey, Nodes: nodes, Edges: edges}
}

func lower(m map[string]int, key string, level int) {
	if cur, ok := m[key]; !ok || level < cur {
		m[key] = level
	}
}

func roleOf(given, received bool) Role {
	switch {
	case given && received:
		return RoleBoth
	case given:
		return RoleGiven
	case received:
		return RoleReceived
	}
	return RoleExtended
}

// mergeIdentity takes the most central description of an identity and fills
// its blanks from the others.
func mergeIdentity(cs []candidate) Identity {
	if len(cs) == 0 {
		return Identity{}
	}
	sorted := append([]candidate(nil), cs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].before(sorted[j]) })

	id := sorted[0].identity
	for _, c := range sorted[1:] {
		o := c.identity
		if id.ProfileID == nil && o.ProfileID != nil {
			id.ProfileID = o.ProfileID
		}
		if id.ID == 0 {
			id.ID = o.ID
		}
		if id.DisplayName == "" {
			id.DisplayName = o.DisplayName
		}
		if id.Username == "" {
			id.Username = o.Username
		}
		if id.AvatarURL == "" {
			id.AvatarURL = o.AvatarURL
		}
		if id.Score == 0 {
			id.Score = o.Score
		}
	}
	return id
}

func sortInts(xs []int) {
	sort.Ints(xs)
}
