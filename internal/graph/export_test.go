package graph

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportJSON(t *testing.T) {
	g := chainGraph()
	data, err := g.ExportJSON()
	require.NoError(t, err)

	var back Graph
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, g.RootKey, back.RootKey)
	assert.Len(t, back.Nodes, 4)
}

func TestExportDOT(t *testing.T) {
	dot := chainGraph().ExportDOT()
	assert.True(t, strings.HasPrefix(dot, "digraph trustmap_invitations {"))
	assert.Contains(t, dot, `"1" [label="R", fillcolor="#2DB682", root=true, penwidth=3];`)
	assert.Contains(t, dot, `"2" -> "3";`)
}

func TestRenderRings(t *testing.T) {
	g := chainGraph()
	id := func(s string) string { return s }
	out := RenderRings(g.Kind, g.Nodes, g.Edges, id, id, id)

	assert.Contains(t, out, "● R")
	assert.Contains(t, out, "ring 1 · 1 identities")
	assert.Contains(t, out, "ring 3 · 1 identities")
	assert.Contains(t, out, "given · 1 out / 1 in")
}
