package causal

import (
	"encoding/json"
	"fmt"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

// #region model-artifact

const modelArtifactVersion = 1

// modelArtifact is the serialized form of a fitted model. Nodes and edges
// are stored sorted so the encoding is stable across marshals.
type modelArtifact struct {
	Version int          `json:"version"`
	Nodes   []string     `json:"nodes"`
	Edges   [][2]string  `json:"edges"`
	CPDs    []*CPD       `json:"cpds"`
	Report  FitReport    `json:"report"`
}

// MarshalArtifact encodes the model as indented JSON suitable for
// storage and later reload.
func (m *Model) MarshalArtifact() ([]byte, error) {
	a := modelArtifact{
		Version: modelArtifactVersion,
		Nodes:   m.graph.Nodes(),
		Report:  m.report,
	}
	for _, child := range a.Nodes {
		for _, parent := range m.graph.Parents(child) {
			a.Edges = append(a.Edges, [2]string{parent, child})
		}
	}
	for _, node := range a.Nodes {
		if cpd, ok := m.cpds[node]; ok {
			a.CPDs = append(a.CPDs, cpd)
		}
	}
	return json.MarshalIndent(a, "", "  ")
}

// LoadModelArtifact rebuilds a model from its serialized form. The
// registry supplies variable domains and must cover every artifact node.
func LoadModelArtifact(reg *Registry, data []byte) (*Model, error) {
	var a modelArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, simerr.Wrap(simerr.CodeArtifactCorrupt, "decode model artifact", err)
	}
	if a.Version != modelArtifactVersion {
		return nil, simerr.Newf(simerr.CodeArtifactCorrupt, "model artifact version %d, want %d", a.Version, modelArtifactVersion)
	}
	for _, node := range a.Nodes {
		if !reg.Has(node) {
			return nil, simerr.Newf(simerr.CodeArtifactCorrupt, "artifact node %q not in registry", node)
		}
	}

	g := NewGraph(a.Nodes)
	for _, e := range a.Edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, simerr.Wrap(simerr.CodeArtifactCorrupt, fmt.Sprintf("artifact edge %s->%s", e[0], e[1]), err)
		}
	}
	topo, err := g.TopoOrder()
	if err != nil {
		return nil, simerr.Wrap(simerr.CodeArtifactCorrupt, "artifact graph has a cycle", err)
	}

	cpds := make(map[string]*CPD, len(a.CPDs))
	for _, cpd := range a.CPDs {
		if cpd == nil || cpd.Node == "" {
			return nil, simerr.New(simerr.CodeArtifactCorrupt, "artifact contains an empty cpd entry")
		}
		if _, dup := cpds[cpd.Node]; dup {
			return nil, simerr.Newf(simerr.CodeArtifactCorrupt, "artifact repeats cpd for %q", cpd.Node)
		}
		if !g.HasNode(cpd.Node) {
			return nil, simerr.Newf(simerr.CodeArtifactCorrupt, "artifact cpd for %q has no graph node", cpd.Node)
		}
		cpds[cpd.Node] = cpd
	}

	return &Model{reg: reg, graph: g, topo: topo, cpds: cpds, report: a.Report}, nil
}

// #endregion model-artifact
