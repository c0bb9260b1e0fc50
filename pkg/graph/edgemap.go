// Package graph builds the adjacency index used to route traversal between
// workflow nodes.
package graph

import "github.com/loadbridge/loadbridge/pkg/models"

// EdgeMap indexes edges by "sourceNodeID::handle". When several edges share a
// key the first one registered wins, so routing stays deterministic even for
// graphs the editor should not have produced.
type EdgeMap map[string][]*models.Edge

func edgeKey(sourceNodeID, handle string) string {
	return sourceNodeID + "::" + handle
}

// BuildEdgeMap indexes a flat edge list for handle-based lookup.
func BuildEdgeMap(edges []*models.Edge) EdgeMap {
	edgeMap := make(EdgeMap, len(edges))

	for _, edge := range edges {
		key := edgeKey(edge.SourceNodeID, edge.Handle())
		edgeMap[key] = append(edgeMap[key], edge)
	}

	return edgeMap
}

// NextNodeID resolves the target of the edge leaving sourceNodeID through
// handle. A non-default handle with no edge falls back to the node's default
// edge, so a conditional step without an explicit failure edge still
// terminates gracefully down the default path. Returns false when the node is
// terminal.
func (m EdgeMap) NextNodeID(sourceNodeID, handle string) (string, bool) {
	if handle == "" {
		handle = models.DefaultHandle
	}

	if edges, ok := m[edgeKey(sourceNodeID, handle)]; ok && len(edges) > 0 {
		return edges[0].TargetNodeID, true
	}

	if handle != models.DefaultHandle {
		if edges, ok := m[edgeKey(sourceNodeID, models.DefaultHandle)]; ok && len(edges) > 0 {
			return edges[0].TargetNodeID, true
		}
	}

	return "", false
}
