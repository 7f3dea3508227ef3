package api

import (
	"errors"
	"net/http"

	"github.com/dd0wney/cluso-coord/pkg/cluster"
)

func (s *Server) nodeToResponse(node cluster.NodeInfo) NodeResponse {
	return NodeResponse{
		NodeID:        node.ID,
		LastHeartbeat: node.LastHeartbeat,
		DatabaseTime:  node.DatabaseTime,
		Live:          node.Live,
		Local:         node.ID == s.nodes.NodeID(),
	}
}

// handleNodes answers from the membership view refreshed after every
// heartbeat write, not from the heartbeat table
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	live := s.nodes.GetLiveNodes()

	resp := NodesResponse{
		Nodes: make([]NodeResponse, 0, len(live)),
		Count: len(live),
	}
	if refreshed := s.nodes.LastRefresh(); !refreshed.IsZero() {
		resp.RefreshedAt = &refreshed
	}
	for _, node := range live {
		resp.Nodes = append(resp.Nodes, s.nodeToResponse(node))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.nodes.GetNode(r.PathValue("id"))
	if errors.Is(err, cluster.ErrNodeNotFound) {
		s.respondError(w, http.StatusNotFound, "Node not found")
		return
	}
	if err != nil {
		s.respondInternal(w, r, "get node", err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.nodeToResponse(*node))
}

func (s *Server) handleOffsets(w http.ResponseWriter, r *http.Request) {
	offsets, err := s.offsets.ActiveNodesDatabaseTimeOffsets(r.Context())
	if err != nil {
		s.respondInternal(w, r, "clock offsets", err)
		return
	}

	resp := OffsetsResponse{Offsets: make(map[string]*int64, len(offsets))}
	for id, off := range offsets {
		if off == nil {
			resp.Offsets[id] = nil
			continue
		}
		ms := off.Milliseconds()
		resp.Offsets[id] = &ms
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSharedHome(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.sharedHome.ReadAll()
	if err != nil {
		s.respondInternal(w, r, "read shared home", err)
		return
	}

	resp := SharedHomeResponse{
		Statuses: make([]StatusResponse, 0, len(statuses)),
		Count:    len(statuses),
	}
	for _, status := range statuses {
		resp.Statuses = append(resp.Statuses, StatusResponse{
			NodeID:     status.NodeID,
			UpdateTime: status.UpdateTime,
			Local:      status.NodeID == s.nodes.NodeID(),
		})
	}
	s.respondJSON(w, http.StatusOK, resp)
}
