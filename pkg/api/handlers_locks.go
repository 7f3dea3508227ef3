package api

import (
	"net/http"

	"github.com/dd0wney/cluso-coord/pkg/lockstore"
)

func lockToResponse(row lockstore.LockRow) LockResponse {
	resp := LockResponse{
		Name:       row.Name,
		Locked:     row.IsLocked(),
		UpdateTime: row.UpdateTime,
	}
	if row.IsLocked() {
		holder := row.LockedBy
		resp.LockedBy = &holder
	}
	return resp
}

func (s *Server) handleLocks(w http.ResponseWriter, r *http.Request) {
	rows, err := s.locks.ListLocks(r.Context())
	if err != nil {
		s.respondInternal(w, r, "list locks", err)
		return
	}

	resp := LocksResponse{
		Locks: make([]LockResponse, 0, len(rows)),
		Count: len(rows),
	}
	for _, row := range rows {
		resp.Locks = append(resp.Locks, lockToResponse(row))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	row, err := s.locks.Status(r.Context(), name)
	if err != nil {
		s.respondInternal(w, r, "get lock", err)
		return
	}
	if row == nil {
		s.respondError(w, http.StatusNotFound, "Lock not found")
		return
	}
	s.respondJSON(w, http.StatusOK, lockToResponse(*row))
}
