package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcastellin/omnode/internal/consensus"
)

type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

type peerResponse struct {
	Key      string `json:"key"`
	Host     string `json:"host"`
	Port     uint16 `json:"port"`
	Name     string `json:"name"`
	LastSeen string `json:"last_seen"`
}

type instanceResponse struct {
	ID       string            `json:"id"`
	OMLevel  int               `json:"omlevel"`
	Index    int               `json:"index"`
	ParentID *string           `json:"parent_id,omitempty"`
	Reporter *string           `json:"reporter,omitempty"`
	Resolved *string           `json:"resolved,omitempty"`
	Reports  map[string]string `json:"reports"`
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handlePeers lists every peer currently known to the membership table.
func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	records := s.members.List()
	out := make([]peerResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, peerResponse{
			Key:      string(rec.Key),
			Host:     rec.Host,
			Port:     rec.Port,
			Name:     rec.Name,
			LastSeen: rec.LastSeen.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"peers": out, "count": len(out)})
}

// handleCurrent returns the current value of every word-array slot.
func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	words := s.engine.Words()
	slots := make([]string, len(words))
	for i := range words {
		slots[i] = words.Get(i)
	}
	writeJSON(w, http.StatusOK, map[string]any{"words": slots})
}

// handleConsensusList returns a summary of every consensus instance this
// node currently holds.
func (s *Server) handleConsensusList(w http.ResponseWriter, r *http.Request) {
	instances := s.engine.Store().All()
	out := make([]instanceResponse, 0, len(instances))
	for _, in := range instances {
		out = append(out, toInstanceResponse(in))
	}
	writeJSON(w, http.StatusOK, map[string]any{"instances": out, "count": len(out)})
}

// handleConsensusByID returns a single consensus instance by id.
func (s *Server) handleConsensusByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	in, ok := s.engine.Store().Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "instance not found")
		return
	}
	writeJSON(w, http.StatusOK, toInstanceResponse(in))
}

func toInstanceResponse(in *consensus.Instance) instanceResponse {
	reports := make(map[string]string, len(in.Reports))
	for k, v := range in.Reports {
		reports[string(k)] = v
	}
	var reporter *string
	if in.Reporter != nil {
		r := string(*in.Reporter)
		reporter = &r
	}
	return instanceResponse{
		ID:       in.ID,
		OMLevel:  in.OMLevel,
		Index:    in.Index,
		ParentID: in.ParentID,
		Reporter: reporter,
		Resolved: in.Resolved,
		Reports:  reports,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: http.StatusText(status), Code: status, Message: message})
}
