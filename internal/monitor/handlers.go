package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dltrophy/simulator/internal/frameloop"
	"github.com/dltrophy/simulator/internal/httputil"
	"github.com/dltrophy/simulator/internal/monitoring"
	"github.com/dltrophy/simulator/internal/protocol"
	"github.com/dltrophy/simulator/internal/trophy"
)

func (s *Server) handlePositionsDump(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.builder.Layout().Dump(w); err != nil {
		monitoring.Logf("[HTTP] positions dump: %v", err)
	}
}

func (s *Server) handleLastMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	var err error
	if s.messages == nil {
		err = protocol.Describe(w, nil)
	} else {
		err = s.messages.DumpLastMessage(w)
	}
	if err != nil {
		monitoring.Logf("[HTTP] last message dump: %v", err)
	}
}

// command wraps a state mutation as a POST-only endpoint.
func (s *Server) command(fn func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w, http.MethodPost)
			return
		}
		fn()
		httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"version": s.store.Version()})
	})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	if s.saver == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no journal configured")
		return
	}
	label := r.URL.Query().Get("label")
	id, err := s.saver.SaveState(r.Context(), label, s.store.Snapshot(), s.builder.Shape())
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	monitoring.Logf("[HTTP] saved state %s %q", id, label)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"id": id})
}

type stateResponse struct {
	Version  uint64   `json:"version"`
	Realtime bool     `json:"realtime"`
	Colors   []string `json:"colors"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	snap := s.store.Snapshot()
	resp := stateResponse{
		Version: s.store.Version(),
		Colors:  make([]string, len(snap)),
	}
	for i, c := range snap {
		resp.Colors[i] = c.Hex()
	}
	if s.messages != nil {
		resp.Realtime = s.messages.RealtimeNow()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type ledPosition struct {
	Index     int     `json:"index"`
	Partition string  `json:"partition"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
}

type positionsResponse struct {
	Generation uint64        `json:"generation"`
	LEDs       []ledPosition `json:"leds"`
	Min        [3]float64    `json:"min"`
	Max        [3]float64    `json:"max"`
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	layout := s.builder.Layout()
	resp := positionsResponse{
		Generation: s.builder.Generation(),
		LEDs:       make([]ledPosition, len(layout.Positions)),
		Min:        [3]float64{layout.Min.X, layout.Min.Y, layout.Min.Z},
		Max:        [3]float64{layout.Max.X, layout.Max.Y, layout.Max.Z},
	}
	for i, p := range layout.Positions {
		resp.LEDs[i] = ledPosition{Index: i, Partition: trophy.PartitionOf(i).String(), X: p.X, Y: p.Y, Z: p.Z}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleShape reads or replaces the geometry parameters. PUT accepts a
// partial shape; omitted fields keep their current values.
func (s *Server) handleShape(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSON(w, http.StatusOK, s.builder.Shape())
	case http.MethodPut, http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64*1024))
		if err != nil {
			httputil.BadRequest(w, "invalid shape: "+err.Error())
			return
		}
		shape, err := s.builder.UpdateShape(func(shape *trophy.Shape) error {
			if err := json.Unmarshal(body, shape); err != nil {
				return fmt.Errorf("invalid shape: %w", err)
			}
			return nil
		})
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, shape)
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

type portRequest struct {
	Port int `json:"port"`
}

// handlePort reports or changes the UDP port. The frame loop moves the
// socket on its next frame, so PUT answers 202 with the requested port.
func (s *Server) handlePort(w http.ResponseWriter, r *http.Request) {
	if s.ports == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no port control")
		return
	}
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSON(w, http.StatusOK, portRequest{Port: s.ports.Port()})
	case http.MethodPut, http.MethodPost:
		var req portRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
			httputil.BadRequest(w, "invalid port request: "+err.Error())
			return
		}
		err := s.ports.SetPort(req.Port)
		switch {
		case errors.Is(err, frameloop.ErrFixedSource):
			httputil.WriteJSONError(w, http.StatusConflict, err.Error())
		case err != nil:
			httputil.BadRequest(w, err.Error())
		default:
			monitoring.Logf("[HTTP] UDP port change to %d requested", req.Port)
			httputil.WriteJSON(w, http.StatusAccepted, req)
		}
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}
