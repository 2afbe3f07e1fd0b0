package handler

import (
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"

	"github.com/pkg/errors"

	"jttracker/internal/core/service"
	"jttracker/internal/protocol"
	"jttracker/internal/protocol/codec"
)

type PositionHandler struct {
	positionService service.PositionService
}

func NewPositionHandler(positionService service.PositionService) *PositionHandler {
	return &PositionHandler{
		positionService: positionService,
	}
}

type rawFrameRequest struct {
	// Frame is the hex-encoded frame exactly as a terminal sends it.
	Frame string `json:"frame"`
}

type rawFrameResponse struct {
	Position any    `json:"position"`
	Reply    string `json:"reply,omitempty"`
}

// bufferedReply keeps the acknowledgment so it can be returned in the
// response body.
type bufferedReply struct {
	payload []byte
}

func (b *bufferedReply) Reply(_ net.Addr, payload []byte) error {
	b.payload = append([]byte(nil), payload...)
	return nil
}

// ProcessRawData runs one hex frame through the same pipeline as the TCP
// receiver.
func (h *PositionHandler) ProcessRawData(w http.ResponseWriter, r *http.Request) {
	var req rawFrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	frame, err := hex.DecodeString(req.Frame)
	if err != nil {
		http.Error(w, "Frame must be hex encoded", http.StatusBadRequest)
		return
	}

	var remote net.Addr
	if addr, err := net.ResolveTCPAddr("tcp", r.RemoteAddr); err == nil {
		remote = addr
	}

	reply := &bufferedReply{}
	position, err := h.positionService.ProcessFrame(r.Context(), remote, frame, reply)
	switch {
	case errors.Is(err, protocol.ErrDeviceNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, protocol.ErrUnknownFrame), errors.Is(err, codec.ErrShortFrame):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rawFrameResponse{Position: position, Reply: string(reply.payload)})
}

func (h *PositionHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		http.Error(w, "Device ID required", http.StatusBadRequest)
		return
	}

	positions, err := h.positionService.GetDevicePositions(r.Context(), deviceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (h *PositionHandler) GetLatestPosition(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		http.Error(w, "Device ID required", http.StatusBadRequest)
		return
	}

	position, err := h.positionService.GetLatestPosition(r.Context(), deviceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if position == nil {
		http.Error(w, "No position found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, position)
}
