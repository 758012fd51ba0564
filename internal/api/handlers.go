package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/codedeck/server/internal/db"
	"github.com/codedeck/server/internal/exec"
	"github.com/codedeck/server/internal/ratelimit"
	"github.com/codedeck/server/internal/token"
	"github.com/codedeck/server/internal/ws"
)

type API struct {
	hub        *ws.Hub
	database   *db.Database
	minter     *token.Minter
	execClient *exec.Client
	execLimits *ratelimit.CallerLimiters
}

func New(hub *ws.Hub, database *db.Database, minter *token.Minter, execClient *exec.Client, execLimits *ratelimit.CallerLimiters) *API {
	return &API{
		hub:        hub,
		database:   database,
		minter:     minter,
		execClient: execClient,
		execLimits: execLimits,
	}
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding JSON response failed", "error", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"active_rooms":   a.hub.GetRoomCount(),
		"active_clients": a.hub.GetClientCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	if a.database != nil {
		dbStats, err := a.database.GetStats()
		if err == nil {
			for k, v := range dbStats {
				stats[k] = v
			}
		}
	}

	jsonResponse(w, http.StatusOK, stats)
}

// Token handler

type TokenRequest struct {
	RoomName        string `json:"roomName"`
	ParticipantName string `json:"participantName"`
}

type TokenResponse struct {
	Token string `json:"token"`
	WsURL string `json:"wsUrl"`
}

// TokenHandler issues a media-session access token for one room and
// participant.
func (a *API) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.RoomName == "" || req.ParticipantName == "" {
		errorResponse(w, http.StatusBadRequest, "roomName and participantName are required")
		return
	}

	signed, err := a.minter.Mint(req.RoomName, req.ParticipantName)
	if err != nil {
		if errors.Is(err, token.ErrNotConfigured) {
			slog.Error("token request with no LiveKit credentials configured")
			errorResponse(w, http.StatusInternalServerError, "Media tokens are not configured on this server")
			return
		}
		errorResponse(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	jsonResponse(w, http.StatusOK, TokenResponse{
		Token: signed,
		WsURL: a.minter.ServerURL(),
	})
}

// Execute handler

type ExecuteRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Input    string `json:"input"`
}

type ExecuteResponse struct {
	Output string `json:"output"`
}

// ExecuteHandler proxies one code run to the compiler API. The result is
// returned only to the caller; sharing it with the room happens through an
// ordinary output-change event sent by the caller's client.
func (a *API) ExecuteHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if a.execLimits != nil && !a.execLimits.Allow(callerKey(r)) {
		errorResponse(w, http.StatusTooManyRequests, "Too many execution requests")
		return
	}

	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Language == "" || req.Code == "" {
		errorResponse(w, http.StatusBadRequest, "language and code are required")
		return
	}

	output, err := a.execClient.Run(r.Context(), req.Language, req.Code, req.Input)
	if err != nil {
		if errors.Is(err, exec.ErrNotConfigured) {
			slog.Error("execute request with no compiler credentials configured")
			errorResponse(w, http.StatusInternalServerError, "Code execution is not configured on this server")
			return
		}
		slog.Warn("code execution failed", "language", req.Language, "error", err)
		errorResponse(w, http.StatusBadGateway, "Code execution failed")
		return
	}

	jsonResponse(w, http.StatusOK, ExecuteResponse{Output: output})
}

func callerKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
