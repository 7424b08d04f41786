// apps/go-server/internal/httpserver/server.go
//
// HTTP server wiring for the Sudoku Arena backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/daily".
//   - Room lifecycle boundary: POST /rooms (create), POST /rooms/{roomID}/join,
//     GET /rooms/{roomID} (lobby preview).
//   - Signed room tokens binding each admitted player to its room; the
//     websocket transport verifies them on subscribe.
//   - Mounts the realtime transport at GET /ws.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled.
//   - Gameplay never flows through HTTP; everything after admission rides
//     the websocket event stream.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/auth"
	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/daily"
	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/session"
	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/sudoku"
)

// tokenTTL bounds how long an issued room token stays usable. Rooms are
// in-memory and short-lived; a day is generous.
const tokenTTL = 24 * time.Hour

// Generator produces a (puzzle, solution) pair for a difficulty.
type Generator interface {
	Generate(d sudoku.Difficulty) (puzzle, solution sudoku.Grid)
}

// Transport is the realtime adapter: the outbound event fan-out plus the
// websocket upgrade handler mounted at /ws.
type Transport interface {
	session.Broadcaster
	http.Handler
}

// Server bundles router, room registry, puzzle generator, and transport.
type Server struct {
	r         *chi.Mux
	store     *session.Store
	gen       Generator
	transport Transport
	secret    []byte
}

// New constructs a Server, installs middleware, and registers routes.
func New(store *session.Store, gen Generator, transport Transport) *Server {
	s := &Server{
		r:         chi.NewRouter(),
		store:     store,
		gen:       gen,
		transport: transport,
		secret:    []byte(getEnv("JWT_SECRET", "dev_secret_change_me")),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(corsFromEnv)     // credentials-friendly CORS

	// REST routes get JSON responses and bounded handler time.
	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(jsonContentType)

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"sudoku-arena-go","endpoints":["/health","/daily","POST /rooms","POST /rooms/{roomID}/join","GET /rooms/{roomID}","GET /ws"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})

		// Room lifecycle
		r.Post("/rooms", s.handleCreateRoom)
		r.Post("/rooms/{roomID}/join", s.handleJoinRoom)
		r.Get("/rooms/{roomID}", s.handleRoomInfo)

		// Daily puzzle (stateless, deterministic per UTC date)
		r.Get("/daily", s.handleDaily)
	})

	// Realtime event stream: long-lived connections, so no timeout
	// middleware and no default content type.
	s.r.Get("/ws", s.transport.ServeHTTP)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:5173.
func corsFromEnv(next http.Handler) http.Handler {
	origin := os.Getenv("CLIENT_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ ROOMS ---------------------------------------

// createRoomReq is the payload for POST /rooms.
type createRoomReq struct {
	PlayerName   string `json:"player_name"`
	Difficulty   string `json:"difficulty"`     // easy|medium|hard|expert, default easy
	Mode         string `json:"mode"`           // cooperative|competitive, default cooperative
	TimeLimitSec int    `json:"time_limit_sec"` // 0 = difficulty default, <0 = no limit
}

// admissionRes is returned by both create and join.
type admissionRes struct {
	RoomID     string      `json:"room_id"`
	PlayerID   string      `json:"player_id"`
	Token      string      `json:"token"`
	Puzzle     sudoku.Grid `json:"puzzle"`
	Solution   sudoku.Grid `json:"solution"`
	Difficulty string      `json:"difficulty"`
	Mode       string      `json:"mode"`
	Message    string      `json:"message"`
}

// handleCreateRoom generates a fresh puzzle, registers a room, and admits
// the creator as host.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	if req.PlayerName == "" {
		http.Error(w, `{"error":"player_name is required"}`, http.StatusBadRequest)
		return
	}
	diff, err := sudoku.ParseDifficulty(req.Difficulty)
	if err != nil {
		http.Error(w, `{"error":"unknown difficulty"}`, http.StatusBadRequest)
		return
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		http.Error(w, `{"error":"unknown mode"}`, http.StatusBadRequest)
		return
	}

	puzzle, solution := s.gen.Generate(diff)
	room := s.store.Create(puzzle, solution, session.Config{
		Mode:       mode,
		Difficulty: diff,
		TimeLimit:  time.Duration(req.TimeLimitSec) * time.Second,
	}, s.transport)

	player, err := room.Admit(req.PlayerName)
	if err != nil {
		s.writeSessionErr(w, err)
		return
	}
	s.writeAdmission(w, room, player, "Room created successfully")
}

// joinRoomReq is the payload for POST /rooms/{roomID}/join.
type joinRoomReq struct {
	PlayerName string `json:"player_name"`
}

// handleJoinRoom admits a player into an existing lobby.
func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	room, ok := s.store.Get(chi.URLParam(r, "roomID"))
	if !ok {
		http.Error(w, `{"error":"Room not found"}`, http.StatusNotFound)
		return
	}
	player, err := room.Admit(req.PlayerName)
	if err != nil {
		s.writeSessionErr(w, err)
		return
	}
	s.writeAdmission(w, room, player, "Joined room successfully")
}

// roomInfoRes is the lobby preview for GET /rooms/{roomID}.
type roomInfoRes struct {
	RoomID     string               `json:"room_id"`
	Difficulty string               `json:"difficulty"`
	Mode       string               `json:"mode"`
	Phase      string               `json:"phase"`
	HostID     string               `json:"host_id"`
	Players    []session.PlayerInfo `json:"players"`
}

// handleRoomInfo lets clients poll a room before subscribing.
func (s *Server) handleRoomInfo(w http.ResponseWriter, r *http.Request) {
	room, ok := s.store.Get(chi.URLParam(r, "roomID"))
	if !ok {
		http.Error(w, `{"error":"Room not found"}`, http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(roomInfoRes{
		RoomID:     room.ID(),
		Difficulty: string(room.Difficulty()),
		Mode:       string(room.Mode()),
		Phase:      room.Phase().String(),
		HostID:     room.HostID(),
		Players:    room.Roster(),
	})
}

// writeAdmission issues the room token and encodes the admission response.
func (s *Server) writeAdmission(w http.ResponseWriter, room *session.Room, player *session.Player, msg string) {
	token, err := auth.Sign(s.secret, auth.Claims{RoomID: room.ID(), PlayerID: player.ID}, tokenTTL)
	if err != nil {
		log.Error().Err(err).Str("room", room.ID()).Msg("sign room token")
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(admissionRes{
		RoomID:     room.ID(),
		PlayerID:   player.ID,
		Token:      token,
		Puzzle:     room.Puzzle(),
		Solution:   room.Solution(),
		Difficulty: string(room.Difficulty()),
		Mode:       string(room.Mode()),
		Message:    msg,
	})
}

// writeSessionErr maps the session error taxonomy onto HTTP statuses.
func (s *Server) writeSessionErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, session.ErrInvalidTransition):
		code = http.StatusConflict
	}
	http.Error(w, `{"error":"`+err.Error()+`"}`, code)
}

// parseMode validates a client-supplied game mode; empty defaults to
// cooperative.
func parseMode(s string) (session.Mode, error) {
	switch session.Mode(s) {
	case "":
		return session.ModeCooperative, nil
	case session.ModeCooperative, session.ModeCompetitive:
		return session.Mode(s), nil
	}
	return "", errors.New("unknown mode")
}

// ------------------------------ DAILY ---------------------------------------

// dailyRes is the payload for GET /daily. The solution is withheld; the
// same (date, difficulty) pair yields the same puzzle on every instance.
type dailyRes struct {
	Date       string      `json:"date"`
	Difficulty string      `json:"difficulty"`
	Puzzle     sudoku.Grid `json:"puzzle"`
	Givens     int         `json:"givens"`
}

// handleDaily derives the deterministic daily puzzle.
func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	diff, err := sudoku.ParseDifficulty(r.URL.Query().Get("difficulty"))
	if err != nil {
		http.Error(w, `{"error":"unknown difficulty"}`, http.StatusBadRequest)
		return
	}
	now := time.Now()
	seed := daily.Seed(now, getEnv("DAILY_SALT", "local_dev_salt"))
	puzzle, _ := sudoku.NewEngine(sudoku.WithSeed(seed)).Generate(diff)
	_ = json.NewEncoder(w).Encode(dailyRes{
		Date:       daily.DateKey(now),
		Difficulty: string(diff),
		Puzzle:     puzzle,
		Givens:     puzzle.Filled(),
	})
}

// ------------------------------- small util --------------------------------

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
