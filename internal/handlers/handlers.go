package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bataille/internal/game"
	"bataille/internal/logging"
)

// Handler contains dependencies for the HTTP command surface. All session
// mutations funnel through the manager; the real-time layer is informed by
// it, never the other way around.
type Handler struct {
	manager *game.Manager
	commit  string
	log     zerolog.Logger
}

// NewHandler creates a new handler instance.
func NewHandler(manager *game.Manager, commit string) *Handler {
	return &Handler{
		manager: manager,
		commit:  commit,
		log:     logging.Component("http"),
	}
}

// Routes returns the REST router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestLogger(h.log))
	r.Get("/healthz", h.HandleHealth)
	r.Route("/api/games", func(r chi.Router) {
		r.Use(RequirePlayer)
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Route("/{gameID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Post("/join", h.HandleJoin)
			r.Put("/ships", h.HandlePlaceShips)
			r.Post("/move", h.HandleMove)
			r.Put("/save", h.HandleSave)
			r.Put("/resume", h.HandleResume)
			r.Post("/quit", h.HandleQuit)
		})
	})
	return r
}

func gameID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "gameID"))
	if err != nil {
		return uuid.Nil, game.ErrNotFound
	}
	return id, nil
}

// HandleHealth reports liveness and the running build.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "commit": h.commit})
}

// HandleCreate starts a new session with the caller as its first player.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Create(r.Context(), PlayerID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, s)
}

// HandleList returns the caller's open sessions, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.manager.ListMine(r.Context(), PlayerID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*game.Session{}
	}
	WriteJSON(w, http.StatusOK, sessions)
}

// HandleGet returns one session.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	s, err := h.manager.Get(r.Context(), id, PlayerID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, s)
}

// HandleJoin adds the caller as the second player.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	s, err := h.manager.Join(r.Context(), id, PlayerID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, s)
}

type placeShipsRequest struct {
	Ships []game.Ship `json:"ships"`
}

// HandlePlaceShips records the caller's fleet layout.
func (h *Handler) HandlePlaceShips(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req placeShipsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "bad_json", "message": "malformed request body"})
		return
	}
	s, err := h.manager.PlaceShips(r.Context(), id, PlayerID(r), req.Ships)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, s)
}

type moveRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// HandleMove fires one shot.
func (h *Handler) HandleMove(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "bad_json", "message": "malformed request body"})
		return
	}
	s, result, err := h.manager.Fire(r.Context(), id, PlayerID(r), req.X, req.Y)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"game": s, "result": result})
}

// HandleSave pauses an active session.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	s, err := h.manager.Pause(r.Context(), id, PlayerID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, s)
}

// HandleResume reactivates a paused session.
func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	s, err := h.manager.Resume(r.Context(), id, PlayerID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, s)
}

// HandleQuit abandons the session, awarding the win to the opponent.
func (h *Handler) HandleQuit(w http.ResponseWriter, r *http.Request) {
	id, err := gameID(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	s, err := h.manager.Quit(r.Context(), id, PlayerID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, s)
}
