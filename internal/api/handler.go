// Package api provides HTTP handlers for the chatbot API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/unigrow/unigrow-bot/internal/actions"
	"github.com/unigrow/unigrow-bot/internal/chat"
	"github.com/unigrow/unigrow-bot/internal/identity"
	"github.com/unigrow/unigrow-bot/internal/media"
	"github.com/unigrow/unigrow-bot/internal/scheduler"
	"github.com/unigrow/unigrow-bot/internal/store"
)

const maxBodyBytes = 1 << 20

// Replier produces a bot reply for a user. *chat.Service satisfies it.
type Replier interface {
	Reply(ctx context.Context, userID int64, text string) (chat.Turn, error)
}

// Pinger reports whether a dependency is reachable. *llm.Client satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Readier reports whether the dialogue engine can take messages.
type Readier interface {
	Ready(ctx context.Context) error
}

// Deps are the collaborators shared by every handler. Nil optional
// dependencies disable the routes that need them.
type Deps struct {
	Repo      store.Repository
	Chat      Replier
	Scheduler *scheduler.Scheduler
	Media     *media.Catalog
	Actions   *actions.Registry
	LLM       Pinger
	Dialogue  Readier
	Logger    *slog.Logger
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Handler provides common handler utilities.
type Handler struct {
	repo       store.Repository
	chat       Replier
	scheduler  *scheduler.Scheduler
	media      *media.Catalog
	actions    *actions.Registry
	llm        Pinger
	dialogue   Readier
	logger     *slog.Logger
	bcryptCost int
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.BcryptCost == 0 {
		deps.BcryptCost = bcrypt.DefaultCost
	}
	return &Handler{
		repo:       deps.Repo,
		chat:       deps.Chat,
		scheduler:  deps.Scheduler,
		media:      deps.Media,
		actions:    deps.Actions,
		llm:        deps.LLM,
		dialogue:   deps.Dialogue,
		logger:     deps.Logger,
		bcryptCost: deps.BcryptCost,
	}
}

// RegisterRoutes mounts every HTTP endpoint except the WebSocket.
func (h *Handler) RegisterRoutes(r chi.Router) {
	NewHealthHandler(h).RegisterHealth(r)
	NewAccountHandler(h).RegisterRoutes(r)
	NewChatHandler(h).RegisterRoutes(r)
	if h.scheduler != nil {
		NewSchedulerHandler(h).RegisterRoutes(r)
	}
	if h.media != nil {
		NewMediaHandler(h).RegisterRoutes(r)
	}
	if h.actions != nil {
		NewActionHandler(h).RegisterRoutes(r)
	}
	r.NotFound(NotFound)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// NotFound is the JSON 404 for unknown routes.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	Error(w, http.StatusNotFound, "Không tìm thấy")
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// pathUserID parses the {userID} URL parameter.
func pathUserID(r *http.Request) (int64, bool) {
	return identity.ParseUserID(chi.URLParam(r, "userID"))
}

// flexibleID accepts a user ID sent as a JSON number or string. Anything
// unparseable decodes as zero, which callers treat as missing.
type flexibleID int64

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	id, ok := identity.ParseUserID(s)
	if !ok {
		*f = 0
		return nil
	}
	*f = flexibleID(id)
	return nil
}
