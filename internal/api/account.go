package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/unigrow/unigrow-bot/internal/domain"
	"github.com/unigrow/unigrow-bot/internal/store"
)

// AccountHandler handles registration and login.
type AccountHandler struct {
	*Handler
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(base *Handler) *AccountHandler {
	return &AccountHandler{Handler: base}
}

// RegisterRoutes registers account routes.
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/register", h.Register)
	r.Post("/api/login", h.Login)
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an account with a bcrypt password hash.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Dữ liệu không hợp lệ")
		return
	}
	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	email := strings.TrimSpace(req.Email)
	if username == "" || password == "" || email == "" {
		Error(w, http.StatusBadRequest, "Thiếu thông tin đăng ký")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
	if err != nil {
		// bcrypt rejects passwords longer than 72 bytes.
		h.logger.Warn("Failed to hash password", "error", err, "username", username)
		Error(w, http.StatusBadRequest, "Mật khẩu không hợp lệ")
		return
	}

	id, err := h.repo.CreateUser(r.Context(), &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
	})
	if errors.Is(err, store.ErrDuplicateUser) {
		Error(w, http.StatusBadRequest, "Tên người dùng đã tồn tại")
		return
	}
	if err != nil {
		h.logger.Error("Failed to create user", "error", err, "username", username)
		Error(w, http.StatusInternalServerError, "Lỗi server")
		return
	}

	h.logger.Info("User registered", "user_id", id, "username", username)
	JSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Đăng ký thành công!",
		"user_id": id,
	})
}

// Login checks a username and password.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Dữ liệu không hợp lệ")
		return
	}
	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	if username == "" || password == "" {
		Error(w, http.StatusBadRequest, "Thiếu tên đăng nhập hoặc mật khẩu")
		return
	}

	user, err := h.repo.GetUserByUsername(r.Context(), username)
	if err != nil {
		h.logger.Error("Failed to load user", "error", err, "username", username)
		Error(w, http.StatusInternalServerError, "Lỗi server")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		Error(w, http.StatusUnauthorized, "Tên đăng nhập hoặc mật khẩu sai")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "Đăng nhập thành công!",
		"user_id":  user.ID,
		"username": user.Username,
	})
}
