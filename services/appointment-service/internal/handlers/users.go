package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/scheduling"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// bcryptCost is a variable so tests can lower it.
var bcryptCost = bcrypt.DefaultCost

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Provider bool   `json:"provider"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User      userView `json:"user"`
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
}

func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		a.writeError(w, r, scheduling.ErrValidation)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || len(req.Password) < minPasswordLength {
		a.writeError(w, r, scheduling.ErrValidation)
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		a.writeError(w, r, scheduling.ErrValidation)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	u, err := a.users.Create(r.Context(), model.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Provider:     req.Provider,
	})
	if errors.Is(err, model.ErrDuplicate) {
		a.writeError(w, r, scheduling.Validation("User already exists"))
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a.user(u))
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		a.writeError(w, r, scheduling.ErrValidation)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		a.writeError(w, r, scheduling.ErrValidation)
		return
	}

	u, err := a.users.GetByEmail(r.Context(), req.Email)
	if errors.Is(err, model.ErrNotFound) {
		httpx.WriteError(w, http.StatusUnauthorized, "User not found")
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "Password does not match")
		return
	}

	token, expires, err := a.tokens.Sign(u.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		User:      a.user(u),
		Token:     token,
		ExpiresAt: expires.UTC().Format(time.RFC3339),
	})
}
