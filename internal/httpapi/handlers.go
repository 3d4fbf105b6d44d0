package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/CBerg14/balloon-pump-backend/internal/users"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ListUsers returns all known users keyed by wallet address.
func ListUsers(reg *users.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		byWallet, err := reg.List(r.Context())
		if err != nil {
			log.Error("list users", zap.Error(err))
			http.Error(w, "failed to list users", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, byWallet)
	}
}

// GetNickname looks up a wallet's nickname.
func GetNickname(reg *users.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wallet := r.URL.Query().Get("wallet")
		u, err := reg.Resolve(r.Context(), wallet)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": false,
				"message": "User not found",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"nickname": u.Nickname,
		})
	}
}

type updateNicknameRequest struct {
	Wallet             string    `json:"wallet"`
	NewNickname        string    `json:"newNickname"`
	LastNicknameChange time.Time `json:"lastNicknameChange"`
}

// UpdateNickname sets a wallet's nickname directly, cooldown exempt.
func UpdateNickname(reg *users.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateNicknameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if req.Wallet == "" || req.NewNickname == "" || req.LastNicknameChange.IsZero() {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "wallet, newNickname, and lastNicknameChange are required",
			})
			return
		}

		u, err := reg.SetNickname(r.Context(), req.Wallet, req.NewNickname, req.LastNicknameChange)
		if errors.Is(err, users.ErrUnknownUser) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "wallet address not found"})
			return
		}
		if err != nil {
			log.Error("update nickname", zap.Error(err))
			http.Error(w, "failed to update nickname", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Nickname updated to " + u.Nickname,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
