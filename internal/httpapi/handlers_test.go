package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CBerg14/balloon-pump-backend/internal/store"
	"github.com/CBerg14/balloon-pump-backend/internal/users"
)

func newTestRegistry(t *testing.T) *users.Registry {
	t.Helper()
	return users.NewRegistry(store.NewMemStore(), zap.NewNop())
}

func TestGetNickname(t *testing.T) {
	reg := newTestRegistry(t)
	u, err := reg.Register(context.Background(), "wallet-1")
	require.NoError(t, err)

	h := GetNickname(reg)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/get_nickname?wallet=wallet-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["success"])
	require.Equal(t, u.Nickname, body["nickname"])

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/get_nickname?wallet=nobody", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, false, body["success"])
}

func TestListUsers(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.Register(context.Background(), "wallet-1")
	require.NoError(t, err)
	_, err = reg.Register(context.Background(), "wallet-2")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	ListUsers(reg, zap.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]store.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	require.Equal(t, "wallet-1", body["wallet-1"].Wallet)
}

func TestUpdateNickname(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.Register(context.Background(), "wallet-1")
	require.NoError(t, err)

	h := UpdateNickname(reg, zap.NewNop())

	cases := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "ok",
			body:       `{"wallet":"wallet-1","newNickname":"fresh","lastNicknameChange":"` + time.Now().Format(time.RFC3339) + `"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing fields",
			body:       `{"wallet":"wallet-1"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown wallet",
			body:       `{"wallet":"nobody","newNickname":"ghost","lastNicknameChange":"` + time.Now().Format(time.RFC3339) + `"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "invalid json",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/api/users/update-nickname", strings.NewReader(tc.body))
			h(rec, req)
			require.Equal(t, tc.wantStatus, rec.Code)
		})
	}

	u, err := reg.Resolve(context.Background(), "wallet-1")
	require.NoError(t, err)
	require.Equal(t, "fresh", u.Nickname)
}
