package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wfunc/mine-game/internal/api"
	"github.com/wfunc/mine-game/internal/client"
	"github.com/wfunc/mine-game/internal/config"
	apperrors "github.com/wfunc/mine-game/internal/errors"
	"github.com/wfunc/mine-game/internal/models"
	"github.com/wfunc/mine-game/internal/repository"
)

func newTestServer(t *testing.T) (*httptest.Server, *client.Client) {
	gin.SetMode(gin.TestMode)

	db := repository.TestDB(t)
	cfg := &config.Config{
		Session: config.SessionConfig{TTL: time.Hour},
		Game: config.GameConfig{
			GridSize:     25,
			MineCount:    3,
			MaxReward:    58,
			PersistBoard: true,
		},
		Admin: config.AdminConfig{
			Password:    "qixi",
			JWTSecret:   "test-secret",
			TokenExpiry: time.Hour,
		},
	}
	router := api.NewRouter(db, cfg, zap.NewNop())

	server := httptest.NewServer(router.GetEngine())
	t.Cleanup(server.Close)

	return server, client.New(server.URL)
}

func issueID(t *testing.T, server *httptest.Server, gameID string) {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"password": "qixi"})
	resp, err := http.Post(server.URL+"/api/v1/admin/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))

	body, _ = json.Marshal(map[string]string{"game_id": gameID})
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/admin/ids", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestClient_ClaimAndPlay(t *testing.T) {
	server, c := newTestServer(t)
	ctx := context.Background()
	issueID(t, server, "1234")

	result, params, err := c.Claim(ctx, "1234", "fp-a")
	require.NoError(t, err)
	assert.Equal(t, "1234", result.GameID)
	assert.NotEmpty(t, result.SessionToken)
	assert.Equal(t, 25, params.GridSize)
	assert.Equal(t, 3, params.MineCount)
	assert.Equal(t, float64(58), params.MaxReward)

	alive, err := c.Heartbeat(ctx, result.SessionToken)
	require.NoError(t, err)
	assert.True(t, alive)

	require.NoError(t, c.SyncBoard(ctx, result.SessionToken,
		models.JSONMap{"revealed": []interface{}{float64(0)}}))

	_, err = c.Validate(ctx, "1234", result.SessionToken)
	require.NoError(t, err)

	require.NoError(t, c.Complete(ctx, "1234", result.SessionToken, models.GameResultCashedOut, 14.5))

	alive, err = c.Heartbeat(ctx, result.SessionToken)
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestClient_ClaimErrors(t *testing.T) {
	server, c := newTestServer(t)
	ctx := context.Background()

	// 未发放的ID
	_, _, err := c.Claim(ctx, "9999", "fp-a")
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrIDNotFound, appErr.Code)

	// 会话冲突
	issueID(t, server, "1234")
	_, _, err = c.Claim(ctx, "1234", "fp-a")
	require.NoError(t, err)

	_, _, err = c.Claim(ctx, "1234", "fp-b")
	require.Error(t, err)
	appErr, ok = err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrSessionConflict, appErr.Code)
}
