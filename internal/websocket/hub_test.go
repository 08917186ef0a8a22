package websocket_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crm/internal/auth"
	"crm/internal/model"
	ws "crm/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeedServer(t *testing.T) (*ws.Hub, *auth.TokenService, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	tokens := auth.NewTokenService("feed-secret", time.Hour)
	router := gin.New()
	router.GET("/ws/audit-logs", func(c *gin.Context) {
		ws.ServeWs(hub, c, tokens)
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return hub, tokens, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/audit-logs"
}

func tokenWith(t *testing.T, tokens *auth.TokenService, perms ...string) string {
	t.Helper()
	identity := auth.Identity{ID: uuid.New(), Username: "viewer@example.com", Role: auth.RoleClaim{Name: "Viewer"}}
	for _, p := range perms {
		identity.Role.Permissions = append(identity.Role.Permissions, auth.PermissionClaim{ID: uuid.New(), Name: p})
	}
	token, err := tokens.Issue(identity)
	require.NoError(t, err)
	return token
}

func TestFeedBroadcastsAuditEntries(t *testing.T) {
	hub, tokens, url := newFeedServer(t)

	conn, _, err := gorilla.DefaultDialer.Dial(url+"?token="+tokenWith(t, tokens, "GET:/audit-logs/"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	entry := &model.AuditLog{ID: uuid.New(), EntityType: model.EntityLead, EntityID: uuid.New(), Action: model.ActionCreateLead}
	hub.Publish(entry)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg ws.Message
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, "audit_log", msg.Type)
	assert.Equal(t, entry.EntityID, msg.Data.EntityID)
	assert.Equal(t, model.ActionCreateLead, msg.Data.Action)
}

func TestFeedRejectsUnauthorizedPeers(t *testing.T) {
	_, tokens, url := newFeedServer(t)

	_, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = gorilla.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = gorilla.DefaultDialer.Dial(url+"?token="+tokenWith(t, tokens, "GET:/leads/"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := ws.NewHub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish(&model.AuditLog{ID: uuid.New()})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
}
