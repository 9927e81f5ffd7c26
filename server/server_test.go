package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/techagentng/collabhub/config"
	"github.com/techagentng/collabhub/db/memdb"
	"github.com/techagentng/collabhub/realtime"
	"github.com/techagentng/collabhub/services"
)

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  string          `json:"errors"`
	Status  string          `json:"status"`
}

type testServer struct {
	*Server
	handler  http.Handler
	identity *services.JWTIdentity
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conf := &config.Config{Env: "test", RatingMaxAttempts: 50, SendBuffer: 64}
	store := memdb.New()
	broker := realtime.NewMemoryBroker(64)
	identity := services.NewJWTIdentity("test-secret")
	storeCheck := HealthCheck{Name: "store", Check: func(ctx context.Context) error { return nil }}

	s := &Server{
		Config:            conf,
		Identity:          identity,
		ProfileService:    services.NewProfileService(store, conf),
		ChatService:       services.NewChatService(store, store, broker, nil, conf),
		SocialService:     services.NewSocialService(store, store, conf),
		GenerationService: services.NewGenerationService(nil, nil, nil, conf),
		Engine:            realtime.NewEngine(broker, store, realtime.Options{BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}),
		Hub:               realtime.NewHub(),
		HealthChecks:      []HealthCheck{storeCheck},
	}
	t.Cleanup(s.Hub.Close)
	return &testServer{Server: s, handler: s.Handler(), identity: identity}
}

func (ts *testServer) token(t *testing.T, uid string) string {
	t.Helper()
	token, err := ts.identity.Issue(uid, time.Hour)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, uid string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token(t, uid))
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func (ts *testServer) signup(t *testing.T, uid, name, userType string) {
	t.Helper()
	rec, env := ts.do(t, http.MethodPost, "/api/v1/profile", uid, map[string]string{
		"display_name": name,
		"user_type":    userType,
		"location":     "Chicago",
	})
	require.Equal(t, http.StatusCreated, rec.Code, env.Errors)
}

func TestAuthorizeRejectsMissingAndInvalidTokens(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignupAndProfile(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "business-002", "  Mark's Gym ", "Business")

	rec, env := ts.do(t, http.MethodGet, "/api/v1/me", "business-002", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
		Category    string `json:"category"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "Mark's Gym", me.DisplayName)
	assert.Equal(t, "business", me.Role)
	assert.Equal(t, "Not specified", me.Category)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/profile", "business-002", map[string]string{
		"display_name": "Again", "user_type": "business", "location": "Chicago",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/profile", "someone", map[string]string{
		"display_name": "X", "user_type": "pirate", "location": "Sea",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = ts.do(t, http.MethodPut, "/api/v1/me/profile", "business-002", map[string]string{"bio": "Open 24/7"})
	require.Equal(t, http.StatusOK, rec.Code, env.Errors)

	rec, env = ts.do(t, http.MethodGet, "/api/v1/users/business-002", "influencer-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile struct {
		Bio      string `json:"bio"`
		UserType string `json:"user_type"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "Open 24/7", profile.Bio)
	assert.Equal(t, "business", profile.UserType)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/users/ghost", "influencer-001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversationFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "alice", "Alice Smith", "influencer")
	ts.signup(t, "bob", "Bob's Bakery", "business")
	ts.signup(t, "carol", "Carol", "influencer")

	rec, env := ts.do(t, http.MethodPost, "/api/v1/users/bob/messages", "alice", map[string]string{"body": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code, env.Errors)
	rec, env = ts.do(t, http.MethodPost, "/api/v1/conversations/alice_bob/messages", "bob", map[string]string{"body": "hey"})
	require.Equal(t, http.StatusCreated, rec.Code, env.Errors)

	rec, env = ts.do(t, http.MethodGet, "/api/v1/conversations/alice_bob/messages", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []struct {
		Body     string `json:"body"`
		SenderID string `json:"sender_id"`
		Seq      int64  `json:"seq"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Body)
	assert.Equal(t, "alice", msgs[0].SenderID)
	assert.Equal(t, "hey", msgs[1].Body)
	assert.Equal(t, int64(2), msgs[1].Seq)

	rec, env = ts.do(t, http.MethodGet, "/api/v1/conversations", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var convs []struct {
		ID          string `json:"id"`
		LastMessage string `json:"last_message"`
		Other       struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"other_participant"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, "alice_bob", convs[0].ID)
	assert.Equal(t, "hey", convs[0].LastMessage)
	assert.Equal(t, "alice", convs[0].Other.ID)
	assert.Equal(t, "Alice Smith", convs[0].Other.DisplayName)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/conversations/alice_bob/messages", "carol", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = ts.do(t, http.MethodPost, "/api/v1/conversations/alice_bob/messages", "carol", map[string]string{"body": "intrude"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = ts.do(t, http.MethodPost, "/api/v1/conversations/alice_bob/messages", "alice", map[string]string{"body": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = ts.do(t, http.MethodPost, "/api/v1/users/alice/messages", "alice", map[string]string{"body": "me"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/users/ghost/messages", "alice", map[string]string{"body": "hello?"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, env = ts.do(t, http.MethodGet, "/api/v1/conversations", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, "alice_bob", convs[0].ID)
}

func TestStartConversationIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "alice", "Alice Smith", "influencer")
	ts.signup(t, "bob", "Bob's Bakery", "business")

	for _, uid := range []string{"alice", "bob", "alice"} {
		other := "bob"
		if uid == "bob" {
			other = "alice"
		}
		rec, env := ts.do(t, http.MethodPost, "/api/v1/conversations", uid, map[string]string{"other_id": other})
		require.Equal(t, http.StatusOK, rec.Code, env.Errors)
		var conv struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &conv))
		assert.Equal(t, "alice_bob", conv.ID)
	}

	rec, _ := ts.do(t, http.MethodPost, "/api/v1/conversations", "alice", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = ts.do(t, http.MethodPost, "/api/v1/conversations", "alice", map[string]string{"other_id": "no-such-user"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRatingsAndConnections(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "business-001", "Jane's Restaurant", "business")
	ts.signup(t, "influencer-001", "John Doe", "influencer")
	ts.signup(t, "influencer-002", "Alice Smith", "influencer")

	rec, _ := ts.do(t, http.MethodPost, "/api/v1/users/business-001/ratings", "influencer-001", map[string]interface{}{"score": 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = ts.do(t, http.MethodPost, "/api/v1/users/business-001/ratings", "business-001", map[string]interface{}{"score": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := ts.do(t, http.MethodPost, "/api/v1/users/business-001/ratings", "influencer-001", map[string]interface{}{"score": 4, "comment": " tasty "})
	require.Equal(t, http.StatusCreated, rec.Code, env.Errors)
	rec, env = ts.do(t, http.MethodPost, "/api/v1/users/business-001/ratings", "influencer-002", map[string]interface{}{"score": 5})
	require.Equal(t, http.StatusCreated, rec.Code, env.Errors)

	rec, env = ts.do(t, http.MethodGet, "/api/v1/users/business-001/ratings", "influencer-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		Ratings []struct {
			Comment string `json:"comment"`
		} `json:"ratings"`
		Average float64 `json:"average"`
		Count   int64   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, int64(2), summary.Count)
	assert.InDelta(t, 4.5, summary.Average, 1e-9)
	assert.Len(t, summary.Ratings, 2)

	// rating creates the rater's edge only
	rec, env = ts.do(t, http.MethodGet, "/api/v1/connections", "influencer-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "business-001")
	rec, env = ts.do(t, http.MethodGet, "/api/v1/connections", "business-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(env.Data), "influencer-001")

	rec, _ = ts.do(t, http.MethodPut, "/api/v1/connections/influencer-002", "business-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, env = ts.do(t, http.MethodGet, "/api/v1/connections", "influencer-002", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "business-001")

	rec, _ = ts.do(t, http.MethodDelete, "/api/v1/connections/business-001", "influencer-002", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, env = ts.do(t, http.MethodGet, "/api/v1/connections", "business-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(env.Data), "influencer-002")
}

func TestGenerateRequiresPrompt(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/v1/generate/image", "/api/v1/generate/website-code"} {
		rec, env := ts.do(t, http.MethodPost, path, "alice", map[string]string{"prompt": "  "})
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "Prompt is required", env.Errors, path)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec, _ := ts.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.HealthChecks = append(ts.HealthChecks, HealthCheck{
		Name:  "broker",
		Check: func(ctx context.Context) error { return errors.New("down") },
	})
	rec, env := ts.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, string(env.Data), "down")
}

type wsFrame struct {
	Type string                `json:"type"`
	Data realtime.MessageEvent `json:"data"`
	Err  string                `json:"error"`
}

func TestMessagesSocketStreamsSnapshotThenAppends(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "alice", "Alice Smith", "influencer")
	ts.signup(t, "bob", "Bob's Bakery", "business")
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	ctx := context.Background()
	_, err := ts.ChatService.SendDirectMessage(ctx, "alice", "bob", "hi")
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/conversations/alice_bob?token=" + ts.token(t, "bob")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	var frame wsFrame
	require.NoError(t, ws.ReadJSON(&frame))
	assert.Equal(t, "messages", frame.Type)
	assert.Equal(t, realtime.EventSnapshot, frame.Data.Type)
	require.Len(t, frame.Data.Messages, 1)
	assert.Equal(t, "hi", frame.Data.Messages[0].Body)

	_, err = ts.ChatService.SendMessage(ctx, "alice_bob", "bob", "hey")
	require.NoError(t, err)

	require.NoError(t, ws.ReadJSON(&frame))
	assert.Equal(t, realtime.EventAppended, frame.Data.Type)
	require.Len(t, frame.Data.Messages, 1)
	assert.Equal(t, "hey", frame.Data.Messages[0].Body)
	assert.Equal(t, int64(2), frame.Data.Messages[0].Seq)
}

func TestMessagesSocketRejectsOutsiders(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/conversations/alice_bob?token=" + ts.token(t, "carol")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestConversationListSocketFollowsNewMessages(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "alice", "Alice Smith", "influencer")
	ts.signup(t, "bob", "Bob's Bakery", "business")
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/conversations?token=" + ts.token(t, "alice")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	var frame struct {
		Type string `json:"type"`
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, ws.ReadJSON(&frame))
	assert.Equal(t, "conversations", frame.Type)
	assert.Empty(t, frame.Data)

	_, err = ts.ChatService.SendDirectMessage(context.Background(), "bob", "alice", "hello")
	require.NoError(t, err)

	require.NoError(t, ws.ReadJSON(&frame))
	require.Len(t, frame.Data, 1)
	assert.Equal(t, "alice_bob", frame.Data[0].ID)
}
