package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crew/internal/app"
	"crew/internal/middleware"
	"crew/internal/model"
	"crew/internal/service"
	internalws "crew/internal/websocket"
	"crew/pkg/config"
	"crew/pkg/db"
	"crew/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	hub    *internalws.Hub
	token  string
	actor  *model.User
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := db.NewTestDB(t)
	wsCfg := config.WebSocketConfig{BroadcastBufferSize: 16, MessageRetryCount: 1, MessageRetryIntervalMs: 5}
	hub := internalws.NewHub(wsCfg)
	go hub.Run()
	t.Cleanup(func() { _ = hub.Close() })

	svc := app.NewServices(gdb, config.HierarchyConfig{}, hub)

	tokens := utils.NewTokenManager(config.JWTConfig{Secret: "api-secret", Expiration: time.Hour})
	router := SetupRouter(Handlers{
		Group:       NewGroupHandler(svc.Groups, svc.Vacancies, svc.History),
		Membership:  NewMembershipHandler(svc.Memberships, svc.History),
		Vacancy:     NewVacancyHandler(svc.Vacancies),
		UserRequest: NewUserRequestHandler(svc.UserRequests),
		WS:          NewWSHandler(hub, wsCfg),
	}, middleware.AuthMiddleware(tokens, svc.UserRepo))

	actor := &model.User{Name: "Admin", Email: "admin@example.com", Active: true}
	require.NoError(t, svc.UserRepo.Create(context.Background(), actor))
	token, err := tokens.GenerateToken(actor.ID)
	require.NoError(t, err)

	return &testServer{router: router, hub: hub, token: token, actor: actor}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) createGroup(t *testing.T, name string, parentID *string) model.Group {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/groups", gin.H{"name": name, "parentId": parentID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[model.Group](t, w)
}

func TestRouter_RequiresAuth(t *testing.T) {
	s := setupTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/groups/roots", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_GroupTree(t *testing.T) {
	s := setupTestServer(t)

	a := s.createGroup(t, "A", nil)
	b := s.createGroup(t, "B", &a.ID)
	c := s.createGroup(t, "C", &b.ID)

	w := s.do(t, http.MethodGet, "/api/groups/"+c.ID+"/breadcrumbs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	path := decode[[]model.Group](t, w)
	require.Len(t, path, 3)
	assert.Equal(t, a.ID, path[0].ID)
	assert.Equal(t, c.ID, path[2].ID)

	w = s.do(t, http.MethodGet, "/api/groups/missing/breadcrumbs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = s.do(t, http.MethodGet, "/api/groups/"+a.ID+"/hierarchy", nil)
	require.Equal(t, http.StatusOK, w.Code)
	h := decode[struct {
		AdjacencyList map[string][]string    `json:"adjacencyList"`
		Dict          map[string]model.Group `json:"dict"`
	}](t, w)
	assert.Len(t, h.Dict, 3)
	assert.Equal(t, []string{b.ID}, h.AdjacencyList[a.ID])
	assert.Equal(t, []string{c.ID}, h.AdjacencyList[b.ID])
	assert.Equal(t, []string{}, h.AdjacencyList[c.ID])

	w = s.do(t, http.MethodPost, "/api/groups/"+a.ID+"/move", gin.H{"parentId": c.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	errResp := decode[ErrResponse](t, w)
	assert.Equal(t, CodeInvalidOperation, errResp.Error.Code)
	assert.Contains(t, errResp.Error.Message, "cycle")

	w = s.do(t, http.MethodDelete, "/api/groups/"+a.ID, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPost, "/api/groups/"+c.ID+"/move", gin.H{"parentId": nil})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[model.Group](t, w).ParentID)

	w = s.do(t, http.MethodGet, "/api/groups/roots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Group](t, w), 2)

	w = s.do(t, http.MethodDelete, "/api/groups/"+c.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/groups/"+c.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, decode[ErrResponse](t, w).Error.Code)

	w = s.do(t, http.MethodGet, "/api/groups/"+b.ID+"/history?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	events := decode[[]model.HistoryEvent](t, w)
	require.Len(t, events, 1)
	assert.Equal(t, model.ActionCreateGroup, events[0].Action)
	assert.Equal(t, s.actor.ID, events[0].ActingUserID)

	w = s.do(t, http.MethodGet, "/api/groups/"+b.ID+"/history?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_EditAndArchiveGroup(t *testing.T) {
	s := setupTestServer(t)
	g := s.createGroup(t, "Old", nil)

	w := s.do(t, http.MethodPatch, "/api/groups/"+g.ID, gin.H{"name": "New", "description": "about"})
	require.Equal(t, http.StatusOK, w.Code)
	edited := decode[model.Group](t, w)
	assert.Equal(t, "New", edited.Name)
	require.NotNil(t, edited.Description)
	assert.Equal(t, "about", *edited.Description)

	w = s.do(t, http.MethodPost, "/api/groups/"+g.ID+"/archive", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "archived flag is required")

	w = s.do(t, http.MethodPost, "/api/groups/"+g.ID+"/archive", gin.H{"archived": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[model.Group](t, w).Archived)

	w = s.do(t, http.MethodPost, "/api/groups", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeBadRequest, decode[ErrResponse](t, w).Error.Code)
}

func TestRouter_MembershipBudget(t *testing.T) {
	s := setupTestServer(t)
	g1 := s.createGroup(t, "G1", nil)
	g2 := s.createGroup(t, "G2", nil)

	w := s.do(t, http.MethodPost, "/api/memberships", gin.H{"userId": s.actor.ID, "groupId": g1.ID, "percentage": 70})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	m1 := decode[model.Membership](t, w)

	w = s.do(t, http.MethodPost, "/api/memberships", gin.H{"userId": s.actor.ID, "groupId": g2.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	m2 := decode[model.Membership](t, w)

	w = s.do(t, http.MethodPatch, "/api/memberships/"+m2.ID+"/percentage", gin.H{"percentage": 40})
	require.Equal(t, http.StatusConflict, w.Code)
	errResp := decode[ErrResponse](t, w)
	assert.Equal(t, CodeBudgetExceeded, errResp.Error.Code)
	require.NotNil(t, errResp.Error.Available)
	assert.Equal(t, 30, *errResp.Error.Available)

	w = s.do(t, http.MethodPatch, "/api/memberships/"+m2.ID+"/percentage", gin.H{"percentage": 30})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPatch, "/api/memberships/"+m2.ID+"/percentage", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/users/"+s.actor.ID+"/available-percentage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"`+s.actor.ID+`","available":0}`, w.Body.String())

	w = s.do(t, http.MethodDelete, "/api/memberships/"+m1.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPatch, "/api/memberships/"+m1.ID+"/percentage", gin.H{"percentage": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "archived membership cannot be updated")

	w = s.do(t, http.MethodPost, "/api/memberships/"+m2.ID+"/roles", gin.H{"name": "lead"})
	require.Equal(t, http.StatusOK, w.Code)
	withRole := decode[model.Membership](t, w)
	require.Len(t, withRole.Roles, 1)

	w = s.do(t, http.MethodDelete, "/api/memberships/"+m2.ID+"/roles/"+withRole.Roles[0].ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/groups/"+g2.ID+"/members", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Membership](t, w), 1)

	w = s.do(t, http.MethodGet, "/api/users/"+s.actor.ID+"/memberships?includeArchived=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Membership](t, w), 2)

	w = s.do(t, http.MethodGet, "/api/users/"+s.actor.ID+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[[]model.HistoryEvent](t, w))
}

func TestRouter_Vacancies(t *testing.T) {
	s := setupTestServer(t)
	g := s.createGroup(t, "Hiring", nil)

	w := s.do(t, http.MethodPost, "/api/vacancies", gin.H{"name": "Go dev", "groupId": g.ID, "hiringManagerId": s.actor.ID, "hrId": s.actor.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	v := decode[model.Vacancy](t, w)
	assert.Equal(t, model.VacancyActive, v.Status)
	assert.NotNil(t, v.ActiveSince)

	w = s.do(t, http.MethodPatch, "/api/vacancies/"+v.ID, gin.H{"status": "CLOSED"})
	require.Equal(t, http.StatusOK, w.Code)
	closed := decode[model.Vacancy](t, w)
	assert.Nil(t, closed.ActiveSince)
	assert.NotNil(t, closed.ClosedAt)

	w = s.do(t, http.MethodPatch, "/api/vacancies/"+v.ID, gin.H{"status": "PAUSED"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodGet, "/api/vacancies/"+v.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/vacancies/"+v.ID+"/archive", gin.H{"archived": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/groups/"+g.ID+"/vacancies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]model.Vacancy](t, w))

	w = s.do(t, http.MethodGet, "/api/groups/"+g.ID+"/vacancies?includeArchived=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Vacancy](t, w), 1)
}

func TestRouter_UserRequests(t *testing.T) {
	s := setupTestServer(t)
	g := s.createGroup(t, "Team", nil)

	w := s.do(t, http.MethodPost, "/api/user-requests", gin.H{"name": "Newbie", "email": "not-an-email", "groupId": g.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/user-requests", gin.H{"name": "Newbie", "email": "newbie@example.com", "groupId": g.ID, "percentage": 50})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	req := decode[model.UserCreationRequest](t, w)

	w = s.do(t, http.MethodGet, "/api/user-requests?status=PENDING", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.UserCreationRequest](t, w), 1)

	w = s.do(t, http.MethodGet, "/api/user-requests?status=MAYBE", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/user-requests/"+req.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	approved := decode[model.UserCreationRequest](t, w)
	require.NotNil(t, approved.CreatedUserID)

	w = s.do(t, http.MethodGet, "/api/users/"+*approved.CreatedUserID+"/available-percentage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"`+*approved.CreatedUserID+`","available":50}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/user-requests/"+req.ID+"/deny", gin.H{"comment": "too late"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRouter_HistoryFeed(t *testing.T) {
	s := setupTestServer(t)
	g := s.createGroup(t, "Watched", nil)

	server := httptest.NewServer(s.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/history/ws?groupId=" + g.ID + "&token=" + s.token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.ConnectedClients() == 1 }, time.Second, 5*time.Millisecond)

	w := s.do(t, http.MethodPatch, "/api/groups/"+g.ID, gin.H{"name": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env internalws.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.NotNil(t, env.Event)
	assert.Equal(t, model.ActionEditGroup, env.Event.Action)
	assert.Equal(t, "Renamed", env.Event.After["name"])
	assert.Equal(t, "Watched", env.Event.Before["name"])
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "budget", err: &service.BudgetExceededError{Available: 5, Requested: 10}, status: http.StatusConflict, code: CodeBudgetExceeded},
		{name: "not found", err: service.ErrNotFound, status: http.StatusNotFound, code: CodeNotFound},
		{name: "invalid", err: service.ErrInvalidOperation, status: http.StatusUnprocessableEntity, code: CodeInvalidOperation},
		{name: "other", err: assert.AnError, status: http.StatusInternalServerError, code: CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, apiErr := MapError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}
