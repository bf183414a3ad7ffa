package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/debate-tournament/brackets"
	"github.com/Dosada05/debate-tournament/db"
	"github.com/Dosada05/debate-tournament/handlers"
	"github.com/Dosada05/debate-tournament/judges"
	"github.com/Dosada05/debate-tournament/middleware"
	"github.com/Dosada05/debate-tournament/models"
	"github.com/Dosada05/debate-tournament/repositories"
	"github.com/Dosada05/debate-tournament/roster"
	"github.com/Dosada05/debate-tournament/rules"
	"github.com/Dosada05/debate-tournament/services"
	"github.com/Dosada05/debate-tournament/storage"
)

const rosterYAML = `
room_total: 2
round_num: 2
judge_num_per_room: 2
teams:
  - {name: Alpha, school: North, members: [{name: Ann, gender: F}, {name: Bo, gender: M}], banned_questions: [8]}
  - {name: Beta, school: South, members: [{name: Cy, gender: M}, {name: Di, gender: F}]}
  - {name: Gamma, school: East, members: [{name: Ed, gender: M}]}
  - {name: Delta, school: West, members: [{name: Fay, gender: F}]}
  - {name: Epsilon, school: North, members: [{name: Gus, gender: M}]}
judges:
  Neutral: [J1, J2, J3, J4]
  Other: [J5]
problem_set: {1: a, 2: b, 3: c, 4: d, 5: e, 6: f, 7: g, 8: h, 9: i, 10: j}
`

var secret = []byte("routes-test-secret")

type testServer struct {
	*httptest.Server
	adminToken string
	hub        *brackets.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ros, err := roster.Parse([]byte(rosterYAML))
	require.NoError(t, err)

	conn, err := db.Connect(db.DriverSQLite, filepath.Join(t.TempDir(), "routes.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn))

	uploader, err := storage.NewLocalUploader(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := brackets.NewHub(logger)
	go hub.Run(ctx)

	recordRepo := repositories.NewRecordRepository(conn)
	scheduleService := services.NewScheduleService(services.ScheduleServiceDeps{
		Roster:       ros,
		Allocator:    judges.NewAllocator(100, logger),
		ScheduleRepo: repositories.NewScheduleRepository(conn),
		RecordRepo:   recordRepo,
		Uploader:     uploader,
		Notifier:     hub,
		Rand:         rand.New(rand.NewSource(5)),
		Logger:       logger,
	})
	rule := rules.New(rules.CUPTType, rules.Options{}, logger)
	matchService := services.NewMatchService(ros, recordRepo, rule, models.RoundNormal, hub, logger)

	router := chi.NewRouter()
	SetupRoutes(router, Options{JWTSecret: secret},
		handlers.NewScheduleHandler(scheduleService),
		handlers.NewMatchHandler(matchService),
		handlers.NewWebSocketHandler(hub),
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "chief",
		"role": middleware.RoleAdmin,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)

	return &testServer{Server: srv, adminToken: token, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp.StatusCode, decoded
}

func TestSchedule_Lifecycle(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/schedule/pairings", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["error"], "not been generated")

	status, _ = s.do(t, http.MethodPost, "/schedule/regenerate", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = s.do(t, http.MethodPost, "/schedule/regenerate", s.adminToken, nil)
	require.Equal(t, http.StatusCreated, status)
	assert.EqualValues(t, 2, body["rounds"])
	assert.EqualValues(t, 2, body["rooms"])

	status, body = s.do(t, http.MethodGet, "/schedule/pairings", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["pairings"], 2)

	status, body = s.do(t, http.MethodGet, "/schedule/judges", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["judges"], 2)
	assert.NotEmpty(t, body["judge_tier"])

	status, body = s.do(t, http.MethodGet, "/schedule/rounds/1/rooms/2", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["teamDataList"])

	status, _ = s.do(t, http.MethodGet, "/schedule/rounds/3/rooms/1", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(t, http.MethodGet, "/schedule/rounds/x/rooms/1", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRecords_AppendAndQuery(t *testing.T) {
	s := newTestServer(t)

	record := map[string]interface{}{
		"round": 1, "phase": 1, "roomID": 1, "questionID": 3, "masterID": 1,
		"role": "R", "score": 7.5, "weight": 3.0,
	}
	status, _ := s.do(t, http.MethodPost, "/teams/Alpha/records", "", record)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := s.do(t, http.MethodPost, "/teams/Alpha/records", s.adminToken, record)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, body["id"])

	status, _ = s.do(t, http.MethodPost, "/teams/Alpha/records", s.adminToken, record)
	assert.Equal(t, http.StatusConflict, status)

	bad := map[string]interface{}{"round": 1, "questionID": 3, "role": "Z"}
	status, _ = s.do(t, http.MethodPost, "/teams/Alpha/records", s.adminToken, bad)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	unknownField := map[string]interface{}{"round": 1, "colour": "red"}
	status, _ = s.do(t, http.MethodPost, "/teams/Alpha/records", s.adminToken, unknownField)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/teams/Omega/records", s.adminToken, record)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = s.do(t, http.MethodGet, "/teams/alpha/records", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["records"], 1)

	status, body = s.do(t, http.MethodGet, "/teams/Alpha/players?round=1", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["players"], 2)

	status, _ = s.do(t, http.MethodGet, "/teams/Alpha/players", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMatches_QuestionsScoreWeight(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/matches/questions", "", map[string]interface{}{
		"reporter": "Alpha", "opponent": "Beta", "round": 1,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["question_ids"], 10)

	status, _ = s.do(t, http.MethodPost, "/matches/questions", "", map[string]interface{}{"reporter": "Alpha"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodPost, "/matches/score", "", map[string]interface{}{
		"scores": []float64{5, 6, 7, 8, 9},
	})
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 7.0, body["score"], 1e-9)

	status, _ = s.do(t, http.MethodPost, "/matches/score", "", map[string]interface{}{"scores": []float64{}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodGet, "/teams/Alpha/weight?side=Reporter&refuse=true", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 3.0, body["weight"], 1e-9)

	status, body = s.do(t, http.MethodGet, "/teams/Alpha/weight?side=Opponent", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 2.0, body["weight"], 1e-9)

	status, _ = s.do(t, http.MethodGet, "/teams/Alpha/weight?side=Observer", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(t, http.MethodGet, "/teams/Alpha/weight?side=Judge", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(t, http.MethodGet, "/teams/Alpha/weight?side=Reporter&refuse=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWebSocket_ReceivesRegeneration(t *testing.T) {
	s := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return s.hub.ClientCount(brackets.ScheduleRoom) == 1
	}, 2*time.Second, 10*time.Millisecond)

	status, _ := s.do(t, http.MethodPost, "/schedule/regenerate", s.adminToken, nil)
	require.Equal(t, http.StatusCreated, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg brackets.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, brackets.EventScheduleRegenerated, msg.Type)
	assert.Equal(t, brackets.ScheduleRoom, msg.RoomID)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusNoContent, status)
}
