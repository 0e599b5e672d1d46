package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"robotrelay/internal/core/domain"
	"robotrelay/internal/core/ports"
	"robotrelay/internal/core/services"
	"robotrelay/internal/infrastructure/middleware"
	"robotrelay/internal/infrastructure/registry"
	"robotrelay/internal/infrastructure/relay"
)

type fakeConn struct {
	sent   [][]byte
	closed bool
}

func (f *fakeConn) Send(payload []byte) error {
	f.sent = append(f.sent, payload)
	return nil
}
func (f *fakeConn) Open() bool   { return !f.closed }
func (f *fakeConn) Close() error { f.closed = true; return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *registry.MemoryRegistry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := registry.NewMemoryRegistry()
	log := zap.NewNop().Sugar()
	ws := relay.NewWebSocketServer(reg, ports.NopEvents{}, nil, log)
	t.Cleanup(ws.Shutdown)

	handler := NewRelayHandler(reg, ws, ports.NopEvents{}, nil, "", log)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(log))
	handler.SetupRoutes(router)
	return router, reg
}

func postCommand(router *gin.Engine, body string) *httptest.ResponseRecorder {
	form := url.Values{}
	if body != "" {
		form.Set("Body", body)
	}
	form.Set("From", "whatsapp:+15551234567")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	return w
}

func TestBanner(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/robot")
	assert.Contains(t, w.Body.String(), "/unity")
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestStatus_ReportsRegistrySnapshot(t *testing.T) {
	router, reg := newTestRouter(t)
	reg.Register(domain.RoleRobot, "Robot_01", &fakeConn{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var status domain.RelayStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, []domain.RobotID{"Robot_01"}, status.RobotIDs)
	assert.Empty(t, status.ActivePairs)
}

func TestImage_NotFoundBeforeFirstFrame(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/image", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No image received yet", w.Body.String())
}

func TestImage_ServesLatestFrame(t *testing.T) {
	router, reg := newTestRouter(t)
	frame := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}
	reg.UpdateImage(frame)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/image", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, frame, w.Body.Bytes())
}

func TestWhatsApp_MissingBodyRejected(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postCommand(router, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_INPUT")
}

func TestWhatsApp_LeftNudgeForwardsTrajectory(t *testing.T) {
	router, reg := newTestRouter(t)

	conn := &fakeConn{}
	reg.Register(domain.RoleRobot, "Robot_01", conn)
	reg.UpdateJoints(domain.JointVector{0.1, 0, 0, 0, 0, 0})

	w := postCommand(router, "Left")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Turning Left")

	require.Len(t, conn.sent, 1)
	var env struct {
		Topic string `json:"topic"`
		Msg   struct {
			Points []struct {
				Positions []float64 `json:"positions"`
			} `json:"points"`
		} `json:"msg"`
	}
	require.NoError(t, json.Unmarshal(conn.sent[0], &env))
	require.Equal(t, domain.TrajectoryTopic, env.Topic)
	require.Len(t, env.Msg.Points, 1)
	require.Len(t, env.Msg.Points[0].Positions, 6)
	assert.InDelta(t, 0.3, env.Msg.Points[0].Positions[0], 1e-9)
}

func TestWhatsApp_NeverConnectedHomeFails(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postCommand(router, "home")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Command Failed: Robot is not connected")
	assert.NotContains(t, w.Body.String(), "HOME position")
	assert.NotContains(t, w.Body.String(), "<Media>")
}

func TestWhatsApp_PhotoIncludesMediaURL(t *testing.T) {
	router, reg := newTestRouter(t)

	conn := &fakeConn{}
	reg.Register(domain.RoleRobot, "Robot_01", conn)
	reg.UpdateImage([]byte{0xFF, 0xD8, 0x01})

	w := postCommand(router, "photo")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Here is what I see!")
	assert.Contains(t, w.Body.String(), "<Media>"+services.DefaultPublicBaseURL+"/image</Media>")
	assert.Empty(t, conn.sent)
}

func TestWhatsApp_StatusReportsConnectivity(t *testing.T) {
	router, reg := newTestRouter(t)

	w := postCommand(router, "status")
	assert.Contains(t, w.Body.String(), "System Offline")

	reg.Register(domain.RoleRobot, "Robot_01", &fakeConn{})
	w = postCommand(router, "status")
	assert.Contains(t, w.Body.String(), "System Online")
}

func TestWhatsApp_RespondsWithTwiML(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postCommand(router, "help")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "xml")
	assert.True(t, strings.HasPrefix(w.Body.String(), `<?xml version="1.0" encoding="UTF-8"?>`),
		"response must open with the XML declaration")
	assert.True(t, strings.Contains(w.Body.String(), "<Response>"))
	assert.True(t, strings.Contains(w.Body.String(), "<Message>"))
	assert.Contains(t, w.Body.String(), "Robot Features")
}
