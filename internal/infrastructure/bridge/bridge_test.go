package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"robotrelay/internal/core/domain"
)

// fakeEndpoint is a websocket peer standing in for either the robot's RTP
// endpoint or the relay hub. Received frames land on Received; Send writes
// to the most recently accepted connection.
type fakeEndpoint struct {
	srv      *httptest.Server
	Received chan []byte

	mu   sync.Mutex
	conn *websocket.Conn
}

func newFakeEndpoint(t *testing.T) *fakeEndpoint {
	t.Helper()

	f := &fakeEndpoint{Received: make(chan []byte, 64)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			f.Received <- raw
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeEndpoint) URL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeEndpoint) Send(t *testing.T, payload string) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotNil(t, f.conn)
	require.NoError(t, f.conn.WriteMessage(websocket.TextMessage, []byte(payload)))
}

func (f *fakeEndpoint) DropConn() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		f.conn.Close()
	}
}

func (f *fakeEndpoint) expect(t *testing.T) []byte {
	t.Helper()
	select {
	case raw := <-f.Received:
		return raw
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

// recordingEvents collects connectivity transitions.
type recordingEvents struct {
	mu          sync.Mutex
	transitions []bool
}

func (r *recordingEvents) ConnectivityChanged(_ domain.RobotID, connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, connected)
}
func (r *recordingEvents) JointsReceived(domain.JointVector)      {}
func (r *recordingEvents) ImageReceived([]byte)                   {}
func (r *recordingEvents) ImageStats(int, int)                    {}
func (r *recordingEvents) OperatorMessage(domain.RobotID, []byte) {}
func (r *recordingEvents) ChatLog(string)                         {}

func (r *recordingEvents) Transitions() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.transitions))
	copy(out, r.transitions)
	return out
}

func newTestBridge(robot, hub *fakeEndpoint, events *recordingEvents) *Bridge {
	return New(Config{
		RobotID:           "Robot_01",
		RobotURL:          robot.URL(),
		RelayURL:          hub.URL(),
		TelemetryInterval: 100 * time.Millisecond,
		GripperInterval:   time.Second,
		StateInterval:     500 * time.Millisecond,
		HeartbeatInterval: 50 * time.Millisecond,
		RetryDelay:        50 * time.Millisecond,
	}, events, nil, zap.NewNop().Sugar())
}

func TestBridge_SubscribesOnConnect(t *testing.T) {
	robot := newFakeEndpoint(t)
	hub := newFakeEndpoint(t)
	events := &recordingEvents{}

	b := newTestBridge(robot, hub, events)
	b.Run()
	defer b.Stop()

	topics := map[string]int64{}
	for i := 0; i < 4; i++ {
		var sub struct {
			Op           string `json:"op"`
			Topic        string `json:"topic"`
			ThrottleRate int64  `json:"throttle_rate"`
		}
		require.NoError(t, json.Unmarshal(robot.expect(t), &sub))
		assert.Equal(t, "subscribe", sub.Op)
		topics[sub.Topic] = sub.ThrottleRate
	}

	assert.Equal(t, map[string]int64{
		domain.TopicJointStates:     100,
		domain.TopicCompressedVideo: 0,
		domain.TopicToolState:       1000,
		domain.TopicHardwareStatus:  500,
	}, topics)

	assert.Eventually(t, func() bool {
		tr := events.Transitions()
		return len(tr) > 0 && tr[0]
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBridge_RegistersWithHubFirst(t *testing.T) {
	robot := newFakeEndpoint(t)
	hub := newFakeEndpoint(t)

	b := newTestBridge(robot, hub, &recordingEvents{})
	b.Run()
	defer b.Stop()

	var reg struct {
		Type      string `json:"type"`
		RobotID   string `json:"robotId"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(hub.expect(t), &reg))
	assert.Equal(t, "registerRobot", reg.Type)
	assert.Equal(t, "Robot_01", reg.RobotID)
	_, err := time.Parse(time.RFC3339, reg.Timestamp)
	assert.NoError(t, err)
}

func TestBridge_ForwardsRobotTrafficToHub(t *testing.T) {
	robot := newFakeEndpoint(t)
	hub := newFakeEndpoint(t)

	b := newTestBridge(robot, hub, &recordingEvents{})
	b.Run()
	defer b.Stop()

	hub.expect(t) // registration
	for i := 0; i < 4; i++ {
		robot.expect(t) // subscriptions
	}

	msg := `{"op":"publish","topic":"/joint_states","msg":{"position":[1,2,3,4,5,6]}}`
	robot.Send(t, msg)

	for {
		raw := hub.expect(t)
		if domain.IsPing(raw) {
			continue
		}
		assert.Equal(t, msg, string(raw))
		return
	}
}

func TestBridge_ForwardsHubCommandsToRobot(t *testing.T) {
	robot := newFakeEndpoint(t)
	hub := newFakeEndpoint(t)

	b := newTestBridge(robot, hub, &recordingEvents{})
	b.Run()
	defer b.Stop()

	hub.expect(t) // registration
	for i := 0; i < 4; i++ {
		robot.expect(t)
	}

	cmd := string(domain.TrajectoryCommand(domain.JointVector{0.2}))
	hub.Send(t, cmd)
	assert.Equal(t, cmd, string(robot.expect(t)))
}

func TestBridge_HeartbeatMeasuresLatencyAndIsNotForwarded(t *testing.T) {
	robot := newFakeEndpoint(t)
	hub := newFakeEndpoint(t)

	b := newTestBridge(robot, hub, &recordingEvents{})
	b.Run()
	defer b.Stop()

	hub.expect(t) // registration
	for i := 0; i < 4; i++ {
		robot.expect(t)
	}

	assert.True(t, domain.IsPing(hub.expect(t)))
	hub.Send(t, `{"op":"pong"}`)

	assert.Eventually(t, func() bool {
		return b.LastLatency() > 0
	}, 2*time.Second, 10*time.Millisecond)

	// The pong must never reach the robot.
	select {
	case raw := <-robot.Received:
		t.Fatalf("unexpected frame on robot link: %s", raw)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBridge_RobotFailureTearsDownHubLink(t *testing.T) {
	robot := newFakeEndpoint(t)
	hub := newFakeEndpoint(t)
	events := &recordingEvents{}

	b := newTestBridge(robot, hub, events)
	b.Run()
	defer b.Stop()

	hub.expect(t) // first registration
	for i := 0; i < 4; i++ {
		robot.expect(t)
	}

	robot.DropConn()

	// The robot loop must report the loss and force the hub session to
	// re-register on its next cycle.
	assert.Eventually(t, func() bool {
		for _, connected := range events.Transitions() {
			if !connected {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		for {
			select {
			case raw := <-hub.Received:
				if strings.Contains(string(raw), "registerRobot") {
					return true
				}
			default:
				return false
			}
		}
	}, 5*time.Second, 20*time.Millisecond)
}

func TestBridge_ReconnectsAndResubscribes(t *testing.T) {
	robot := newFakeEndpoint(t)
	hub := newFakeEndpoint(t)

	b := newTestBridge(robot, hub, &recordingEvents{})
	b.Run()
	defer b.Stop()

	for i := 0; i < 4; i++ {
		robot.expect(t)
	}

	robot.DropConn()

	// A fresh connection re-issues all four subscriptions.
	for i := 0; i < 4; i++ {
		assert.True(t, strings.Contains(string(robot.expect(t)), `"op":"subscribe"`))
	}
}

func TestBridge_StopTerminatesBothLoops(t *testing.T) {
	robot := newFakeEndpoint(t)
	hub := newFakeEndpoint(t)

	b := newTestBridge(robot, hub, &recordingEvents{})
	b.Run()

	hub.expect(t)
	b.Stop()

	assert.Equal(t, StateDisconnected, b.RobotState())
	assert.Equal(t, StateDisconnected, b.HubState())
	assert.False(t, b.IsConnected())
}

func TestBridge_StatesProgressToStreaming(t *testing.T) {
	robot := newFakeEndpoint(t)
	hub := newFakeEndpoint(t)

	b := newTestBridge(robot, hub, &recordingEvents{})
	b.Run()
	defer b.Stop()

	assert.Eventually(t, func() bool {
		return b.RobotState() == StateStreaming && b.HubState() == StateStreaming && b.IsConnected()
	}, 2*time.Second, 10*time.Millisecond)
}
