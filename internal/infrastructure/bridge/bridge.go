package bridge

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"robotrelay/internal/core/domain"
	"robotrelay/internal/core/ports"
	"robotrelay/internal/infrastructure/monitoring"
	"robotrelay/pkg/retry"
)

// State describes where a bridge link is in its connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribing
	StateStreaming
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	default:
		return "disconnected"
	}
}

// Config carries everything the bridge needs to run both links.
type Config struct {
	RobotID  domain.RobotID
	RobotURL string // ws://<robot-ip>:9090
	RelayURL string // ws://<hub>/robot

	TelemetryInterval time.Duration // joint state throttle
	GripperInterval   time.Duration // tool state throttle
	StateInterval     time.Duration // hardware status throttle
	HeartbeatInterval time.Duration
	RetryDelay        time.Duration
}

// Bridge runs on the robot's network and pumps traffic between the robot's
// RTP endpoint and the relay hub. Each side is a perpetual reconnect loop
// with a fixed delay; the loops share nothing but the two link handles, so
// either side can fail and recover without tearing down the whole process.
type Bridge struct {
	cfg     Config
	events  ports.EventSink
	metrics *monitoring.PrometheusCollector
	logger  *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	robotState atomic.Int32
	hubState   atomic.Int32

	mu        sync.Mutex
	robotLink *link
	hubLink   *link

	pingSentAt  atomic.Int64 // unix nanos of the ping awaiting a pong, 0 = none
	lastLatency atomic.Int64 // nanos
}

func New(cfg Config, events ports.EventSink, metrics *monitoring.PrometheusCollector, logger *zap.SugaredLogger) *Bridge {
	if events == nil {
		events = ports.NopEvents{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		cfg:     cfg,
		events:  events,
		metrics: metrics,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Run starts both reconnect loops and returns immediately.
func (b *Bridge) Run() {
	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		retry.Forever(b.ctx, b.cfg.RetryDelay, b.runRobotLoop)
	}()
	go func() {
		defer b.wg.Done()
		retry.Forever(b.ctx, b.cfg.RetryDelay, b.runHubLoop)
	}()
}

// Stop cancels both loops and waits for them to exit. Open sockets are
// closed with a normal-closure frame.
func (b *Bridge) Stop() {
	b.robotState.Store(int32(StateClosing))
	b.hubState.Store(int32(StateClosing))
	b.cancel()

	b.mu.Lock()
	if b.robotLink != nil {
		_ = b.robotLink.Close()
	}
	if b.hubLink != nil {
		_ = b.hubLink.Close()
	}
	b.mu.Unlock()

	b.wg.Wait()
	b.robotState.Store(int32(StateDisconnected))
	b.hubState.Store(int32(StateDisconnected))
}

// RobotState reports the robot-facing link's lifecycle state.
func (b *Bridge) RobotState() State { return State(b.robotState.Load()) }

// HubState reports the hub-facing link's lifecycle state.
func (b *Bridge) HubState() State { return State(b.hubState.Load()) }

// IsConnected reports whether the robot-facing link is streaming.
func (b *Bridge) IsConnected() bool { return b.RobotState() == StateStreaming }

// LastLatency returns the most recent heartbeat round-trip time, or zero if
// no pong has arrived yet.
func (b *Bridge) LastLatency() time.Duration {
	return time.Duration(b.lastLatency.Load())
}

// runRobotLoop is one attempt of the robot-facing connection: dial,
// subscribe, then forward everything the robot publishes to the hub link.
// Any failure tears down the hub link too so the hub sees a fresh
// registration on the next cycle.
func (b *Bridge) runRobotLoop(ctx context.Context) error {
	b.setRobotState(StateConnecting)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.cfg.RobotURL, nil)
	if err != nil {
		b.setRobotState(StateDisconnected)
		b.logger.Warnw("robot dial failed", "url", b.cfg.RobotURL, "error", err)
		return err
	}

	l := newLink(conn)
	b.mu.Lock()
	b.robotLink = l
	b.mu.Unlock()

	b.logger.Infow("robot connected", "url", b.cfg.RobotURL)
	b.events.ConnectivityChanged(b.cfg.RobotID, true)

	defer func() {
		_ = l.Close()
		b.mu.Lock()
		if b.robotLink == l {
			b.robotLink = nil
		}
		hub := b.hubLink
		b.mu.Unlock()

		b.events.ConnectivityChanged(b.cfg.RobotID, false)
		// Losing the robot invalidates the hub session: force it to
		// re-register rather than keep relaying for a dead robot.
		if hub != nil {
			_ = hub.Close()
		}
		b.setRobotState(StateDisconnected)
	}()

	b.setRobotState(StateSubscribing)
	if err := b.subscribe(l); err != nil {
		b.logger.Warnw("subscription failed", "error", err)
		return err
	}

	b.setRobotState(StateStreaming)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				b.logger.Warnw("robot read failed", "error", err)
			}
			return err
		}
		b.forwardToHub(raw)
	}
}

// subscribe (re-)issues the four topic subscriptions. Issued on every
// reconnect: the robot's rosbridge forgets subscribers when they drop.
func (b *Bridge) subscribe(l *link) error {
	subs := [][]byte{
		domain.SubscribeRequest(domain.TopicJointStates, "sensor_msgs/JointState", b.cfg.TelemetryInterval),
		domain.SubscribeRequest(domain.TopicCompressedVideo, "sensor_msgs/CompressedImage", 0),
		domain.SubscribeRequest(domain.TopicToolState, "niryo_robot_tools/ToolCommand", b.cfg.GripperInterval),
		domain.SubscribeRequest(domain.TopicHardwareStatus, "niryo_robot_msgs/HardwareStatus", b.cfg.StateInterval),
	}
	for _, sub := range subs {
		if err := l.Send(sub); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) forwardToHub(raw []byte) {
	b.mu.Lock()
	hub := b.hubLink
	b.mu.Unlock()

	if hub == nil || !hub.Open() {
		return
	}
	if err := hub.Send(raw); err != nil {
		b.logger.Warnw("hub send failed", "error", err)
		return
	}
	b.metrics.MessageForwarded("robot_to_hub")
}

// runHubLoop is one attempt of the hub-facing connection. It connects
// unconditionally: if the robot side is down, the robot loop's teardown
// closes this link and the next cycle registers afresh.
func (b *Bridge) runHubLoop(ctx context.Context) error {
	b.setHubState(StateConnecting)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.hubURL(), nil)
	if err != nil {
		b.setHubState(StateDisconnected)
		b.logger.Warnw("hub dial failed", "url", b.cfg.RelayURL, "error", err)
		return err
	}

	l := newLink(conn)
	b.mu.Lock()
	b.hubLink = l
	b.mu.Unlock()

	defer func() {
		_ = l.Close()
		b.mu.Lock()
		if b.hubLink == l {
			b.hubLink = nil
		}
		b.mu.Unlock()
		b.setHubState(StateDisconnected)
	}()

	if err := l.Send(domain.RegisterMessage(b.cfg.RobotID, time.Now())); err != nil {
		b.logger.Warnw("hub registration failed", "error", err)
		return err
	}
	b.logger.Infow("hub connected", "robot_id", b.cfg.RobotID)
	b.setHubState(StateStreaming)

	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go b.heartbeat(l, heartbeatDone)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				b.logger.Warnw("hub read failed", "error", err)
			}
			return err
		}

		if domain.IsPong(raw) {
			if sentAt := b.pingSentAt.Swap(0); sentAt != 0 {
				latency := time.Since(time.Unix(0, sentAt))
				b.lastLatency.Store(int64(latency))
				b.metrics.ObserveHeartbeatLatency(latency)
			}
			continue
		}

		b.forwardToRobot(raw)
	}
}

// heartbeat pings the hub on a fixed cadence. Each ping restarts the
// round-trip sample, so at most one measurement is in flight.
func (b *Bridge) heartbeat(l *link, done <-chan struct{}) {
	ticker := time.NewTicker(b.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.pingSentAt.Store(time.Now().UnixNano())
			if err := l.Send([]byte(`{"op":"ping"}`)); err != nil {
				return
			}
		}
	}
}

func (b *Bridge) forwardToRobot(raw []byte) {
	b.mu.Lock()
	robot := b.robotLink
	b.mu.Unlock()

	if robot == nil || !robot.Open() {
		b.logger.Warnw("dropping hub command, robot link down")
		return
	}
	if err := robot.Send(raw); err != nil {
		b.logger.Warnw("robot send failed", "error", err)
		return
	}
	b.metrics.MessageForwarded("hub_to_robot")
}

// hubURL appends the robotId query parameter to the configured relay URL.
func (b *Bridge) hubURL() string {
	u, err := url.Parse(b.cfg.RelayURL)
	if err != nil {
		return b.cfg.RelayURL
	}
	q := u.Query()
	q.Set("robotId", string(b.cfg.RobotID))
	u.RawQuery = q.Encode()
	return u.String()
}

func (b *Bridge) setRobotState(s State) {
	if b.RobotState() == StateClosing && s != StateDisconnected {
		return
	}
	b.robotState.Store(int32(s))
}

func (b *Bridge) setHubState(s State) {
	if b.HubState() == StateClosing && s != StateDisconnected {
		return
	}
	b.hubState.Store(int32(s))
}
