package relay

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"robotrelay/internal/core/domain"
	"robotrelay/internal/core/ports"
	"robotrelay/internal/core/services"
	"robotrelay/internal/infrastructure/monitoring"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // private relay, all origins accepted
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

var (
	jointStatesMarker = []byte("joint_states")
	videoTopicMarker  = []byte("compressed_video_stream")
)

// WebSocketServer is the relay hub's transport layer: it accepts robot-role
// and operator-role connections, runs one forwarding loop per connection,
// and intercepts heartbeat, joint-state and camera traffic on the robot
// side. Everything it does not recognize is forwarded byte-for-byte.
type WebSocketServer struct {
	registry ports.Registry
	events   ports.EventSink
	metrics  *monitoring.PrometheusCollector
	stats    *services.FrameStats

	writeTimeout time.Duration

	mu    sync.Mutex
	conns map[*wsConn]struct{}

	logger *zap.SugaredLogger
}

func NewWebSocketServer(registry ports.Registry, events ports.EventSink, metrics *monitoring.PrometheusCollector, logger *zap.SugaredLogger) *WebSocketServer {
	return &WebSocketServer{
		registry:     registry,
		events:       events,
		metrics:      metrics,
		stats:        services.NewFrameStats(time.Now()),
		writeTimeout: 10 * time.Second,
		conns:        make(map[*wsConn]struct{}),
		logger:       logger,
	}
}

// HandleRobot serves the robot-role ingress. The identity comes from the
// robotId query parameter and is generated when absent.
func (s *WebSocketServer) HandleRobot(w http.ResponseWriter, r *http.Request) {
	robotID := domain.RobotID(r.URL.Query().Get("robotId"))
	if robotID == "" {
		robotID = domain.NewRobotID()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	wc := s.track(conn)
	defer s.drop(wc)

	s.registry.Register(domain.RoleRobot, robotID, wc)
	s.metrics.RobotConnected()
	s.events.ConnectivityChanged(robotID, true)
	s.logger.Infow("bridge client connected", "robot_id", robotID)

	defer func() {
		s.registry.Unregister(domain.RoleRobot, robotID, wc)
		s.metrics.RobotDisconnected()
		s.events.ConnectivityChanged(robotID, false)
		s.logger.Infow("robot disconnected", "robot_id", robotID)
	}()

	for {
		// ReadMessage reassembles fragmented frames into one full message.
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("robot read failed", "robot_id", robotID, "error", err)
			}
			return
		}

		// Heartbeat is link-local: answer in place, never forward.
		if domain.IsPing(raw) {
			if err := wc.Send(domain.PongPayload); err != nil {
				s.logger.Infow("pong write failed", "robot_id", robotID, "error", err)
				return
			}
			s.metrics.HeartbeatAnswered()
			continue
		}

		s.intercept(raw)

		// Forward the raw message unmodified to the paired operator.
		if err := s.registry.SendToOperator(robotID, raw); err != nil {
			s.logger.Debugw("no operator delivery", "robot_id", robotID, "error", err)
		} else {
			s.metrics.MessageForwarded("to_operator")
		}
	}
}

// HandleOperator serves the operator-role ingress. Unlike the robot side the
// identity is mandatory: there is nothing useful an anonymous operator could
// be paired with.
func (s *WebSocketServer) HandleOperator(w http.ResponseWriter, r *http.Request) {
	robotID := domain.RobotID(r.URL.Query().Get("robotId"))
	if robotID == "" {
		http.Error(w, "robotId parameter required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	wc := s.track(conn)
	defer s.drop(wc)

	s.registry.Register(domain.RoleOperator, robotID, wc)
	s.metrics.OperatorConnected()
	s.logger.Infow("operator connected", "robot_id", robotID)

	defer func() {
		s.registry.Unregister(domain.RoleOperator, robotID, wc)
		s.metrics.OperatorDisconnected()
		s.logger.Infow("operator disconnected", "robot_id", robotID)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("operator read failed", "robot_id", robotID, "error", err)
			}
			return
		}

		s.events.OperatorMessage(robotID, raw)

		if err := s.registry.SendToRobot(robotID, raw); err != nil {
			s.logger.Debugw("no robot delivery", "robot_id", robotID, "error", err)
		} else {
			s.metrics.MessageForwarded("to_robot")
		}
	}
}

// intercept extracts telemetry from recognized topics. Malformed payloads
// are skipped silently; the caller forwards the raw bytes either way.
func (s *WebSocketServer) intercept(raw []byte) {
	if bytes.Contains(raw, jointStatesMarker) {
		if joints, ok := domain.DecodeJointPositions(raw); ok {
			s.registry.UpdateJoints(joints)
			s.metrics.JointsUpdated()
			s.events.JointsReceived(joints)
		}
	}

	if containsVideoTopic(raw) {
		if frame, ok := domain.ExtractImageData(raw); ok {
			if s.stats.Total() == 0 {
				s.logger.Infow("first camera frame received", "bytes", len(frame))
			}
			s.registry.UpdateImage(frame)
			s.metrics.FrameReceived()
			s.events.ImageReceived(frame)

			if fps, total, tick := s.stats.Record(time.Now()); tick {
				s.metrics.SetCameraFPS(fps)
				s.events.ImageStats(fps, total)
			}
		}
	}
}

// containsVideoTopic matches the camera topic case-insensitively, trying the
// canonical lower-case spelling first to keep the hot path cheap.
func containsVideoTopic(raw []byte) bool {
	if bytes.Contains(raw, videoTopicMarker) {
		return true
	}
	return bytes.Contains(bytes.ToLower(raw), videoTopicMarker)
}

// Shutdown closes every open connection with a normal-closure frame; the
// per-connection loops observe the close and unregister themselves.
func (s *WebSocketServer) Shutdown() {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

func (s *WebSocketServer) track(conn *websocket.Conn) *wsConn {
	wc := newWSConn(conn, s.writeTimeout)
	s.mu.Lock()
	s.conns[wc] = struct{}{}
	s.mu.Unlock()
	return wc
}

func (s *WebSocketServer) drop(wc *wsConn) {
	s.mu.Lock()
	delete(s.conns, wc)
	s.mu.Unlock()
	_ = wc.Close()
}
