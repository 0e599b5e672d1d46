package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exposes relay counters. All methods are safe on a nil
// receiver so components can run without metrics in tests.
type PrometheusCollector struct {
	robotsConnected    prometheus.Gauge
	operatorsConnected prometheus.Gauge

	messagesForwarded *prometheus.CounterVec
	framesTotal       prometheus.Counter
	jointUpdates      prometheus.Counter
	heartbeats        prometheus.Counter
	commandsTotal     *prometheus.CounterVec

	cameraFPS        prometheus.Gauge
	heartbeatLatency prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		robotsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "robotrelay_robots_connected",
			Help: "Number of robot-role connections currently registered",
		}),

		operatorsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "robotrelay_operators_connected",
			Help: "Number of operator-role connections currently registered",
		}),

		messagesForwarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "robotrelay_messages_forwarded_total",
			Help: "Messages forwarded between the robot and operator sides",
		}, []string{"direction"}),

		framesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "robotrelay_camera_frames_total",
			Help: "Camera frames intercepted and cached",
		}),

		jointUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "robotrelay_joint_updates_total",
			Help: "Joint-state messages intercepted and cached",
		}),

		heartbeats: promauto.NewCounter(prometheus.CounterOpts{
			Name: "robotrelay_heartbeats_answered_total",
			Help: "Heartbeat pings answered on the robot ingress",
		}),

		commandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "robotrelay_chat_commands_total",
			Help: "Chat commands processed by the command endpoint",
		}, []string{"result"}),

		cameraFPS: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "robotrelay_camera_fps",
			Help: "Camera frames received within the last full second",
		}),

		heartbeatLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "robotrelay_heartbeat_latency_seconds",
			Help:    "Round-trip latency of bridge heartbeats",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

func (p *PrometheusCollector) RobotConnected() {
	if p == nil {
		return
	}
	p.robotsConnected.Inc()
}

func (p *PrometheusCollector) RobotDisconnected() {
	if p == nil {
		return
	}
	p.robotsConnected.Dec()
}

func (p *PrometheusCollector) OperatorConnected() {
	if p == nil {
		return
	}
	p.operatorsConnected.Inc()
}

func (p *PrometheusCollector) OperatorDisconnected() {
	if p == nil {
		return
	}
	p.operatorsConnected.Dec()
}

func (p *PrometheusCollector) MessageForwarded(direction string) {
	if p == nil {
		return
	}
	p.messagesForwarded.WithLabelValues(direction).Inc()
}

func (p *PrometheusCollector) FrameReceived() {
	if p == nil {
		return
	}
	p.framesTotal.Inc()
}

func (p *PrometheusCollector) JointsUpdated() {
	if p == nil {
		return
	}
	p.jointUpdates.Inc()
}

func (p *PrometheusCollector) HeartbeatAnswered() {
	if p == nil {
		return
	}
	p.heartbeats.Inc()
}

func (p *PrometheusCollector) CommandProcessed(result string) {
	if p == nil {
		return
	}
	p.commandsTotal.WithLabelValues(result).Inc()
}

func (p *PrometheusCollector) SetCameraFPS(fps int) {
	if p == nil {
		return
	}
	p.cameraFPS.Set(float64(fps))
}

func (p *PrometheusCollector) ObserveHeartbeatLatency(d time.Duration) {
	if p == nil {
		return
	}
	p.heartbeatLatency.Observe(d.Seconds())
}
