package services

import (
	"go.uber.org/zap"

	"robotrelay/internal/core/domain"
)

// LogEvents is an EventSink that writes notifications to the process log.
// The binaries use it where no dashboard is attached; a UI layer would
// substitute its own sink.
type LogEvents struct {
	log *zap.SugaredLogger
}

func NewLogEvents(log *zap.SugaredLogger) *LogEvents {
	return &LogEvents{log: log}
}

func (e *LogEvents) ConnectivityChanged(id domain.RobotID, connected bool) {
	e.log.Infow("robot connectivity changed", "robot_id", id, "connected", connected)
}

func (e *LogEvents) JointsReceived(joints domain.JointVector) {
	e.log.Debugw("joints updated", "joints", joints)
}

func (e *LogEvents) ImageReceived(frame []byte) {
	e.log.Debugw("camera frame received", "bytes", len(frame))
}

func (e *LogEvents) ImageStats(fps, total int) {
	e.log.Infow("camera stream stats", "fps", fps, "total", total)
}

func (e *LogEvents) OperatorMessage(id domain.RobotID, raw []byte) {
	e.log.Debugw("operator message", "robot_id", id, "bytes", len(raw))
}

func (e *LogEvents) ChatLog(entry string) {
	e.log.Infow("chat", "entry", entry)
}
