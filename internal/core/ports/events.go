package ports

import "robotrelay/internal/core/domain"

// EventSink is the notification surface the core writes to and the
// (out-of-scope) presentation layer reads from. Implementations must not
// block: sinks are called from connection hot paths.
type EventSink interface {
	ConnectivityChanged(id domain.RobotID, connected bool)
	JointsReceived(joints domain.JointVector)
	ImageReceived(frame []byte)
	ImageStats(fps, total int)
	OperatorMessage(id domain.RobotID, raw []byte)
	ChatLog(entry string)
}

// NopEvents discards every notification.
type NopEvents struct{}

func (NopEvents) ConnectivityChanged(domain.RobotID, bool) {}
func (NopEvents) JointsReceived(domain.JointVector) {}
func (NopEvents) ImageReceived([]byte) {}
func (NopEvents) ImageStats(int, int) {}
func (NopEvents) OperatorMessage(domain.RobotID, []byte) {}
func (NopEvents) ChatLog(string) {}
