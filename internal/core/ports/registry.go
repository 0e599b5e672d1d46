package ports

import (
	"robotrelay/internal/core/domain"
)

// Conn is one live transport handle held by the registry. Implementations
// must serialize concurrent Send calls themselves and must bound each write
// by the transport's own deadline; the registry never adds one.
type Conn interface {
	Send(payload []byte) error
	Open() bool
	Close() error
}

// PeerTransport is an optional low-latency delivery path (a WebRTC-style
// data channel). When one is registered for an identity, operator-bound
// sends prefer it over the plain WebSocket handle.
type PeerTransport interface {
	Send(payload []byte) error
	Open() bool
}

// Registry is the in-memory directory of active endpoints and the telemetry
// caches. All methods are safe for concurrent use; a stalled send on one
// identity must never block registry access for another.
type Registry interface {
	Register(role domain.Role, id domain.RobotID, conn Conn)
	// Unregister deletes the mapping only if conn is still the registered
	// handle, so a stale handler's cleanup cannot evict a replacement.
	Unregister(role domain.Role, id domain.RobotID, conn Conn)

	IsConnected(id domain.RobotID) bool
	FirstConnectedRobotID() (domain.RobotID, bool)

	UpdateImage(frame []byte)
	LatestImage() []byte

	UpdateJoints(joints domain.JointVector)
	CurrentJoints() domain.JointVector

	SendToRobot(id domain.RobotID, payload []byte) error
	SendToOperator(id domain.RobotID, payload []byte) error

	SetPeerTransport(id domain.RobotID, transport PeerTransport)
	RemovePeerTransport(id domain.RobotID)

	Status() domain.RelayStatus
}
