package registry

import (
	"sync"
	"time"

	"robotrelay/internal/core/domain"
	"robotrelay/internal/core/ports"
)

// MemoryRegistry is the in-process connection directory and telemetry cache.
// Connection maps and the two caches are guarded independently so a stalled
// operator send can never block robot telemetry ingestion, and sends always
// happen outside the registry locks.
type MemoryRegistry struct {
	mu        sync.RWMutex
	robots    map[domain.RobotID]ports.Conn
	operators map[domain.RobotID]ports.Conn
	peers     map[domain.RobotID]ports.PeerTransport

	imageMu     sync.RWMutex
	latestImage []byte

	jointsMu sync.RWMutex
	joints   domain.JointVector
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		robots:    make(map[domain.RobotID]ports.Conn),
		operators: make(map[domain.RobotID]ports.Conn),
		peers:     make(map[domain.RobotID]ports.PeerTransport),
	}
}

// Register upserts the handle for (role, id). A previous handle for the same
// pair is closed: it is stale by definition and must no longer be sent to.
func (r *MemoryRegistry) Register(role domain.Role, id domain.RobotID, conn ports.Conn) {
	r.mu.Lock()
	m := r.connsFor(role)
	old := m[id]
	m[id] = conn
	r.mu.Unlock()

	if old != nil && old != conn {
		_ = old.Close()
	}
}

// Unregister removes the mapping only while conn is still the registered
// handle. A handler cleaning up after its connection died must not delete a
// replacement that registered in the meantime under the same identity.
func (r *MemoryRegistry) Unregister(role domain.Role, id domain.RobotID, conn ports.Conn) {
	r.mu.Lock()
	m := r.connsFor(role)
	if m[id] == conn {
		delete(m, id)
	}
	r.mu.Unlock()
}

func (r *MemoryRegistry) connsFor(role domain.Role) map[domain.RobotID]ports.Conn {
	if role == domain.RoleRobot {
		return r.robots
	}
	return r.operators
}

func (r *MemoryRegistry) IsConnected(id domain.RobotID) bool {
	r.mu.RLock()
	conn, exists := r.robots[id]
	r.mu.RUnlock()
	return exists && conn.Open()
}

// FirstConnectedRobotID returns an arbitrary registered robot id, for
// commands that name no explicit target. Map iteration order is fine: the
// contract promises no particular ordering.
func (r *MemoryRegistry) FirstConnectedRobotID() (domain.RobotID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := range r.robots {
		return id, true
	}
	return "", false
}

func (r *MemoryRegistry) UpdateImage(frame []byte) {
	r.imageMu.Lock()
	r.latestImage = frame
	r.imageMu.Unlock()
}

func (r *MemoryRegistry) LatestImage() []byte {
	r.imageMu.RLock()
	defer r.imageMu.RUnlock()
	return r.latestImage
}

func (r *MemoryRegistry) UpdateJoints(joints domain.JointVector) {
	r.jointsMu.Lock()
	r.joints = joints
	r.jointsMu.Unlock()
}

// CurrentJoints returns a snapshot; JointVector is an array, so the caller
// gets an independent copy it may mutate freely.
func (r *MemoryRegistry) CurrentJoints() domain.JointVector {
	r.jointsMu.RLock()
	defer r.jointsMu.RUnlock()
	return r.joints
}

func (r *MemoryRegistry) SendToRobot(id domain.RobotID, payload []byte) error {
	r.mu.RLock()
	conn, exists := r.robots[id]
	r.mu.RUnlock()

	if !exists || !conn.Open() {
		return domain.ErrNotConnected
	}
	return conn.Send(payload)
}

// SendToOperator delivers to the paired operator, preferring a registered
// low-latency peer transport over the plain WebSocket handle.
func (r *MemoryRegistry) SendToOperator(id domain.RobotID, payload []byte) error {
	r.mu.RLock()
	peer, hasPeer := r.peers[id]
	conn, exists := r.operators[id]
	r.mu.RUnlock()

	if hasPeer && peer.Open() {
		return peer.Send(payload)
	}
	if !exists || !conn.Open() {
		return domain.ErrNotConnected
	}
	return conn.Send(payload)
}

func (r *MemoryRegistry) SetPeerTransport(id domain.RobotID, transport ports.PeerTransport) {
	r.mu.Lock()
	r.peers[id] = transport
	r.mu.Unlock()
}

func (r *MemoryRegistry) RemovePeerTransport(id domain.RobotID) {
	r.mu.Lock()
	delete(r.peers, id)
	r.mu.Unlock()
}

// Status reports all registered robot ids and the subset with an operator
// attached.
func (r *MemoryRegistry) Status() domain.RelayStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := domain.RelayStatus{
		Timestamp: time.Now().UTC(),
		RobotIDs:  make([]domain.RobotID, 0, len(r.robots)),
	}
	for id := range r.robots {
		status.RobotIDs = append(status.RobotIDs, id)
		if _, paired := r.operators[id]; paired {
			status.ActivePairs = append(status.ActivePairs, id)
		}
	}
	return status
}
