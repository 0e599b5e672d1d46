package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RobotID is the string key under which a robot-role connection and its
// paired operator-role connection are addressed.
type RobotID string

// JointCount is the number of axes on the arm. Telemetry with fewer values
// truncates the copy; values beyond index 5 are ignored.
const JointCount = 6

// JointVector is a fixed-size joint-angle snapshot in radians. Being an
// array, assignment copies the whole vector, so a value handed out can never
// be mutated behind a caller's back.
type JointVector [JointCount]float64

// Role distinguishes the two sides of a relayed pair.
type Role string

const (
	RoleRobot    Role = "robot"
	RoleOperator Role = "operator"
)

// NewRobotID generates a fallback identity for robot-role connections that
// did not supply one.
func NewRobotID() RobotID {
	return RobotID("Robot_" + strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// RelayStatus is the diagnostic snapshot served by the status endpoint.
type RelayStatus struct {
	Timestamp   time.Time `json:"timestamp"`
	RobotIDs    []RobotID `json:"robot_ids"`
	ActivePairs []RobotID `json:"active_pairs"`
}
