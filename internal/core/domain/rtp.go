package domain

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"time"
)

// RTP envelope operations. The relay never fully parses envelopes it
// forwards; it pattern-matches the few topics it intercepts and passes
// everything else through byte-for-byte.
const (
	OpSubscribe   = "subscribe"
	OpPublish     = "publish"
	OpCallService = "call_service"
	OpPing        = "ping"
	OpPong        = "pong"
)

// Topics and services the relay and bridge know about.
const (
	TopicJointStates     = "/joint_states"
	TopicCompressedVideo = "/niryo_robot_vision/compressed_video_stream"
	TopicHardwareStatus  = "/niryo_robot_hardware_interface/hardware_status"
	TopicToolState       = "/niryo_robot_tools/current_tool_state"

	ServiceLearningMode = "/niryo_robot/learning_mode/activate"
	ServiceCalibrate    = "/niryo_robot/joints_interface/calibrate_motors"
	ServiceOpenGripper  = "/niryo_robot/tools/open_gripper"
	ServiceCloseGripper = "/niryo_robot/tools/close_gripper"

	TrajectoryTopic = "/niryo_robot_follow_joint_trajectory_controller/command"
)

// Heartbeat traffic is link-local: matched lexically on the wire, answered
// in place and never forwarded.
var (
	PingMarker  = []byte(`"op":"ping"`)
	PongPayload = []byte(`{"op":"pong"}`)
	pongMarker  = []byte(`"op":"pong"`)
)

// IsPing reports whether a raw message carries the heartbeat request marker.
func IsPing(raw []byte) bool {
	return bytes.Contains(raw, PingMarker)
}

// IsPong reports whether a raw message is a heartbeat response.
func IsPong(raw []byte) bool {
	return bytes.Contains(raw, pongMarker)
}

// SubscribeRequest builds an RTP subscription envelope. throttle is the
// minimum interval between messages; zero asks for full rate.
func SubscribeRequest(topic, msgType string, throttle time.Duration) []byte {
	raw, _ := json.Marshal(struct {
		Op           string `json:"op"`
		Topic        string `json:"topic"`
		Type         string `json:"type"`
		ThrottleRate int64  `json:"throttle_rate"`
	}{OpSubscribe, topic, msgType, throttle.Milliseconds()})
	return raw
}

// TrajectoryCommand builds the publish envelope that moves all six joints to
// the given absolute targets over two seconds.
func TrajectoryCommand(joints JointVector) []byte {
	type stamp struct {
		Secs  int `json:"secs"`
		Nsecs int `json:"nsecs"`
	}
	type point struct {
		Positions     [JointCount]float64 `json:"positions"`
		Velocities    []float64           `json:"velocities"`
		Accelerations []float64           `json:"accelerations"`
		Effort        []float64           `json:"effort"`
		TimeFromStart stamp               `json:"time_from_start"`
	}
	type header struct {
		Seq     int    `json:"seq"`
		Stamp   stamp  `json:"stamp"`
		FrameID string `json:"frame_id"`
	}
	type trajectory struct {
		Header     header   `json:"header"`
		JointNames []string `json:"joint_names"`
		Points     []point  `json:"points"`
	}

	raw, _ := json.Marshal(struct {
		Op    string     `json:"op"`
		Topic string     `json:"topic"`
		Type  string     `json:"type"`
		Msg   trajectory `json:"msg"`
	}{
		Op:    OpPublish,
		Topic: TrajectoryTopic,
		Type:  "trajectory_msgs/JointTrajectory",
		Msg: trajectory{
			JointNames: []string{"joint_1", "joint_2", "joint_3", "joint_4", "joint_5", "joint_6"},
			Points: []point{{
				Positions:     joints,
				Velocities:    []float64{},
				Accelerations: []float64{},
				Effort:        []float64{},
				TimeFromStart: stamp{Secs: 2},
			}},
		},
	})
	return raw
}

// ServiceCall builds a call_service envelope.
func ServiceCall(service, serviceType string, args any) []byte {
	raw, _ := json.Marshal(struct {
		Op      string `json:"op"`
		Service string `json:"service"`
		Type    string `json:"type"`
		Args    any    `json:"args"`
	}{OpCallService, service, serviceType, args})
	return raw
}

// GripperCommand builds the tool service call that opens or closes the
// gripper. Torque values are at maximum so a grabbed object is held.
func GripperCommand(open bool) []byte {
	service := ServiceCloseGripper
	position := 0
	if open {
		service = ServiceOpenGripper
		position = 100
	}
	return ServiceCall(service, "tools_interface/ToolCommand", struct {
		ID         int `json:"id"`
		Position   int `json:"position"`
		Speed      int `json:"speed"`
		HoldTorque int `json:"hold_torque"`
		MaxTorque  int `json:"max_torque"`
	}{ID: 11, Position: position, Speed: 100, HoldTorque: 1000, MaxTorque: 1000})
}

// RegisterMessage is the identification payload the bridge sends to the hub
// immediately after connecting, before any other traffic.
func RegisterMessage(id RobotID, now time.Time) []byte {
	raw, _ := json.Marshal(struct {
		Type      string  `json:"type"`
		RobotID   RobotID `json:"robotId"`
		Timestamp string  `json:"timestamp"`
	}{"registerRobot", id, now.UTC().Format(time.RFC3339)})
	return raw
}

// DecodeJointPositions extracts a joint vector from a joint-state publish
// envelope. The position value may be a flat numeric array or an object with
// named joint fields; shorter arrays truncate the copy and extra values are
// ignored. Returns false when no usable position is present.
func DecodeJointPositions(raw []byte) (JointVector, bool) {
	var env struct {
		Msg struct {
			Position json.RawMessage `json:"position"`
		} `json:"msg"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Msg.Position) == 0 {
		return JointVector{}, false
	}

	var joints JointVector

	var asArray []float64
	if err := json.Unmarshal(env.Msg.Position, &asArray); err == nil {
		if len(asArray) == 0 {
			return JointVector{}, false
		}
		for i, v := range asArray {
			if i >= JointCount {
				break
			}
			joints[i] = v
		}
		return joints, true
	}

	var asObject map[string]float64
	if err := json.Unmarshal(env.Msg.Position, &asObject); err == nil && len(asObject) > 0 {
		names := []string{"joint_1", "joint_2", "joint_3", "joint_4", "joint_5", "joint_6"}
		found := false
		for i, name := range names {
			if v, ok := asObject[name]; ok {
				joints[i] = v
				found = true
			}
		}
		return joints, found
	}

	return JointVector{}, false
}

var dataField = []byte(`"data"`)

// ExtractImageData locates the quoted base64 "data" field of a compressed
// image envelope lexically and decodes it. The lexical scan avoids a full
// JSON parse of multi-hundred-kilobyte frames on the hot path. Payloads of
// 100 characters or fewer are rejected as noise.
func ExtractImageData(raw []byte) ([]byte, bool) {
	idx := bytes.Index(raw, dataField)
	if idx < 0 {
		return nil, false
	}
	rest := raw[idx+len(dataField):]

	colon := bytes.IndexByte(rest, ':')
	if colon < 0 {
		return nil, false
	}
	rest = rest[colon+1:]

	startQuote := bytes.IndexByte(rest, '"')
	if startQuote < 0 {
		return nil, false
	}
	rest = rest[startQuote+1:]

	endQuote := bytes.IndexByte(rest, '"')
	if endQuote <= 100 {
		return nil, false
	}

	decoded, err := base64.StdEncoding.DecodeString(string(rest[:endQuote]))
	if err != nil {
		return nil, false
	}
	return decoded, true
}
