package services

import (
	"strings"

	"robotrelay/internal/core/domain"
)

// NudgeStep is the per-axis increment of relative movement commands,
// roughly 11 degrees.
const NudgeStep = 0.2

const replyHeader = "🤖 *Robot Orange Bot*\n"

// DefaultPublicBaseURL backs the photo media link when no public base URL
// is configured.
const DefaultPublicBaseURL = "https://teleop.dmzs-lab.com"

const helpText = "📋 *Robot Features*:\n\n" +
	"📸 *Photo* - Get camera snapshot\n" +
	"👋 *Wave* - Say hello\n" +
	"⬅️ *Left/Right* - Rotate Base\n" +
	"⬆️ *Up/Down* - Lift Arm\n" +
	"⏭️ *Forward/Back* - Reach\n" +
	"🏠 *Home* - Reset position\n" +
	"🔓 *Free* - Learning Mode ON\n" +
	"🔒 *Lock* - Learning Mode OFF\n" +
	"⚙️ *Calibrate* - Auto-Calibrate\n" +
	"🅿️ *Park* - Fold robot safely\n" +
	"✊ *Grab* - Close gripper\n" +
	"👐 *Release* - Open gripper\n" +
	"🟢 *Status* - Check connectivity"

// OfflineOverrideReply replaces any success reply when a command produced a
// payload but the target robot was not connected; the caller applies it so
// success wording never reaches the chat surface without delivery.
const OfflineOverrideReply = replyHeader +
	"⚠️ Command Failed: Robot is not connected to the relay server. Unable to execute."

// CommandContext carries the relay state a translation may consult.
type CommandContext struct {
	Connected     bool
	HasImage      bool
	Joints        domain.JointVector
	PublicBaseURL string
}

// CommandResult is one translated command: the chat reply, an optional RTP
// payload to forward, and an optional media reference.
type CommandResult struct {
	Reply    string
	Payload  []byte
	MediaURL string
}

// Translate maps a normalized text token to an action. It is a pure table:
// it never touches the network, and connectivity handling beyond reply
// wording is the caller's job.
func Translate(text string, cc CommandContext) CommandResult {
	text = strings.ToLower(strings.TrimSpace(text))

	switch text {
	// Absolute moves
	case "home":
		return move("Moving to HOME position... 🏠", domain.JointVector{0, 0, 0, 0, 0, 0})
	case "park":
		return move("Parking robot... 🅿️", domain.JointVector{0, 0.5, -1.2, 0, 0, 0})
	case "wave":
		return move("Waving! 👋", domain.JointVector{0, 0, 0, 0, -0.5, 0})

	// Nudges: read the cached vector, step one axis, emit the full target
	case "left":
		return nudge("Turning Left ⬅️", cc.Joints, 0, +NudgeStep)
	case "right":
		return nudge("Turning Right ➡️", cc.Joints, 0, -NudgeStep)
	case "up":
		return nudge("Moving Up ⬆️", cc.Joints, 1, -NudgeStep) // J2 negative lifts
	case "down":
		return nudge("Moving Down ⬇️", cc.Joints, 1, +NudgeStep)
	case "forward", "reach":
		return nudge("Reaching Forward ⏭️", cc.Joints, 2, -NudgeStep) // J3 negative extends
	case "back":
		return nudge("Pulling Back ⏮️", cc.Joints, 2, +NudgeStep)

	// Modes and calibration
	case "free", "learning":
		return CommandResult{
			Reply:   replyHeader + "Enabling Learning Mode (Motors OFF)... 🔓",
			Payload: domain.ServiceCall(domain.ServiceLearningMode, "niryo_robot_msgs/SetBool", boolArg{true}),
		}
	case "lock", "work":
		return CommandResult{
			Reply:   replyHeader + "Disabling Learning Mode (Motors ON)... 🔒",
			Payload: domain.ServiceCall(domain.ServiceLearningMode, "niryo_robot_msgs/SetBool", boolArg{false}),
		}
	case "calibrate":
		return CommandResult{
			Reply:   replyHeader + "Requesting Calibration... ⚙️",
			Payload: domain.ServiceCall(domain.ServiceCalibrate, "niryo_robot_msgs/SetInt", intArg{0}),
		}

	// Gripper
	case "open", "release":
		return CommandResult{
			Reply:   replyHeader + "Opening Gripper... 👐",
			Payload: domain.GripperCommand(true),
		}
	case "close", "grab":
		return CommandResult{
			Reply:   replyHeader + "Closing Gripper (Max Power)... ✊",
			Payload: domain.GripperCommand(false),
		}

	// Utilities: no RTP payload
	case "photo", "pic", "see", "image":
		if !cc.HasImage {
			return CommandResult{
				Reply: replyHeader + "Camera not active or no image received yet. 🚫\nMake sure Robot Console is running.",
			}
		}
		base := cc.PublicBaseURL
		if base == "" {
			base = DefaultPublicBaseURL
		}
		return CommandResult{
			Reply:    replyHeader + "Here is what I see! 📸",
			MediaURL: strings.TrimRight(base, "/") + "/image",
		}
	case "status":
		if cc.Connected {
			return CommandResult{Reply: replyHeader + "System Online. 🟢"}
		}
		return CommandResult{Reply: replyHeader + "System Offline. 🔴 (Server running, Robot disconnected)"}

	case "help", "menu", "commands", "features":
		return CommandResult{Reply: replyHeader + helpText}

	default:
		if !cc.Connected {
			return CommandResult{Reply: replyHeader + "⚠️ Warning: Robot is OFFLINE. This command might not execute."}
		}
		return CommandResult{Reply: replyHeader + "Unknown command. Send *Help* for features."}
	}
}

type boolArg struct {
	Value bool `json:"value"`
}

type intArg struct {
	Value int `json:"value"`
}

func move(reply string, target domain.JointVector) CommandResult {
	return CommandResult{
		Reply:   replyHeader + reply,
		Payload: domain.TrajectoryCommand(target),
	}
}

func nudge(reply string, joints domain.JointVector, axis int, step float64) CommandResult {
	joints[axis] += step
	return CommandResult{
		Reply:   replyHeader + reply,
		Payload: domain.TrajectoryCommand(joints),
	}
}
