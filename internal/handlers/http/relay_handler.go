package http

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"robotrelay/internal/core/domain"
	"robotrelay/internal/core/ports"
	"robotrelay/internal/core/services"
	"robotrelay/internal/infrastructure/monitoring"
	"robotrelay/internal/infrastructure/relay"
	"robotrelay/pkg/errors"
)

// fallbackRobotID is addressed when no robot has registered yet, so the
// chat surface can still report a meaningful offline failure.
const fallbackRobotID = domain.RobotID("Robot_Niryo_01")

type RelayHandler struct {
	registry      ports.Registry
	wsServer      *relay.WebSocketServer
	events        ports.EventSink
	metrics       *monitoring.PrometheusCollector
	publicBaseURL string
	logger        *zap.SugaredLogger
}

func NewRelayHandler(
	registry ports.Registry,
	wsServer *relay.WebSocketServer,
	events ports.EventSink,
	metrics *monitoring.PrometheusCollector,
	publicBaseURL string,
	logger *zap.SugaredLogger,
) *RelayHandler {
	if events == nil {
		events = ports.NopEvents{}
	}
	return &RelayHandler{
		registry:      registry,
		wsServer:      wsServer,
		events:        events,
		metrics:       metrics,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

func (h *RelayHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/", h.Banner)
	router.GET("/status", h.Status)
	router.GET("/health", h.Health)
	router.GET("/image", h.Image)
	router.POST("/api/whatsapp", h.WhatsAppCommand)

	router.GET("/robot", gin.WrapF(h.wsServer.HandleRobot))
	router.GET("/unity", gin.WrapF(h.wsServer.HandleOperator))
}

func (h *RelayHandler) Banner(c *gin.Context) {
	c.String(http.StatusOK, "Robot Orange Relay Server - WebSocket endpoints: /robot?robotId=X, /unity?robotId=X")
}

// Status reports the registry snapshot for dashboards.
func (h *RelayHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Status())
}

// Health is the plain liveness probe.
func (h *RelayHandler) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Image serves the most recent camera frame.
func (h *RelayHandler) Image(c *gin.Context) {
	img := h.registry.LatestImage()
	if len(img) == 0 {
		c.String(http.StatusNotFound, "No image received yet")
		return
	}
	c.Data(http.StatusOK, "image/jpeg", img)
}

// twiml is the Twilio messaging response envelope.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message struct {
		Body  string `xml:"Body"`
		Media string `xml:"Media,omitempty"`
	} `xml:"Message"`
}

// WhatsAppCommand handles an inbound Twilio webhook: translate the text to
// a robot action, forward it when the robot is online, answer with TwiML.
func (h *RelayHandler) WhatsAppCommand(c *gin.Context) {
	body := strings.ToLower(strings.TrimSpace(c.PostForm("Body")))
	from := c.PostForm("From")
	if body == "" {
		_ = c.Error(errors.NewInvalidInputError("Body form field is required"))
		return
	}

	robotID, ok := h.registry.FirstConnectedRobotID()
	if !ok {
		robotID = fallbackRobotID
	}
	connected := h.registry.IsConnected(robotID)

	h.logger.Infow("chat command", "body", body, "from", from, "target", robotID, "connected", connected)
	h.events.ChatLog(fmt.Sprintf("[%s] 📩 %s", time.Now().Format("15:04:05"), body))

	result := services.Translate(body, services.CommandContext{
		Connected:     connected,
		HasImage:      len(h.registry.LatestImage()) > 0,
		Joints:        h.registry.CurrentJoints(),
		PublicBaseURL: h.publicBaseURL,
	})

	outcome := "no_action"
	if len(result.Payload) > 0 {
		if connected {
			if err := h.registry.SendToRobot(robotID, result.Payload); err != nil {
				h.logger.Warnw("command delivery failed", "robot_id", robotID, "error", err)
				result.Reply = services.OfflineOverrideReply
				result.MediaURL = ""
				outcome = "delivery_failed"
			} else {
				h.logger.Infow("command forwarded", "body", body, "robot_id", robotID)
				outcome = "forwarded"
			}
		} else {
			result.Reply = services.OfflineOverrideReply
			result.MediaURL = ""
			outcome = "robot_offline"
		}
	}
	h.metrics.CommandProcessed(outcome)

	h.events.ChatLog(fmt.Sprintf("[%s] 🤖 %s", time.Now().Format("15:04:05"), result.Reply))

	var resp twiml
	resp.Message.Body = result.Reply
	resp.Message.Media = result.MediaURL

	raw, err := xml.Marshal(resp)
	if err != nil {
		_ = c.Error(errors.NewInternalError("failed to render response"))
		return
	}
	// Twilio's wire contract includes the XML declaration.
	c.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), raw...))
}
