package rtc

import (
	"sync/atomic"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// DataChannelTransport adapts an established WebRTC data channel into the
// registry's peer send path. Offer/answer and ICE negotiation happen
// elsewhere; this wrapper only tracks channel readiness and sends. While the
// channel is open, operator-bound traffic bypasses the hub's websocket leg.
type DataChannelTransport struct {
	dc     *webrtc.DataChannel
	open   atomic.Bool
	logger *zap.SugaredLogger
}

// NewDataChannelTransport wraps dc. The channel may still be negotiating;
// Open reports false until the OnOpen callback fires.
func NewDataChannelTransport(dc *webrtc.DataChannel, logger *zap.SugaredLogger) *DataChannelTransport {
	t := &DataChannelTransport{dc: dc, logger: logger}

	dc.OnOpen(func() {
		t.open.Store(true)
		logger.Infow("data channel open", "label", dc.Label())
	})
	dc.OnClose(func() {
		t.open.Store(false)
		logger.Infow("data channel closed", "label", dc.Label())
	})
	dc.OnError(func(err error) {
		t.open.Store(false)
		logger.Warnw("data channel error", "label", dc.Label(), "error", err)
	})

	if dc.ReadyState() == webrtc.DataChannelStateOpen {
		t.open.Store(true)
	}
	return t
}

// OnMessage registers fn for inbound frames from the peer.
func (t *DataChannelTransport) OnMessage(fn func(raw []byte)) {
	t.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data)
	})
}

func (t *DataChannelTransport) Send(payload []byte) error {
	return t.dc.SendText(string(payload))
}

func (t *DataChannelTransport) Open() bool {
	return t.open.Load() && t.dc.ReadyState() == webrtc.DataChannelStateOpen
}

// Close tears down the channel.
func (t *DataChannelTransport) Close() error {
	t.open.Store(false)
	return t.dc.Close()
}
