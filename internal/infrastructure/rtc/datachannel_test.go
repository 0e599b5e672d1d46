package rtc

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// connectedPair negotiates two in-process peer connections over host
// candidates and returns the offerer's data channel wrapped as a transport
// plus the answerer's raw channel.
func connectedPair(t *testing.T) (*DataChannelTransport, <-chan *webrtc.DataChannel) {
	t.Helper()

	offerer, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { offerer.Close() })

	answerer, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { answerer.Close() })

	remote := make(chan *webrtc.DataChannel, 1)
	answerer.OnDataChannel(func(dc *webrtc.DataChannel) {
		remote <- dc
	})

	dc, err := offerer.CreateDataChannel("relay", nil)
	require.NoError(t, err)
	transport := NewDataChannelTransport(dc, zap.NewNop().Sugar())

	offer, err := offerer.CreateOffer(nil)
	require.NoError(t, err)
	offerDone := webrtc.GatheringCompletePromise(offerer)
	require.NoError(t, offerer.SetLocalDescription(offer))
	<-offerDone

	require.NoError(t, answerer.SetRemoteDescription(*offerer.LocalDescription()))
	answer, err := answerer.CreateAnswer(nil)
	require.NoError(t, err)
	answerDone := webrtc.GatheringCompletePromise(answerer)
	require.NoError(t, answerer.SetLocalDescription(answer))
	<-answerDone

	require.NoError(t, offerer.SetRemoteDescription(*answerer.LocalDescription()))

	return transport, remote
}

func TestDataChannelTransport_SendReachesPeer(t *testing.T) {
	transport, remote := connectedPair(t)

	require.Eventually(t, transport.Open, 10*time.Second, 20*time.Millisecond)

	var peer *webrtc.DataChannel
	select {
	case peer = <-remote:
	case <-time.After(10 * time.Second):
		t.Fatal("peer channel never arrived")
	}

	got := make(chan []byte, 1)
	peer.OnMessage(func(msg webrtc.DataChannelMessage) {
		got <- msg.Data
	})

	payload := `{"op":"publish","topic":"/joint_states","msg":{"position":[1,2,3,4,5,6]}}`
	require.NoError(t, transport.Send([]byte(payload)))

	select {
	case raw := <-got:
		assert.Equal(t, payload, string(raw))
	case <-time.After(10 * time.Second):
		t.Fatal("payload never arrived")
	}
}

func TestDataChannelTransport_OnMessageDeliversInbound(t *testing.T) {
	transport, remote := connectedPair(t)

	got := make(chan []byte, 1)
	transport.OnMessage(func(raw []byte) {
		got <- raw
	})

	require.Eventually(t, transport.Open, 10*time.Second, 20*time.Millisecond)
	peer := <-remote

	require.NoError(t, peer.SendText(`{"op":"ping"}`))
	select {
	case raw := <-got:
		assert.Equal(t, `{"op":"ping"}`, string(raw))
	case <-time.After(10 * time.Second):
		t.Fatal("inbound frame never arrived")
	}
}

func TestDataChannelTransport_ClosedReportsNotOpen(t *testing.T) {
	transport, _ := connectedPair(t)

	require.Eventually(t, transport.Open, 10*time.Second, 20*time.Millisecond)
	require.NoError(t, transport.Close())

	assert.Eventually(t, func() bool { return !transport.Open() }, 10*time.Second, 20*time.Millisecond)
}
