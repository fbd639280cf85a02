package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickjhughes/go-wormhole/msg"
)

func testSession(side string) *session {
	return &session{
		cfg:  Config{Side: side},
		conn: &conn{in: make(chan msg.IMessage, 32), done: make(chan struct{})},
		seen: make(map[string]bool),
	}
}

func peerFrame(side string, phase msg.Phase, body []byte) msg.PeerMessage {
	return msg.PeerMessage{
		Message: msg.NewServerMessage(msg.TypeMessage),
		Side:    side,
		Phase:   phase,
		Body:    msg.HexBytes(body),
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCodeExchange(t *testing.T) {
	a := NewCodeExchange("4-revenge-rocket")
	b := NewCodeExchange("4-revenge-rocket")

	pa, err := a.Start()
	require.NoError(t, err)
	pb, err := b.Start()
	require.NoError(t, err)
	assert.NotEqual(t, pa, pb)

	ka, err := a.Finish(pb)
	require.NoError(t, err)
	kb, err := b.Finish(pa)
	require.NoError(t, err)

	assert.Len(t, ka, 32)
	assert.Equal(t, ka, kb)
}

func TestCodeExchangeWrongCode(t *testing.T) {
	a := NewCodeExchange("4-revenge-rocket")
	b := NewCodeExchange("4-revenge-racket")

	pa, _ := a.Start()
	pb, _ := b.Start()

	ka, err := a.Finish(pb)
	require.NoError(t, err)
	kb, err := b.Finish(pa)
	require.NoError(t, err)

	assert.NotEqual(t, ka, kb)
}

func TestCodeExchangeMalformed(t *testing.T) {
	a := NewCodeExchange("4-revenge-rocket")

	//Finish before Start has no contribution to pair with
	_, err := a.Finish(make([]byte, contribSize))
	assert.Equal(t, ErrExchange, err)

	a.Start()
	_, err = a.Finish([]byte{0x01, 0x02})
	assert.Equal(t, ErrExchange, err)
}

func TestAwaitSkipsAcks(t *testing.T) {
	s := testSession("aaaa")
	ctx := testContext(t)

	s.conn.in <- msg.NewAck("1234", msg.Now())
	s.conn.in <- msg.Claimed{Message: msg.NewServerMessage(msg.TypeClaimed), Mailbox: "ojr7vqldbwayg"}

	im, err := s.await(ctx, msg.TypeClaimed)
	require.NoError(t, err)
	assert.Equal(t, "ojr7vqldbwayg", im.(msg.Claimed).Mailbox)
}

func TestAwaitRelayError(t *testing.T) {
	s := testSession("aaaa")
	ctx := testContext(t)

	s.conn.in <- msg.NewError(assert.AnError, []byte(`{"id":"1","type":"claim"}`), msg.Now())

	_, err := s.await(ctx, msg.TypeClaimed)
	var relayErr *RelayError
	require.ErrorAs(t, err, &relayErr)
}

func TestAwaitPhaseFiltersAndDedupes(t *testing.T) {
	s := testSession("aaaa")
	ctx := testContext(t)

	//Own echo, the peer's pake, then a stale redelivery of it
	s.conn.in <- peerFrame("aaaa", msg.PhasePake, []byte{0x01})
	s.conn.in <- peerFrame("bbbb", msg.PhasePake, []byte{0x02})
	s.conn.in <- peerFrame("bbbb", msg.PhasePake, []byte{0x02})
	s.conn.in <- peerFrame("bbbb", msg.PhaseVersion, []byte{0x03})

	m, err := s.awaitPhase(ctx, msg.PhasePake)
	require.NoError(t, err)
	assert.Equal(t, msg.HexBytes{0x02}, m.Body)

	//The duplicate was dropped, so the next phase comes straight up
	m, err = s.awaitPhase(ctx, msg.PhaseVersion)
	require.NoError(t, err)
	assert.Equal(t, msg.HexBytes{0x03}, m.Body)
}

//Messages arriving while a confirmation is awaited must not be lost
func TestAwaitStashesPeerMessages(t *testing.T) {
	s := testSession("aaaa")
	ctx := testContext(t)

	s.conn.in <- peerFrame("bbbb", msg.AppPhase(0), []byte{0x07})
	s.conn.in <- msg.Released{Message: msg.NewServerMessage(msg.TypeReleased)}

	_, err := s.await(ctx, msg.TypeReleased)
	require.NoError(t, err)

	m, err := s.awaitPhase(ctx, msg.AppPhase(0))
	require.NoError(t, err)
	assert.Equal(t, msg.HexBytes{0x07}, m.Body)
}

func TestAwaitConnClosed(t *testing.T) {
	s := testSession("aaaa")
	ctx := testContext(t)

	close(s.conn.done)

	_, err := s.await(ctx, msg.TypeClaimed)
	assert.Equal(t, ErrConnClosed, err)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, DefaultRelayURL, cfg.RelayURL)
	assert.Equal(t, DefaultAppID, cfg.AppID)
	assert.Len(t, cfg.Side, 8)
	assert.NotNil(t, cfg.NewKeyExchange)

	//Two sessions never share a side
	assert.NotEqual(t, cfg.Side, Config{}.withDefaults().Side)
}
