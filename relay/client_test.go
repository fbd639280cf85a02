package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickjhughes/go-wormhole/config"
	"github.com/nickjhughes/go-wormhole/msg"
)

//setupRelay points the package globals at a fresh service with
//quiet logging, returning the config for tweaking
func setupRelay(t *testing.T) *config.Options {
	t.Helper()

	opts := config.DefaultOptions
	opts.Logging.Usage = false
	config.Opts = &opts

	service = NewService()
	return &opts
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := &Client{out: NewOutbound()}
	t.Cleanup(func() {
		service.DropConnection(c.App, c.Side, c.out)
		c.out.Close()
	})
	return c
}

func bindClient(t *testing.T, c *Client, app, side string) {
	t.Helper()
	c.OnMessage([]byte(fmt.Sprintf(`{"id":"bind","type":"bind","appid":"%s","side":"%s"}`, app, side)))
	ack := recvMessage(t, c.out).(msg.Ack)
	require.Equal(t, "bind", ack.ID)
	require.Equal(t, app, c.App)
}

func TestClientWelcome(t *testing.T) {
	opts := setupRelay(t)
	motd := "hello there"
	opts.Relay.WelcomeMOTD = motd
	service = NewService()

	c := newTestClient(t)
	c.OnConnect()

	w := recvMessage(t, c.out).(msg.Welcome)
	require.NotNil(t, w.Info.MOTD)
	assert.Equal(t, motd, *w.Info.MOTD)
	assert.Nil(t, w.Info.Error)
}

func TestClientAckFirst(t *testing.T) {
	setupRelay(t)
	c := newTestClient(t)

	c.OnMessage([]byte(`{"id":"abcd","type":"ping","ping":7}`))

	ack := recvMessage(t, c.out).(msg.Ack)
	assert.Equal(t, "abcd", ack.ID)
	assert.NotZero(t, ack.ServerRX)

	pong := recvMessage(t, c.out).(msg.Pong)
	assert.Equal(t, uint32(7), pong.Ping)
	assert.Empty(t, pong.ID)
}

func TestClientDropsGarbage(t *testing.T) {
	setupRelay(t)
	c := newTestClient(t)

	c.OnMessage([]byte(`this is not json`))
	c.OnMessage([]byte(`{"id":"abcd","type":"make-me-a-sandwich"}`))

	//Both frames vanish without an ack or an error
	c.OnMessage([]byte(`{"id":"ffff","type":"ping","ping":1}`))
	ack := recvMessage(t, c.out).(msg.Ack)
	assert.Equal(t, "ffff", ack.ID)
}

func TestClientBindRequired(t *testing.T) {
	setupRelay(t)
	c := newTestClient(t)

	src := `{"id":"abcd","type":"allocate"}`
	c.OnMessage([]byte(src))

	ack := recvMessage(t, c.out).(msg.Ack)
	errMsg := recvMessage(t, c.out).(msg.Error)
	assert.Equal(t, "must bind first", errMsg.Error)
	assert.JSONEq(t, src, string(errMsg.Orig))
	assert.Equal(t, "abcd", errMsg.ID)

	//The envelope carries the same receive time the ack stamped
	assert.NotZero(t, errMsg.ServerRX)
	assert.Equal(t, ack.ServerRX, errMsg.ServerRX)
}

func TestClientBindValidation(t *testing.T) {
	setupRelay(t)
	c := newTestClient(t)

	c.OnMessage([]byte(`{"id":"1","type":"bind","side":"abcd"}`))
	recvMessage(t, c.out) //ack
	assert.Equal(t, "bind requires 'appid'", recvMessage(t, c.out).(msg.Error).Error)

	c.OnMessage([]byte(`{"id":"2","type":"bind","appid":"app"}`))
	recvMessage(t, c.out) //ack
	assert.Equal(t, "bind requires 'side'", recvMessage(t, c.out).(msg.Error).Error)

	bindClient(t, c, "app", "abcd")

	//A second bind is refused
	c.OnMessage([]byte(`{"id":"3","type":"bind","appid":"app","side":"abcd"}`))
	recvMessage(t, c.out) //ack
	assert.Equal(t, "already bound", recvMessage(t, c.out).(msg.Error).Error)
}

func TestClientList(t *testing.T) {
	setupRelay(t)
	c := newTestClient(t)
	bindClient(t, c, "app", "abcd")

	c.OnMessage([]byte(`{"id":"1","type":"list"}`))
	recvMessage(t, c.out) //ack
	nps := recvMessage(t, c.out).(msg.Nameplates)
	assert.Empty(t, nps.Nameplates)

	c.OnMessage([]byte(`{"id":"2","type":"allocate"}`))
	recvMessage(t, c.out) //ack
	recvMessage(t, c.out) //allocated

	c.OnMessage([]byte(`{"id":"3","type":"list"}`))
	recvMessage(t, c.out) //ack
	nps = recvMessage(t, c.out).(msg.Nameplates)
	require.Len(t, nps.Nameplates, 1)
	assert.Equal(t, msg.NameplateID(1), nps.Nameplates[0].ID)
}

func TestClientListDisabled(t *testing.T) {
	opts := setupRelay(t)
	opts.Relay.AllowList = false

	c := newTestClient(t)
	bindClient(t, c, "app", "abcd")

	c.OnMessage([]byte(`{"id":"1","type":"list"}`))
	recvMessage(t, c.out) //ack
	assert.Equal(t, "list is disabled", recvMessage(t, c.out).(msg.Error).Error)
}

func TestClientReleaseWithoutNameplate(t *testing.T) {
	setupRelay(t)
	c := newTestClient(t)
	bindClient(t, c, "app", "abcd")

	c.OnMessage([]byte(`{"id":"1","type":"release"}`))
	recvMessage(t, c.out) //ack
	assert.Equal(t, "release without nameplate", recvMessage(t, c.out).(msg.Error).Error)
}

func TestClientAddRequiresOpen(t *testing.T) {
	setupRelay(t)
	c := newTestClient(t)
	bindClient(t, c, "app", "abcd")

	c.OnMessage([]byte(`{"id":"1","type":"add","phase":"pake","body":"f921"}`))
	recvMessage(t, c.out) //ack
	assert.Equal(t, "must open mailbox first", recvMessage(t, c.out).(msg.Error).Error)
}

func TestClientBadBodyHex(t *testing.T) {
	setupRelay(t)
	c := newTestClient(t)
	bindClient(t, c, "app", "abcd")

	src := `{"id":"1","type":"add","phase":"pake","body":"zzzz"}`
	c.OnMessage([]byte(src))
	recvMessage(t, c.out) //ack
	errMsg := recvMessage(t, c.out).(msg.Error)
	assert.JSONEq(t, src, string(errMsg.Orig))
}

//Walks two clients through a whole rendezvous at the command level
func TestClientExchange(t *testing.T) {
	setupRelay(t)

	sender := newTestClient(t)
	bindClient(t, sender, "app", "sidea")
	receiver := newTestClient(t)
	bindClient(t, receiver, "app", "sideb")

	//Sender allocates, then claims to learn the mailbox
	sender.OnMessage([]byte(`{"id":"1","type":"allocate"}`))
	recvMessage(t, sender.out) //ack
	alloc := recvMessage(t, sender.out).(msg.Allocated)
	assert.Equal(t, msg.NameplateID(1), alloc.Nameplate)

	sender.OnMessage([]byte(`{"id":"2","type":"claim","nameplate":"1"}`))
	recvMessage(t, sender.out) //ack
	claimed := recvMessage(t, sender.out).(msg.Claimed)
	require.Len(t, claimed.Mailbox, 13)

	//Receiver claims the spoken nameplate, same mailbox; the claim
	//subscribes it too
	receiver.OnMessage([]byte(`{"id":"3","type":"claim","nameplate":"1"}`))
	recvMessage(t, receiver.out) //ack
	assert.Equal(t, claimed.Mailbox, recvMessage(t, receiver.out).(msg.Claimed).Mailbox)

	//Both open (no-ops for the subscription, they already hold one
	//through their claims) and the sender adds the pake phase
	sender.OnMessage([]byte(fmt.Sprintf(`{"id":"4","type":"open","mailbox":"%s"}`, claimed.Mailbox)))
	recvMessage(t, sender.out) //ack
	receiver.OnMessage([]byte(fmt.Sprintf(`{"id":"6","type":"open","mailbox":"%s"}`, claimed.Mailbox)))
	recvMessage(t, receiver.out) //ack

	sender.OnMessage([]byte(`{"id":"5","type":"add","phase":"pake","body":"f921"}`))
	recvMessage(t, sender.out) //ack
	echo := recvMessage(t, sender.out).(msg.PeerMessage)
	assert.Equal(t, "sidea", echo.Side)
	assert.Equal(t, "5", echo.ID)
	assert.Equal(t, msg.HexBytes{0xf9, 0x21}, echo.Body)

	//The receiver hears the broadcast through its subscription
	relayed := recvMessage(t, receiver.out).(msg.PeerMessage)
	assert.Equal(t, msg.PhasePake, relayed.Phase)
	assert.Equal(t, "sidea", relayed.Side)

	//Releases and closes finish the rendezvous
	sender.OnMessage([]byte(`{"id":"7","type":"release"}`))
	recvMessage(t, sender.out) //ack
	recvMessage(t, sender.out) //released
	receiver.OnMessage([]byte(`{"id":"8","type":"release","nameplate":"1"}`))
	recvMessage(t, receiver.out) //ack
	recvMessage(t, receiver.out) //released

	sender.OnMessage([]byte(fmt.Sprintf(`{"id":"9","type":"close","mailbox":"%s","mood":"happy"}`, claimed.Mailbox)))
	recvMessage(t, sender.out) //ack
	recvMessage(t, sender.out) //closed
	receiver.OnMessage([]byte(`{"id":"10","type":"close","mood":"happy"}`))
	recvMessage(t, receiver.out) //ack
	recvMessage(t, receiver.out) //closed
}

//Runs a live connection through the full accept path. A client that
//talks the moment the socket opens must still hear the welcome
//before any response to its own frames
func TestWelcomeBeforeFirstResponse(t *testing.T) {
	setupRelay(t)
	initWebsocket()

	clients = make(map[*Client]struct{})
	register = make(chan *Client)
	unregister = make(chan *Client)
	go runRelay()

	srv := httptest.NewServer(http.HandlerFunc(handleWebsocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	//Fire a command straight away, racing the welcome
	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"id":"1","type":"ping","ping":3}`)))

	var types []msg.Type
	for i := 0; i < 3; i++ {
		_, raw, err := ws.ReadMessage()
		require.NoError(t, err)
		var frame msg.Message
		require.NoError(t, json.Unmarshal(raw, &frame))
		types = append(types, frame.Type)
	}

	assert.Equal(t, []msg.Type{msg.TypeWelcome, msg.TypeAck, msg.TypePong}, types)
}

func TestClientCrowdedClaim(t *testing.T) {
	setupRelay(t)

	var clients [3]*Client
	for i := range clients {
		clients[i] = newTestClient(t)
		bindClient(t, clients[i], "app", fmt.Sprintf("side%d", i))
	}

	for i := 0; i < 2; i++ {
		clients[i].OnMessage([]byte(`{"id":"1","type":"claim","nameplate":"4"}`))
		recvMessage(t, clients[i].out) //ack
		_, ok := recvMessage(t, clients[i].out).(msg.Claimed)
		require.True(t, ok)
	}

	clients[2].OnMessage([]byte(`{"id":"1","type":"claim","nameplate":"4"}`))
	recvMessage(t, clients[2].out) //ack
	errMsg := recvMessage(t, clients[2].out).(msg.Error)
	assert.Equal(t, "crowded", errMsg.Error)
}
