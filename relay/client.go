package relay

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nickjhughes/go-wormhole/config"
	"github.com/nickjhughes/go-wormhole/db"
	"github.com/nickjhughes/go-wormhole/errs"
	"github.com/nickjhughes/go-wormhole/log"
	"github.com/nickjhughes/go-wormhole/msg"
)

const (
	readWait  = 60 * time.Second
	writeWait = 10 * time.Second

	pingInterval = (readWait * 9) / 10

	maxMessageSize = 4096
)

//Client wraps up the websocket connection with its outbound queue
//and the rendezvous state this connection holds
type Client struct {
	conn *websocket.Conn
	out  *Outbound

	App  string
	Side string

	//nameplate is the nameplate allocated or last claimed over
	//this connection, used when a release omits one
	nameplate msg.NameplateID

	//mailbox is the mailbox opened over this connection; add
	//commands go here
	mailbox string
}

//IsBound returns true if the client has already bound to the server
func (c *Client) IsBound() bool {
	return c.App != "" && c.Side != ""
}

//Close tears down this connection's rendezvous state. Claims are
//released and subscriptions dropped before the outbound queue is
//closed, so nothing can push to a closed queue
func (c *Client) Close() {
	service.DropConnection(c.App, c.Side, c.out)
	c.out.Close()
}

func (c *Client) watchReads() {
	defer func() {
		unregister <- c
		c.conn.Close() //Close the actual connection here
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(readWait))

	//Setup the ping/pong response outside of message processing
	//which basically just extends the connection life
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		LogDebug(c, "received pong from client")
		return nil
	})

	//Start accepting messages and processing them
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil { // Read/Connection error
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				LogErr(c, "reading from socket connection", err)
			}
			break //Leave the loop, so unregister
		}

		c.conn.SetReadDeadline(time.Now().Add(readWait))

		LogDebugf(c, "received message from client %s", string(message))

		//Process the message
		c.OnMessage(message)
	}
}

func (c *Client) watchWrites() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close() //Double check the connection is closed
	}()

	for {
		select {
		case msgObj, ok := <-c.out.Out(): //Read messages to send
			//Give them 10 seconds to take the new message
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				//Queue was closed and has drained
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				log.Debug("write channel was closed, disconnecting client")
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil { //Failed to get a write channel
				log.Debug("failed to get a writer for client")
				return
			}
			if err = json.NewEncoder(w).Encode(msgObj); err != nil {
				LogErr(c, "failed to encode message", err)
			}

			if err := w.Close(); err != nil { //Writer failure
				return
			}
		case <-ticker.C: //Ping check for keeping the connection alive
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("failed to write ping, disconnecting client")
				return //Failed to write ping
			}
			LogDebug(c, "sent ping message to client")
		}
	}
}

//OnConnect is called when the client has successfully been
//registered to the server
func (c *Client) OnConnect() {
	c.out.Push(msg.Welcome{
		Message: msg.NewServerMessage(msg.TypeWelcome),

		Info: service.Welcome,
	})
}

//OnMessage is called when a frame from the client is received and
//needs to be handled. Frames that are not JSON, or whose type is
//unknown, are logged and dropped. Everything else is acknowledged
//first; commands that then fail validation or semantics get an
//error envelope carrying the original frame
func (c *Client) OnMessage(src []byte) {
	rx := msg.Now()

	var probe msg.ClientMessage
	if err := json.Unmarshal(src, &probe); err != nil {
		LogWarnf(c, "dropping unparseable frame: %s", err.Error())
		return
	}

	mt, im, err := msg.ParseClient(src)
	if err == msg.ErrUnknown {
		LogWarnf(c, "dropping frame with unknown type '%s'", string(probe.Type))
		return
	}

	//Every recognized command is acknowledged before any result
	c.out.Push(msg.NewAck(probe.ID, rx))

	if err != nil { //The command fields failed to decode
		c.messageError(err, src, rx)
		return
	}

	//Quit ahead if we haven't bound and aren't going to
	if !c.IsBound() && mt != msg.TypePing && mt != msg.TypeBind && mt != msg.TypeSubmitPermissions {
		c.messageError(errs.ErrBindFirst, src, rx)
		return
	}

	switch m := im.(type) {
	case msg.SubmitPermissions:
		//Open access is advertised, nothing to verify
	case msg.Bind:
		c.handleBind(m, rx, src)
	case msg.List:
		c.handleList(rx, src)
	case msg.Allocate:
		c.handleAllocate(rx, src)
	case msg.Claim:
		c.handleClaim(m, rx, src)
	case msg.Release:
		c.handleRelease(m, rx, src)
	case msg.Open:
		c.handleOpen(m, rx, src)
	case msg.Add:
		c.handleAdd(m, probe.ID, rx, src)
	case msg.Close:
		c.handleClose(m, rx, src)
	case msg.Ping:
		c.handlePing(m, rx)
	}
}

//when bad or malformed messages appear, this method will create
//the necessary error response and send it to the client. These are
//generally only validation/protocol errors and not actual
//networking errors. Like every direct response, the envelope
//carries the receive time of the command that failed
func (c *Client) messageError(err error, orig []byte, rx float64) {
	LogDebugf(c, "command error: %s", err.Error())
	c.out.Push(msg.NewError(err, orig, rx))
}

//respond stamps a direct response to a command. Responses carry the
//receive time of the command they answer, but not its ID; the ack
//already echoed that
func respond(t msg.Type, rx float64) msg.Message {
	m := msg.NewServerMessage(t)
	m.ServerRX = rx
	return m
}

func (c *Client) handleBind(m msg.Bind, rx float64, src []byte) {
	if c.IsBound() {
		c.messageError(errs.ErrBound, src, rx)
		return
	}
	if m.AppID == "" {
		c.messageError(errs.ErrBindAppID, src, rx)
		return
	}
	if m.Side == "" {
		c.messageError(errs.ErrBindSide, src, rx)
		return
	}

	c.App = m.AppID
	c.Side = m.Side
	LogInfof(c, "bound to application %s", c.App)
}

func (c *Client) handleList(rx float64, src []byte) {
	if !config.Opts.Relay.AllowList {
		c.messageError(errs.ErrListDisabled, src, rx)
		return
	}

	ids := service.ListNameplates(c.App)
	infos := make([]msg.NameplateInfo, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, msg.NameplateInfo{ID: id})
	}

	c.out.Push(msg.Nameplates{
		Message:    respond(msg.TypeNameplates, rx),
		Nameplates: infos,
	})
}

func (c *Client) handleAllocate(rx float64, src []byte) {
	id, err := service.AllocateNameplate(c.App, c.Side, c.out)
	if err != nil {
		c.messageError(err, src, rx)
		return
	}

	c.nameplate = id
	db.RecordNameplate(c.App, int(id))

	c.out.Push(msg.Allocated{
		Message:   respond(msg.TypeAllocated, rx),
		Nameplate: id,
	})
}

func (c *Client) handleClaim(m msg.Claim, rx float64, src []byte) {
	mbid, err := service.ClaimNameplate(c.App, m.Nameplate, c.Side, c.out)
	if err != nil {
		//The claim was still recorded; the claimant learns of the
		//crowd through the error
		c.messageError(err, src, rx)
		return
	}

	c.nameplate = m.Nameplate

	c.out.Push(msg.Claimed{
		Message: respond(msg.TypeClaimed, rx),
		Mailbox: mbid,
	})
}

func (c *Client) handleRelease(m msg.Release, rx float64, src []byte) {
	id := c.nameplate
	if m.Nameplate != nil {
		id = *m.Nameplate
	}
	if id == 0 {
		c.messageError(errs.ErrNoNameplate, src, rx)
		return
	}

	service.ReleaseNameplate(c.App, id, c.Side)
	if id == c.nameplate {
		c.nameplate = 0
	}

	c.out.Push(msg.Released{
		Message: respond(msg.TypeReleased, rx),
	})
}

func (c *Client) handleOpen(m msg.Open, rx float64, src []byte) {
	//The mailbox is usable even when the open reports crowding,
	//so remember it either way
	c.mailbox = m.Mailbox

	if err := service.OpenMailbox(c.App, m.Mailbox, c.Side, c.out); err != nil {
		c.messageError(err, src, rx)
	}
	//No direct response; the replayed history is the answer
}

func (c *Client) handleAdd(m msg.Add, cmdID string, rx float64, src []byte) {
	if c.mailbox == "" {
		c.messageError(errs.ErrMailboxRequired, src, rx)
		return
	}

	err := service.AddMessage(c.App, c.mailbox, MailboxMessage{
		ID:       cmdID,
		ServerRX: rx,
		Side:     c.Side,
		Phase:    m.Phase,
		Body:     []byte(m.Body),
	})
	if err != nil {
		c.messageError(err, src, rx)
	}
	//No direct response; the sender receives its own echo through
	//its subscription
}

func (c *Client) handleClose(m msg.Close, rx float64, src []byte) {
	mbid := m.Mailbox
	if mbid == "" {
		mbid = c.mailbox
	}
	if mbid == "" {
		c.messageError(errs.ErrMailboxRequired, src, rx)
		return
	}

	if err := service.CloseMailbox(c.App, mbid, c.Side); err != nil {
		c.messageError(err, src, rx)
		return
	}

	if mbid == c.mailbox {
		c.mailbox = ""
	}

	db.RecordUsage(c.App, mbid, c.Side, string(m.Mood))
	LogInfof(c, "closed mailbox %s with mood %s", mbid, m.Mood)

	c.out.Push(msg.Closed{
		Message: respond(msg.TypeClosed, rx),
	})
}

func (c *Client) handlePing(m msg.Ping, rx float64) {
	c.out.Push(msg.Pong{
		Message: respond(msg.TypePong, rx),
		Ping:    m.Ping,
	})
	LogDebugf(c, "received ping %d", m.Ping)
}
