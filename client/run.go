package client

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nickjhughes/go-wormhole/log"
	"github.com/nickjhughes/go-wormhole/msg"
)

const writeWait = 10 * time.Second

//ErrConnClosed is returned when the relay drops the connection
//while a reply is still expected
var ErrConnClosed = errors.New("connection to relay closed")

//conn wraps the websocket to the relay with a reader pump that
//hands parsed server messages to the state machine
type conn struct {
	ws *websocket.Conn

	in   chan msg.IMessage
	done chan struct{}
}

func dial(ctx context.Context, url string) (*conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: time.Minute}

	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	c := &conn{
		ws:   ws,
		in:   make(chan msg.IMessage, 16),
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

//readLoop parses every inbound frame and forwards it. Frames that
//fail to parse are logged and dropped, mirroring the server's own
//tolerance
func (c *conn) readLoop() {
	defer close(c.done)

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		_, im, err := msg.ParseServer(frame)
		if err != nil {
			log.Debugf("dropping unparseable frame from relay: %s", err.Error())
			continue
		}

		c.in <- im
	}
}

//next blocks for the next server message
func (c *conn) next(ctx context.Context) (msg.IMessage, error) {
	select {
	case im := <-c.in:
		return im, nil
	case <-c.done:
		return nil, ErrConnClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

//send writes one command frame
func (c *conn) send(im msg.IMessage) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))

	frame, err := json.Marshal(im)
	if err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *conn) close() {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.ws.Close()
}
