//Package msg declares the framed JSON wire protocol spoken between
//wormhole clients and the mailbox server. Every frame is one JSON
//object with a "type" discriminator at the top level; the remaining
//fields sit beside it, not nested under it.
package msg

import (
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

//Type is the wire tag discriminating message kinds
type Type string

//Client → server command tags
const (
	TypeSubmitPermissions Type = "submit-permissions"
	TypeBind              Type = "bind"
	TypeList              Type = "list"
	TypeAllocate          Type = "allocate"
	TypeClaim             Type = "claim"
	TypeRelease           Type = "release"
	TypeOpen              Type = "open"
	TypeAdd               Type = "add"
	TypeClose             Type = "close"
	TypePing              Type = "ping"
)

//Server → client message tags
const (
	TypeWelcome    Type = "welcome"
	TypeNameplates Type = "nameplates"
	TypeAllocated  Type = "allocated"
	TypeClaimed    Type = "claimed"
	TypeReleased   Type = "released"
	TypeMessage    Type = "message"
	TypeClosed     Type = "closed"
	TypeAck        Type = "ack"
	TypePong       Type = "pong"
	TypeError      Type = "error"
)

//String returns the wire form of the tag
func (t Type) String() string {
	return string(t)
}

//ErrUnknown is returned by the parse functions when the type tag
//is missing or not one this protocol defines
var ErrUnknown = errors.New("unknown message type")

//IMessage is any protocol message, client or server side
type IMessage interface {
	MsgType() Type
}

//Message is the envelope shared by every server → client message.
//ServerTX is stamped when the envelope is built; ServerRX is only
//present on acknowledgments and direct responses, recording when
//the triggering command was received
type Message struct {
	ID       string  `json:"id,omitempty"`
	ServerTX float64 `json:"server_tx"`
	ServerRX float64 `json:"server_rx,omitempty"`
	Type     Type    `json:"type"`
}

//MsgType returns the wire tag
func (m Message) MsgType() Type {
	return m.Type
}

//ClientMessage is the envelope shared by every client → server
//command. The ID is a short random hex string; the server echoes
//it in the ack and in any error referencing the command
type ClientMessage struct {
	ID   string `json:"id"`
	Type Type   `json:"type"`
}

//MsgType returns the wire tag
func (m ClientMessage) MsgType() Type {
	return m.Type
}

//Now returns the protocol timestamp form of the current time,
//float seconds since the Unix epoch
func Now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

//NewServerMessage builds a server envelope of the given type with
//the transmission timestamp already stamped
func NewServerMessage(t Type) Message {
	return Message{
		ServerTX: Now(),
		Type:     t,
	}
}

//NewClientMessage builds a client envelope of the given type with
//a fresh random command ID
func NewClientMessage(t Type) ClientMessage {
	var buf [2]byte
	crand.Read(buf[:])

	return ClientMessage{
		ID:   hex.EncodeToString(buf[:]),
		Type: t,
	}
}
