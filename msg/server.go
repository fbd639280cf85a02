package msg

import "encoding/json"

//Welcome greets every freshly-connected client
type Welcome struct {
	Message

	Info WelcomeInfo `json:"welcome"`
}

//Nameplates answers a list command
type Nameplates struct {
	Message

	Nameplates []NameplateInfo `json:"nameplates"`
}

//Allocated answers an allocate command with the chosen nameplate
type Allocated struct {
	Message

	Nameplate NameplateID `json:"nameplate"`
}

//Claimed answers a claim command with the nameplate's mailbox
type Claimed struct {
	Message

	Mailbox string `json:"mailbox"`
}

//Released answers a release command
type Released struct {
	Message
}

//PeerMessage carries a mailbox entry to a subscriber: both live
//broadcasts on add, and the stored history replayed on a fresh
//open. The appender receives its own echo too
type PeerMessage struct {
	Message

	Side  string   `json:"side"`
	Phase Phase    `json:"phase"`
	Body  HexBytes `json:"body"`
}

//Closed answers a close command
type Closed struct {
	Message
}

//Ack is sent exactly once per received command, before any result
type Ack struct {
	Message
}

//Pong answers a ping command, echoing its integer
type Pong struct {
	Message

	Ping uint32 `json:"ping"`
}

//Error reports a command that failed validation or semantics.
//Orig holds the entire original command envelope as sent
type Error struct {
	Message

	Error string          `json:"error"`
	Orig  json.RawMessage `json:"orig"`
}

//NewAck builds the acknowledgment for a received command, echoing
//its ID and stamping the receive time
func NewAck(cmdID string, rx float64) Ack {
	m := NewServerMessage(TypeAck)
	m.ID = cmdID
	m.ServerRX = rx
	return Ack{Message: m}
}

//NewError builds an error envelope for the raw original command,
//stamping the time the command was received. The command's ID is
//echoed when it could be recovered
func NewError(err error, orig []byte, rx float64) Error {
	m := NewServerMessage(TypeError)
	m.ServerRX = rx

	var probe ClientMessage
	if jerr := json.Unmarshal(orig, &probe); jerr == nil {
		m.ID = probe.ID
	}

	return Error{
		Message: m,
		Error:   err.Error(),
		Orig:    json.RawMessage(orig),
	}
}

//ParseServer decodes a raw frame into its typed server message,
//for use by clients
func ParseServer(src []byte) (Type, IMessage, error) {
	var probe Message
	if err := json.Unmarshal(src, &probe); err != nil {
		return "", nil, err
	}

	var im IMessage
	var err error
	switch probe.Type {
	case TypeWelcome:
		var m Welcome
		err = json.Unmarshal(src, &m)
		im = m
	case TypeNameplates:
		var m Nameplates
		err = json.Unmarshal(src, &m)
		im = m
	case TypeAllocated:
		var m Allocated
		err = json.Unmarshal(src, &m)
		im = m
	case TypeClaimed:
		var m Claimed
		err = json.Unmarshal(src, &m)
		im = m
	case TypeReleased:
		var m Released
		err = json.Unmarshal(src, &m)
		im = m
	case TypeMessage:
		var m PeerMessage
		err = json.Unmarshal(src, &m)
		im = m
	case TypeClosed:
		var m Closed
		err = json.Unmarshal(src, &m)
		im = m
	case TypeAck:
		var m Ack
		err = json.Unmarshal(src, &m)
		im = m
	case TypePong:
		var m Pong
		err = json.Unmarshal(src, &m)
		im = m
	case TypeError:
		var m Error
		err = json.Unmarshal(src, &m)
		im = m
	default:
		return probe.Type, nil, ErrUnknown
	}

	if err != nil {
		return probe.Type, nil, err
	}
	return probe.Type, im, nil
}
