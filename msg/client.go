package msg

import "encoding/json"

//SubmitPermissions answers a permission challenge from the welcome
//message. This server only advertises open access, so the command
//is accepted and ignored
type SubmitPermissions struct {
	ClientMessage
}

//Bind associates the connection with an application namespace and
//a side. Allowed exactly once per connection
type Bind struct {
	ClientMessage

	AppID string `json:"appid"`
	Side  string `json:"side"`
}

//List requests the currently-active nameplate IDs in the bound app
type List struct {
	ClientMessage
}

//Allocate asks the server to pick the smallest free nameplate,
//create its mailbox, and subscribe the caller
type Allocate struct {
	ClientMessage
}

//Claim joins an existing or new nameplate, subscribing the caller
//to its mailbox
type Claim struct {
	ClientMessage

	Nameplate NameplateID `json:"nameplate"`
}

//Release leaves a nameplate. When the nameplate field is absent it
//defaults to the one this connection claimed
type Release struct {
	ClientMessage

	Nameplate *NameplateID `json:"nameplate,omitempty"`
}

//Open subscribes the caller to a mailbox directly
type Open struct {
	ClientMessage

	Mailbox string `json:"mailbox"`
}

//Add appends a message to the caller's currently-open mailbox
type Add struct {
	ClientMessage

	Phase Phase    `json:"phase"`
	Body  HexBytes `json:"body"`
}

//Close unsubscribes the caller from a mailbox, reporting its mood
type Close struct {
	ClientMessage

	Mailbox string `json:"mailbox"`
	Mood    Mood   `json:"mood"`
}

//Ping is a liveness probe; the server answers with a pong carrying
//the same integer
type Ping struct {
	ClientMessage

	Ping uint32 `json:"ping"`
}

//ParseClient decodes a raw frame into its typed client command.
//The returned Type is valid whenever the frame held one, even if
//the full decode failed
func ParseClient(src []byte) (Type, IMessage, error) {
	var probe ClientMessage
	if err := json.Unmarshal(src, &probe); err != nil {
		return "", nil, err
	}

	var im IMessage
	var err error
	switch probe.Type {
	case TypeSubmitPermissions:
		var m SubmitPermissions
		err = json.Unmarshal(src, &m)
		im = m
	case TypeBind:
		var m Bind
		err = json.Unmarshal(src, &m)
		im = m
	case TypeList:
		var m List
		err = json.Unmarshal(src, &m)
		im = m
	case TypeAllocate:
		var m Allocate
		err = json.Unmarshal(src, &m)
		im = m
	case TypeClaim:
		var m Claim
		err = json.Unmarshal(src, &m)
		im = m
	case TypeRelease:
		var m Release
		err = json.Unmarshal(src, &m)
		im = m
	case TypeOpen:
		var m Open
		err = json.Unmarshal(src, &m)
		im = m
	case TypeAdd:
		var m Add
		err = json.Unmarshal(src, &m)
		im = m
	case TypeClose:
		var m Close
		err = json.Unmarshal(src, &m)
		im = m
	case TypePing:
		var m Ping
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
