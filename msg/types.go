package msg

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

//Phase labels a message within a mailbox. The two fixed phases
//are "pake" and "version"; application phases are rendered as
//their decimal string form ("0", "1", ...).
type Phase string

const (
	//PhasePake is the initial PAKE message
	PhasePake Phase = "pake"

	//PhaseVersion is the encrypted capabilities message
	PhaseVersion Phase = "version"
)

//AppPhase returns the numbered application phase n
func AppPhase(n uint) Phase {
	return Phase(strconv.FormatUint(uint64(n), 10))
}

//AppNumber returns the application phase number if this
//is a numbered phase, with ok set false otherwise
func (p Phase) AppNumber() (uint, bool) {
	n, err := strconv.ParseUint(string(p), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(n), true
}

//Valid returns true if the phase is one of the fixed tags,
//or a decimal application phase
func (p Phase) Valid() bool {
	if p == PhasePake || p == PhaseVersion {
		return true
	}
	_, ok := p.AppNumber()
	return ok
}

//UnmarshalJSON implements json.Unmarshaler, rejecting
//anything that is not a known phase tag or decimal string
func (p *Phase) UnmarshalJSON(src []byte) error {
	var str string
	if err := json.Unmarshal(src, &str); err != nil {
		return err
	}

	tmp := Phase(str)
	if !tmp.Valid() {
		return fmt.Errorf("invalid phase '%s'", str)
	}

	*p = tmp
	return nil
}

//Mood is the client's parting report on how the exchange went,
//delivered with the close command
type Mood string

const (
	//MoodHappy means the key exchange worked and at least one valid
	//encrypted message arrived from the peer
	MoodHappy Mood = "happy"

	//MoodLonely means the client gave up without hearing from its peer
	MoodLonely Mood = "lonely"

	//MoodScary means an encrypted message failed to decrypt; either
	//the code was mistyped or someone guessed at it
	MoodScary Mood = "scary"

	//MoodErrory means some other protocol or internal error
	MoodErrory Mood = "errory"
)

//Valid returns true for the four defined moods
func (m Mood) Valid() bool {
	switch m {
	case MoodHappy, MoodLonely, MoodScary, MoodErrory:
		return true
	}
	return false
}

//UnmarshalJSON implements json.Unmarshaler
func (m *Mood) UnmarshalJSON(src []byte) error {
	var str string
	if err := json.Unmarshal(src, &str); err != nil {
		return err
	}

	tmp := Mood(str)
	if !tmp.Valid() {
		return fmt.Errorf("invalid mood '%s'", str)
	}

	*m = tmp
	return nil
}

//NameplateID is a small positive integer identifying a nameplate.
//On the wire it is always rendered as a decimal string
type NameplateID int

//MarshalJSON implements json.Marshaler
func (n NameplateID) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(n)))
}

//UnmarshalJSON implements json.Unmarshaler
func (n *NameplateID) UnmarshalJSON(src []byte) error {
	var str string
	if err := json.Unmarshal(src, &str); err != nil {
		return err
	}

	v, err := strconv.Atoi(str)
	if err != nil || v < 1 {
		return fmt.Errorf("invalid nameplate id '%s'", str)
	}

	*n = NameplateID(v)
	return nil
}

//String renders the ID in its wire form
func (n NameplateID) String() string {
	return strconv.Itoa(int(n))
}

//HexBytes is a byte slice carried on the wire as a lowercase
//hex string. Used for message bodies
type HexBytes []byte

//ErrBodyHex signals a body field that did not decode as hex
var ErrBodyHex = errors.New("body is not valid hex")

//MarshalJSON implements json.Marshaler
func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

//UnmarshalJSON implements json.Unmarshaler
func (h *HexBytes) UnmarshalJSON(src []byte) error {
	var str string
	if err := json.Unmarshal(src, &str); err != nil {
		return err
	}

	b, err := hex.DecodeString(str)
	if err != nil {
		return ErrBodyHex
	}

	*h = b
	return nil
}

//PermissionMethod is an authentication method advertised to
//clients in the welcome message
type PermissionMethod string

//PermissionNone means no permission required, clients may send
//a normal bind. It is the only method this server offers
const PermissionNone PermissionMethod = "none"

//WelcomeInfo is sent to every client immediately after it connects
type WelcomeInfo struct {
	//MOTD is displayed to users; for server notices and downtime warnings
	MOTD *string `json:"motd,omitempty"`

	//Error, if set, is displayed to users and the client then terminates
	Error *string `json:"error,omitempty"`

	//PermissionRequired lists authentication methods the client must
	//solve before binding. Empty means open access
	PermissionRequired []PermissionMethod `json:"permission_required,omitempty"`
}

//NameplateInfo describes one active nameplate in a list response
type NameplateInfo struct {
	ID NameplateID `json:"id"`
}
