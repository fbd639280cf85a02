//Package client drives the rendezvous protocol against a relay
//server: connect, bind, meet at a nameplate, then exchange pake,
//version and application phases through the shared mailbox. The
//payloads of the encrypted phases are sealed with the key the
//exchange produced; the relay never sees plaintext.
package client

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/nickjhughes/go-wormhole/crypto"
	"github.com/nickjhughes/go-wormhole/log"
	"github.com/nickjhughes/go-wormhole/msg"
	"github.com/nickjhughes/go-wormhole/wordlist"
)

//DefaultRelayURL points at a locally running relay
const DefaultRelayURL = "ws://127.0.0.1:4000/"

//DefaultAppID is the namespace used by the text-transfer commands
const DefaultAppID = "nickjhughes.com/wormhole/text-xfer"

//versionBody is the plaintext of the version phase. There are no
//negotiable capabilities yet
const versionBody = `{"app_versions":{}}`

//RelayError is a protocol error the relay reported in an error
//envelope
type RelayError struct {
	Text string
}

func (e *RelayError) Error() string {
	return "relay error: " + e.Text
}

//WelcomeError is returned when the relay's welcome carries an
//error, which means it refuses service
type WelcomeError struct {
	Text string
}

func (e *WelcomeError) Error() string {
	return "relay refused connection: " + e.Text
}

//Config carries the dialing options for a wormhole session
type Config struct {
	//RelayURL is the websocket URL of the relay,
	//DefaultRelayURL when empty
	RelayURL string

	//AppID namespaces this application's nameplates on the relay,
	//DefaultAppID when empty
	AppID string

	//Side identifies this peer; a random one is chosen when empty
	Side string

	//NewKeyExchange builds the key exchange for a code. Defaults
	//to NewCodeExchange
	NewKeyExchange func(code string) KeyExchange
}

func (cfg Config) withDefaults() Config {
	if cfg.RelayURL == "" {
		cfg.RelayURL = DefaultRelayURL
	}
	if cfg.AppID == "" {
		cfg.AppID = DefaultAppID
	}
	if cfg.Side == "" {
		cfg.Side = randomSide()
	}
	if cfg.NewKeyExchange == nil {
		cfg.NewKeyExchange = NewCodeExchange
	}
	return cfg
}

func randomSide() string {
	b := make([]byte, 4)
	crand.Read(b)
	return hex.EncodeToString(b)
}

//session is one connection's walk through the protocol
type session struct {
	cfg  Config
	conn *conn

	nameplate msg.NameplateID
	mailbox   string
	key       []byte

	//seen dedupes mailbox messages by (side, phase); the relay
	//replays history on every fresh subscribe
	seen map[string]bool

	//pending holds peer messages that arrived while a different
	//phase was awaited
	pending []msg.PeerMessage
}

//start dials the relay, consumes the welcome and binds
func start(ctx context.Context, cfg Config) (*session, error) {
	c, err := dial(ctx, cfg.RelayURL)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:  cfg,
		conn: c,
		seen: make(map[string]bool),
	}

	im, err := s.await(ctx, msg.TypeWelcome)
	if err != nil {
		c.close()
		return nil, err
	}
	welcome := im.(msg.Welcome)
	if welcome.Info.Error != nil {
		c.close()
		return nil, &WelcomeError{Text: *welcome.Info.Error}
	}
	if welcome.Info.MOTD != nil {
		log.Infof("relay says: %s", *welcome.Info.MOTD)
	}

	err = c.send(msg.Bind{
		ClientMessage: msg.NewClientMessage(msg.TypeBind),
		AppID:         cfg.AppID,
		Side:          cfg.Side,
	})
	if err != nil {
		c.close()
		return nil, err
	}

	return s, nil
}

//await reads until a message of the wanted type arrives. Acks are
//skipped, peer messages are stashed for awaitPhase, and error
//envelopes abort the wait
func (s *session) await(ctx context.Context, want msg.Type) (msg.IMessage, error) {
	for {
		im, err := s.conn.next(ctx)
		if err != nil {
			return nil, err
		}

		switch m := im.(type) {
		case msg.Ack:
			continue
		case msg.Error:
			return nil, &RelayError{Text: m.Error}
		case msg.PeerMessage:
			if want == msg.TypeMessage {
				return m, nil
			}
			s.stash(m)
		default:
			if im.MsgType() == want {
				return im, nil
			}
		}
	}
}

func (s *session) stash(m msg.PeerMessage) {
	if s.accept(m) {
		s.pending = append(s.pending, m)
	}
}

//accept filters our own echoes and duplicate deliveries
func (s *session) accept(m msg.PeerMessage) bool {
	if m.Side == s.cfg.Side {
		return false
	}
	key := m.Side + "/" + string(m.Phase)
	if s.seen[key] {
		return false
	}
	s.seen[key] = true
	return true
}

//awaitPhase blocks for the peer's message in the given phase
func (s *session) awaitPhase(ctx context.Context, phase msg.Phase) (msg.PeerMessage, error) {
	for i, m := range s.pending {
		if m.Phase == phase {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return m, nil
		}
	}

	for {
		im, err := s.await(ctx, msg.TypeMessage)
		if err != nil {
			return msg.PeerMessage{}, err
		}

		m := im.(msg.PeerMessage)
		if !s.accept(m) {
			continue
		}
		if m.Phase != phase {
			s.pending = append(s.pending, m)
			continue
		}
		return m, nil
	}
}

func (s *session) claim(ctx context.Context, id msg.NameplateID) error {
	err := s.conn.send(msg.Claim{
		ClientMessage: msg.NewClientMessage(msg.TypeClaim),
		Nameplate:     id,
	})
	if err != nil {
		return err
	}

	im, err := s.await(ctx, msg.TypeClaimed)
	if err != nil {
		return err
	}

	s.nameplate = id
	s.mailbox = im.(msg.Claimed).Mailbox
	return nil
}

func (s *session) open() error {
	return s.conn.send(msg.Open{
		ClientMessage: msg.NewClientMessage(msg.TypeOpen),
		Mailbox:       s.mailbox,
	})
}

func (s *session) add(phase msg.Phase, body []byte) error {
	return s.conn.send(msg.Add{
		ClientMessage: msg.NewClientMessage(msg.TypeAdd),
		Phase:         phase,
		Body:          msg.HexBytes(body),
	})
}

//negotiateKey runs the pake phase in both directions and settles
//the session key
func (s *session) negotiateKey(ctx context.Context, code string) error {
	kex := s.cfg.NewKeyExchange(code)

	payload, err := kex.Start()
	if err != nil {
		return err
	}
	if err := s.add(msg.PhasePake, payload); err != nil {
		return err
	}

	peer, err := s.awaitPhase(ctx, msg.PhasePake)
	if err != nil {
		return err
	}

	s.key, err = kex.Finish([]byte(peer.Body))
	return err
}

//sendEncrypted seals a payload under this side's phase key
func (s *session) sendEncrypted(phase msg.Phase, plain []byte) error {
	return s.add(phase, crypto.Encrypt(plain, s.key, s.cfg.Side, phase))
}

//recvEncrypted waits for the peer's message in a phase and opens it
func (s *session) recvEncrypted(ctx context.Context, phase msg.Phase) ([]byte, error) {
	m, err := s.awaitPhase(ctx, phase)
	if err != nil {
		return nil, err
	}
	return crypto.Decrypt([]byte(m.Body), s.key, m.Side, phase)
}

//release gives the nameplate back and waits for the confirmation
func (s *session) release(ctx context.Context) error {
	if s.nameplate == 0 {
		return nil
	}

	err := s.conn.send(msg.Release{
		ClientMessage: msg.NewClientMessage(msg.TypeRelease),
	})
	if err != nil {
		return err
	}
	if _, err := s.await(ctx, msg.TypeReleased); err != nil {
		return err
	}
	s.nameplate = 0
	return nil
}

//closeMailbox reports the mood and waits for the confirmation
func (s *session) closeMailbox(ctx context.Context, mood msg.Mood) error {
	if s.mailbox == "" {
		return nil
	}

	err := s.conn.send(msg.Close{
		ClientMessage: msg.NewClientMessage(msg.TypeClose),
		Mailbox:       s.mailbox,
		Mood:          mood,
	})
	if err != nil {
		return err
	}
	if _, err := s.await(ctx, msg.TypeClosed); err != nil {
		return err
	}
	s.mailbox = ""
	return nil
}

//abort is the failure path teardown: fire-and-forget release and
//close with the mood that matches the failure, then drop the socket
func (s *session) abort(err error) {
	mood := msg.MoodLonely
	var relayErr *RelayError
	switch {
	case errors.Is(err, crypto.ErrDecrypt):
		mood = msg.MoodScary
	case errors.As(err, &relayErr):
		mood = msg.MoodErrory
	}

	if s.nameplate != 0 {
		s.conn.send(msg.Release{ClientMessage: msg.NewClientMessage(msg.TypeRelease)})
	}
	if s.mailbox != "" {
		s.conn.send(msg.Close{
			ClientMessage: msg.NewClientMessage(msg.TypeClose),
			Mailbox:       s.mailbox,
			Mood:          mood,
		})
	}
	s.conn.close()
}

//Send offers a text message through the relay. The human code to
//speak to the receiving party is passed to codeReady as soon as it
//is known; Send then blocks until the exchange completes
func Send(ctx context.Context, cfg Config, text string, codeReady func(code string)) error {
	cfg = cfg.withDefaults()

	s, err := start(ctx, cfg)
	if err != nil {
		return err
	}

	if err := s.runSend(ctx, codeReady, text); err != nil {
		s.abort(err)
		return err
	}

	s.conn.close()
	return nil
}

//Receive connects with a code obtained out of band and returns the
//text the sending party offered
func Receive(ctx context.Context, cfg Config, code string) (string, error) {
	cfg = cfg.withDefaults()

	nameplate, err := wordlist.ParseCode(code)
	if err != nil {
		return "", err
	}

	s, err := start(ctx, cfg)
	if err != nil {
		return "", err
	}

	var received string
	err = s.runReceive(ctx, nameplate, code, &received)
	if err != nil {
		s.abort(err)
		return "", err
	}

	s.conn.close()
	return received, nil
}

//runSend is the sender's walk: allocate a nameplate, surface the
//code, negotiate the key, then hand over the text
func (s *session) runSend(ctx context.Context, codeReady func(string), text string) error {
	err := s.conn.send(msg.Allocate{ClientMessage: msg.NewClientMessage(msg.TypeAllocate)})
	if err != nil {
		return err
	}
	im, err := s.await(ctx, msg.TypeAllocated)
	if err != nil {
		return err
	}
	nameplate := im.(msg.Allocated).Nameplate

	//The allocation reserved the nameplate; claiming it back tells
	//us the mailbox behind it
	if err := s.claim(ctx, nameplate); err != nil {
		return err
	}

	code := wordlist.Code(nameplate, s.mailbox)
	if codeReady != nil {
		codeReady(code)
	}

	if err := s.open(); err != nil {
		return err
	}

	if err := s.negotiateKey(ctx, code); err != nil {
		return err
	}

	if err := s.sendEncrypted(msg.PhaseVersion, []byte(versionBody)); err != nil {
		return err
	}
	if err := s.sendEncrypted(msg.AppPhase(0), []byte(text)); err != nil {
		return err
	}

	//The peer's version proves it holds the same key and has seen
	//our messages
	if _, err := s.recvEncrypted(ctx, msg.PhaseVersion); err != nil {
		return err
	}

	if err := s.release(ctx); err != nil {
		return err
	}
	return s.closeMailbox(ctx, msg.MoodHappy)
}

//runReceive is the receiver's walk: claim the spoken nameplate,
//negotiate the key, then collect the text
func (s *session) runReceive(ctx context.Context, nameplate msg.NameplateID, code string, out *string) error {
	if err := s.claim(ctx, nameplate); err != nil {
		return err
	}

	if err := s.open(); err != nil {
		return err
	}

	if err := s.negotiateKey(ctx, code); err != nil {
		return err
	}

	if err := s.sendEncrypted(msg.PhaseVersion, []byte(versionBody)); err != nil {
		return err
	}

	if _, err := s.recvEncrypted(ctx, msg.PhaseVersion); err != nil {
		return err
	}

	text, err := s.recvEncrypted(ctx, msg.AppPhase(0))
	if err != nil {
		return err
	}
	*out = string(text)

	if err := s.release(ctx); err != nil {
		return err
	}
	return s.closeMailbox(ctx, msg.MoodHappy)
}
