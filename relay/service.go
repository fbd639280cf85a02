package relay

import (
	"sync"

	"github.com/nickjhughes/go-wormhole/config"
	"github.com/nickjhughes/go-wormhole/log"
	"github.com/nickjhughes/go-wormhole/msg"
)

//Service encompases the actual relay service for use by clients.
//Essentially the rest of this package handles the network
//connections and message framing; this object holds the rendezvous
//state itself.
//
//A single mutex guards all applications. Every command a client
//sends resolves to one method here, so commands are serialized and
//each one observes a consistent registry
type Service struct {
	Welcome msg.WelcomeInfo

	mu   sync.Mutex
	apps map[string]*Application
}

//NewService initializes the relay service object from the loaded
//configuration
func NewService() *Service {
	srv := &Service{
		apps: make(map[string]*Application),
	}

	//Setup the welcome message stuff
	if config.Opts.Relay.WelcomeMOTD != "" {
		srv.Welcome.MOTD = &config.Opts.Relay.WelcomeMOTD
	}

	if config.Opts.Relay.WelcomeError != "" {
		srv.Welcome.Error = &config.Opts.Relay.WelcomeError
	}

	return srv
}

//getApp finds an application registered with the relay service,
//creating and initializing it on first use. Called with the lock
//held
func (s *Service) getApp(id string) *Application {
	app, ok := s.apps[id]
	if !ok {
		log.Infof("creating new application container for %s", id)
		app = NewApplication(id)
		s.apps[id] = app
	}

	return app
}

//ListNameplates returns the claimed nameplate IDs for an
//application in ascending order
func (s *Service) ListNameplates(appID string) []msg.NameplateID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getApp(appID).GetNameplateIDs()
}

//AllocateNameplate reserves the smallest free nameplate for a side
func (s *Service) AllocateNameplate(appID, side string, q *Outbound) (msg.NameplateID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getApp(appID).AllocateNameplate(side, q)
}

//ClaimNameplate claims a nameplate for a side and returns the ID
//of the mailbox behind it
func (s *Service) ClaimNameplate(appID string, id msg.NameplateID, side string, q *Outbound) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getApp(appID).ClaimNameplate(id, side, q)
}

//ReleaseNameplate removes a side's claim on a nameplate
func (s *Service) ReleaseNameplate(appID string, id msg.NameplateID, side string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getApp(appID).ReleaseNameplate(id, side)
}

//OpenMailbox subscribes a side's queue to a mailbox, replaying its
//stored history
func (s *Service) OpenMailbox(appID, mailboxID, side string, q *Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getApp(appID).OpenMailbox(mailboxID, side, q)
}

//AddMessage stores a message in a mailbox and fans it out to every
//subscriber, the sender included
func (s *Service) AddMessage(appID, mailboxID string, mm MailboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getApp(appID).AddMessage(mailboxID, mm)
}

//CloseMailbox drops a side's subscription to a mailbox
func (s *Service) CloseMailbox(appID, mailboxID, side string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getApp(appID).CloseMailbox(mailboxID, side)
}

//DropConnection cleans up after a client that went away without
//releasing and closing: its claims are released, its subscriptions
//dropped, and the application container reaped once nothing is
//left inside
func (s *Service) DropConnection(appID, side string, q *Outbound) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[appID]
	if !ok {
		return
	}

	if side != "" {
		app.RemoveSideFromNameplates(side)
	}
	if q != nil {
		app.RemoveQueueFromMailboxes(q)
	}

	if !app.InUse() {
		log.Infof("reaping idle application container for %s", appID)
		delete(s.apps, appID)
	}
}
