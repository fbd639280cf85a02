package relay

import (
	crand "crypto/rand"
	"encoding/base32"
	"sort"
	"strings"

	"github.com/nickjhughes/go-wormhole/errs"
	"github.com/nickjhughes/go-wormhole/msg"
)

//maxNameplate caps how many nameplates one application can have
//outstanding. Allocation always hands out the smallest free number
//so codes stay short
const maxNameplate = 998

//Nameplate maps a short number to its mailbox and records which
//sides have claimed it
type Nameplate struct {
	MailboxID string
	Sides     []string
}

//hasSide reports whether the side already holds a claim
func (n *Nameplate) hasSide(side string) bool {
	for _, s := range n.Sides {
		if s == side {
			return true
		}
	}
	return false
}

//Application holds the nameplates and mailboxes for one client
//application. Mailboxes are broken down into their parent apps so
//a wider variety of client apps can exist on one server without
//conflicting with each others protocols.
//
//Methods here are called with the service lock held and do no
//locking of their own
type Application struct {
	ID string

	Nameplates map[msg.NameplateID]*Nameplate
	Mailboxes  map[string]*Mailbox
}

//NewApplication creates a new application container
func NewApplication(id string) *Application {
	return &Application{
		ID:         id,
		Nameplates: make(map[msg.NameplateID]*Nameplate),
		Mailboxes:  make(map[string]*Mailbox),
	}
}

//GetNameplateIDs returns the nameplate IDs currently claimed in
//this application, in ascending order. This should only be allowed
//if the config option AllowList is true
func (a *Application) GetNameplateIDs() []msg.NameplateID {
	res := make([]msg.NameplateID, 0, len(a.Nameplates))
	for id := range a.Nameplates {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

//AllocateNameplate reserves the smallest free nameplate for the
//side by claiming it, which creates its mailbox and subscribes the
//caller. The caller still issues a claim to learn the mailbox ID
func (a *Application) AllocateNameplate(side string, q *Outbound) (msg.NameplateID, error) {
	for id := msg.NameplateID(1); id <= maxNameplate; id++ {
		if _, taken := a.Nameplates[id]; taken {
			continue
		}

		if _, err := a.ClaimNameplate(id, side, q); err != nil {
			return 0, err
		}
		return id, nil
	}

	return 0, errs.ErrNoNameplates
}

//ClaimNameplate claims a nameplate and its respective mailbox,
//creating both on first claim, and subscribes the side to the
//mailbox. Claiming again from the same side is a no-op that
//returns the existing mailbox ID. A third side is still recorded,
//but the claim reports the nameplate as crowded
func (a *Application) ClaimNameplate(id msg.NameplateID, side string, q *Outbound) (string, error) {
	np, ok := a.Nameplates[id]
	if !ok {
		np = &Nameplate{MailboxID: generateMailboxID()}
		a.Nameplates[id] = np
	}

	if !np.hasSide(side) {
		np.Sides = append(np.Sides, side)
	}

	mbox, ok := a.Mailboxes[np.MailboxID]
	if !ok {
		mbox = NewMailbox(np.MailboxID)
		a.Mailboxes[np.MailboxID] = mbox
	}
	mbox.Subscribe(side, q)

	if len(np.Sides) > 2 {
		return "", errs.ErrNameplateCrowded
	}

	return np.MailboxID, nil
}

//ReleaseNameplate removes the claim on a nameplate's side. When no
//claims remain the nameplate number is freed for reuse; its
//mailbox lives on until closed. Releasing an unknown nameplate or
//an unclaimed side is not an error
func (a *Application) ReleaseNameplate(id msg.NameplateID, side string) {
	np, ok := a.Nameplates[id]
	if !ok {
		return
	}

	kept := np.Sides[:0]
	for _, s := range np.Sides {
		if s != side {
			kept = append(kept, s)
		}
	}
	np.Sides = kept

	if len(np.Sides) == 0 {
		delete(a.Nameplates, id)
	}
}

//OpenMailbox subscribes a side to a mailbox, creating the mailbox
//if needed, and replays its stored history to the new subscriber.
//A third subscriber is still admitted so it can receive the error,
//but the open reports the mailbox as crowded
func (a *Application) OpenMailbox(id, side string, q *Outbound) error {
	mbox, ok := a.Mailboxes[id]
	if !ok {
		mbox = NewMailbox(id)
		a.Mailboxes[id] = mbox
	}

	if mbox.Subscribe(side, q) > 2 {
		return errs.ErrMailboxCrowded
	}
	return nil
}

//CloseMailbox drops a side's subscription. The mailbox and its
//stored messages are deleted once the last subscriber leaves
func (a *Application) CloseMailbox(id, side string) error {
	mbox, ok := a.Mailboxes[id]
	if !ok {
		return errs.ErrUnknownMailbox
	}

	mbox.Unsubscribe(side)
	if mbox.Empty() {
		delete(a.Mailboxes, id)
	}
	return nil
}

//AddMessage stores a message and fans it out to every subscriber.
//Afterwards any mailbox left without subscribers is reaped; its
//stored messages could never be read
func (a *Application) AddMessage(mailboxID string, mm MailboxMessage) error {
	mbox, ok := a.Mailboxes[mailboxID]
	if !ok {
		return errs.ErrUnknownMailbox
	}

	mbox.AddMessage(mm)

	for id, mb := range a.Mailboxes {
		if mb.Empty() {
			delete(a.Mailboxes, id)
		}
	}
	return nil
}

//RemoveSideFromNameplates drops every claim a side holds, freeing
//nameplates that end up unclaimed. Used on disconnect
func (a *Application) RemoveSideFromNameplates(side string) {
	for id, np := range a.Nameplates {
		if !np.hasSide(side) {
			continue
		}

		kept := np.Sides[:0]
		for _, s := range np.Sides {
			if s != side {
				kept = append(kept, s)
			}
		}
		np.Sides = kept

		if len(np.Sides) == 0 {
			delete(a.Nameplates, id)
		}
	}
}

//RemoveQueueFromMailboxes drops every subscription held through
//the given queue handle, reaping mailboxes left without
//subscribers. Used on disconnect
func (a *Application) RemoveQueueFromMailboxes(q *Outbound) {
	for id, mbox := range a.Mailboxes {
		mbox.RemoveQueue(q)
		if mbox.Empty() {
			delete(a.Mailboxes, id)
		}
	}
}

//InUse returns true if the application still holds any nameplates
//or mailboxes. If it does not, it is safe to delete
func (a *Application) InUse() bool {
	return len(a.Nameplates) > 0 || len(a.Mailboxes) > 0
}

func generateMailboxID() string {
	b := make([]byte, 8)
	crand.Read(b)

	id := base32.StdEncoding.EncodeToString(b)
	id = strings.ReplaceAll(id, "=", "")
	id = strings.ToLower(id)

	return id
}
