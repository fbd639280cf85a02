package relay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickjhughes/go-wormhole/errs"
	"github.com/nickjhughes/go-wormhole/msg"
)

func testQueue(t *testing.T) *Outbound {
	t.Helper()
	q := NewOutbound()
	t.Cleanup(q.Close)
	return q
}

func TestAllocateSmallestFree(t *testing.T) {
	app := NewApplication("app")
	q := testQueue(t)

	id, err := app.AllocateNameplate("side1", q)
	require.NoError(t, err)
	assert.Equal(t, msg.NameplateID(1), id)

	id, err = app.AllocateNameplate("side2", q)
	require.NoError(t, err)
	assert.Equal(t, msg.NameplateID(2), id)

	//Freed numbers are reused, smallest first
	app.ReleaseNameplate(1, "side1")
	id, err = app.AllocateNameplate("side3", q)
	require.NoError(t, err)
	assert.Equal(t, msg.NameplateID(1), id)
}

func TestAllocateExhaustion(t *testing.T) {
	app := NewApplication("app")
	for id := msg.NameplateID(1); id <= maxNameplate; id++ {
		app.Nameplates[id] = &Nameplate{MailboxID: "x", Sides: []string{"s"}}
	}

	_, err := app.AllocateNameplate("side1", testQueue(t))
	assert.Equal(t, errs.ErrNoNameplates, err)
	assert.Len(t, app.Nameplates, maxNameplate)
}

func TestGetNameplateIDs(t *testing.T) {
	app := NewApplication("app")
	q := testQueue(t)
	assert.Empty(t, app.GetNameplateIDs())

	app.AllocateNameplate("a", q)
	app.AllocateNameplate("b", q)
	app.AllocateNameplate("c", q)
	app.ReleaseNameplate(2, "b")

	assert.Equal(t, []msg.NameplateID{1, 3}, app.GetNameplateIDs())
}

func TestClaimNameplate(t *testing.T) {
	app := NewApplication("app")
	q1 := testQueue(t)
	q2 := testQueue(t)
	q3 := testQueue(t)

	id, err := app.AllocateNameplate("side1", q1)
	require.NoError(t, err)

	//The allocating side learns the mailbox through a claim
	mbox1, err := app.ClaimNameplate(id, "side1", q1)
	require.NoError(t, err)
	assert.Len(t, mbox1, 13)

	//The claim subscribed the side to the backing mailbox
	assert.True(t, app.Mailboxes[mbox1].HasSubscriber("side1"))

	//Claiming again from the same side changes nothing
	again, err := app.ClaimNameplate(id, "side1", q1)
	require.NoError(t, err)
	assert.Equal(t, mbox1, again)
	assert.Len(t, app.Mailboxes[mbox1].Subscribers, 1)

	//The peer lands in the same mailbox
	mbox2, err := app.ClaimNameplate(id, "side2", q2)
	require.NoError(t, err)
	assert.Equal(t, mbox1, mbox2)

	//A third side is recorded, but told about the crowd
	_, err = app.ClaimNameplate(id, "side3", q3)
	assert.Equal(t, errs.ErrNameplateCrowded, err)
	assert.Len(t, app.Nameplates[id].Sides, 3)
}

func TestClaimUnknownNameplateCreates(t *testing.T) {
	app := NewApplication("app")

	mbox, err := app.ClaimNameplate(42, "side1", testQueue(t))
	require.NoError(t, err)
	assert.NotEmpty(t, mbox)
	assert.Contains(t, app.Mailboxes, mbox)
}

func TestReleaseNameplate(t *testing.T) {
	app := NewApplication("app")
	q1 := testQueue(t)
	q2 := testQueue(t)

	id, err := app.AllocateNameplate("side1", q1)
	require.NoError(t, err)
	mbox, err := app.ClaimNameplate(id, "side1", q1)
	require.NoError(t, err)
	_, err = app.ClaimNameplate(id, "side2", q2)
	require.NoError(t, err)

	app.ReleaseNameplate(id, "side1")
	assert.Contains(t, app.Nameplates, id)

	//The number frees once the last claim goes, the mailbox stays
	//with its subscribers
	app.ReleaseNameplate(id, "side2")
	assert.NotContains(t, app.Nameplates, id)
	assert.Contains(t, app.Mailboxes, mbox)

	//Releasing is tolerant of unknown nameplates and sides
	app.ReleaseNameplate(id, "side1")
	app.ReleaseNameplate(999, "side1")
}

func TestMailboxIDFormat(t *testing.T) {
	for i := 0; i < 32; i++ {
		id := generateMailboxID()
		assert.Len(t, id, 13)
		for _, r := range id {
			assert.Contains(t, "abcdefghijklmnopqrstuvwxyz234567", string(r))
		}
		assert.Equal(t, strings.ToLower(id), id)
	}
	assert.NotEqual(t, generateMailboxID(), generateMailboxID())
}

func TestMailboxBroadcastAndReplay(t *testing.T) {
	app := NewApplication("app")

	q1 := testQueue(t)
	require.NoError(t, app.OpenMailbox("mbox", "side1", q1))

	require.NoError(t, app.AddMessage("mbox", MailboxMessage{
		ID: "aabb", Side: "side1", Phase: msg.PhasePake, Body: []byte{0x01},
	}))
	require.NoError(t, app.AddMessage("mbox", MailboxMessage{
		ID: "ccdd", Side: "side1", Phase: msg.PhaseVersion, Body: []byte{0x02},
	}))

	//The appender hears its own echoes
	first := recvMessage(t, q1).(msg.PeerMessage)
	assert.Equal(t, msg.PhasePake, first.Phase)
	assert.Equal(t, "aabb", first.ID)
	assert.Equal(t, msg.HexBytes{0x01}, first.Body)
	second := recvMessage(t, q1).(msg.PeerMessage)
	assert.Equal(t, msg.PhaseVersion, second.Phase)

	//A later subscriber gets the history replayed in order
	q2 := testQueue(t)
	require.NoError(t, app.OpenMailbox("mbox", "side2", q2))

	replay1 := recvMessage(t, q2).(msg.PeerMessage)
	assert.Equal(t, msg.PhasePake, replay1.Phase)
	assert.Equal(t, "side1", replay1.Side)
	replay2 := recvMessage(t, q2).(msg.PeerMessage)
	assert.Equal(t, msg.PhaseVersion, replay2.Phase)

	//Reopening the same side does not replay again
	require.NoError(t, app.OpenMailbox("mbox", "side2", q2))

	//New messages reach both sides
	require.NoError(t, app.AddMessage("mbox", MailboxMessage{
		ID: "eeff", Side: "side2", Phase: msg.AppPhase(0), Body: []byte{0x03},
	}))
	assert.Equal(t, msg.AppPhase(0), recvMessage(t, q1).(msg.PeerMessage).Phase)
	assert.Equal(t, msg.AppPhase(0), recvMessage(t, q2).(msg.PeerMessage).Phase)
}

func TestMailboxCrowded(t *testing.T) {
	app := NewApplication("app")

	require.NoError(t, app.OpenMailbox("mbox", "side1", testQueue(t)))
	require.NoError(t, app.OpenMailbox("mbox", "side2", testQueue(t)))

	//The third subscriber is admitted so it can hear the error,
	//but the open reports the crowd
	err := app.OpenMailbox("mbox", "side3", testQueue(t))
	assert.Equal(t, errs.ErrMailboxCrowded, err)
	assert.True(t, app.Mailboxes["mbox"].HasSubscriber("side3"))
}

func TestCloseMailbox(t *testing.T) {
	app := NewApplication("app")

	assert.Equal(t, errs.ErrUnknownMailbox, app.CloseMailbox("nope", "side1"))

	require.NoError(t, app.OpenMailbox("mbox", "side1", testQueue(t)))
	require.NoError(t, app.OpenMailbox("mbox", "side2", testQueue(t)))
	require.NoError(t, app.AddMessage("mbox", MailboxMessage{
		ID: "aabb", Side: "side1", Phase: msg.PhasePake, Body: []byte{0x01},
	}))

	require.NoError(t, app.CloseMailbox("mbox", "side1"))
	assert.Contains(t, app.Mailboxes, "mbox")

	//The mailbox and its stored messages go with the last side
	require.NoError(t, app.CloseMailbox("mbox", "side2"))
	assert.NotContains(t, app.Mailboxes, "mbox")
}

func TestAddUnknownMailbox(t *testing.T) {
	app := NewApplication("app")
	err := app.AddMessage("nope", MailboxMessage{ID: "aabb", Side: "side1"})
	assert.Equal(t, errs.ErrUnknownMailbox, err)
}

func TestAddReapsSubscriberlessMailboxes(t *testing.T) {
	app := NewApplication("app")
	require.NoError(t, app.OpenMailbox("mbox", "side1", testQueue(t)))

	//A mailbox that lost all its subscribers holds messages nobody
	//can read; the next add sweeps it away
	app.Mailboxes["dead"] = NewMailbox("dead")

	require.NoError(t, app.AddMessage("mbox", MailboxMessage{
		ID: "aabb", Side: "side1", Phase: msg.PhasePake, Body: []byte{0x01},
	}))
	assert.Contains(t, app.Mailboxes, "mbox")
	assert.NotContains(t, app.Mailboxes, "dead")
}

func TestDisconnectCleanup(t *testing.T) {
	app := NewApplication("app")
	q1 := testQueue(t)
	q2 := testQueue(t)

	id, err := app.AllocateNameplate("side1", q1)
	require.NoError(t, err)
	mbox, err := app.ClaimNameplate(id, "side1", q1)
	require.NoError(t, err)
	_, err = app.ClaimNameplate(id, "side2", q2)
	require.NoError(t, err)

	app.RemoveSideFromNameplates("side1")
	app.RemoveQueueFromMailboxes(q1)
	assert.Contains(t, app.Nameplates, id)
	assert.Contains(t, app.Mailboxes, mbox)
	assert.True(t, app.InUse())

	app.RemoveSideFromNameplates("side2")
	app.RemoveQueueFromMailboxes(q2)
	assert.NotContains(t, app.Nameplates, id)
	assert.NotContains(t, app.Mailboxes, mbox)
	assert.False(t, app.InUse())
}
