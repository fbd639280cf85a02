//Package errs holds the protocol-level error values the mailbox
//server reports back to clients in error envelopes. They are
//per-command failures; the connection stays open.
package errs

import "errors"

var (
	//ErrBindFirst command requires a prior successful bind
	ErrBindFirst = errors.New("must bind first")

	//ErrBound a second bind arrived on an already-bound connection
	ErrBound = errors.New("already bound")

	//ErrBindAppID bind is missing the application ID
	ErrBindAppID = errors.New("bind requires 'appid'")

	//ErrBindSide bind is missing the side
	ErrBindSide = errors.New("bind requires 'side'")

	//ErrUnknownType the type tag is not one the protocol defines
	ErrUnknownType = errors.New("unknown message type")

	//ErrNameplateCrowded a third side tried to share a nameplate
	ErrNameplateCrowded = errors.New("crowded")

	//ErrMailboxCrowded a third subscriber tried to share a mailbox
	ErrMailboxCrowded = errors.New("crowded")

	//ErrNoNameplates every nameplate slot is taken
	ErrNoNameplates = errors.New("no nameplates available")

	//ErrUnknownMailbox add or close referenced a mailbox this side
	//never opened, or that no longer exists
	ErrUnknownMailbox = errors.New("unknown mailbox")

	//ErrNoNameplate release arrived with no nameplate named and
	//none claimed by the connection
	ErrNoNameplate = errors.New("release without nameplate")

	//ErrMailboxRequired add arrived before any open
	ErrMailboxRequired = errors.New("must open mailbox first")

	//ErrListDisabled the server is configured to refuse list requests
	ErrListDisabled = errors.New("list is disabled")
)
