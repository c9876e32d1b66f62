// Package tracker keeps the roster of connected participants and their
// participation in the current activity proposal. The roster is only ever
// changed by reducers wired to multiplexer events.
package tracker

import (
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/danmuck/colonyctl/internal/mux"
	"github.com/danmuck/colonyctl/internal/protocol"
	"github.com/danmuck/colonyctl/internal/protocol/schema"
)

type Participation uint8

const (
	Undecided Participation = iota
	OptIn
	OptOut
)

func (p Participation) String() string {
	switch p {
	case OptIn:
		return "OPT_IN"
	case OptOut:
		return "OPT_OUT"
	default:
		return "UNDECIDED"
	}
}

// Participant is one tracked client.
type Participant struct {
	ID            uint32
	IGN           string
	Role          schema.Role
	LocationID    uint32
	Participation Participation
}

// Tracker owns the participant collection, ordered by first join.
type Tracker struct {
	group   *mux.Group
	ownerID uint32
	order   []uint32
	byID    map[uint32]*Participant
}

// New subscribes the tracker reducers on m. ownerID marks which participant
// joins with the owner role.
func New(m *mux.Multiplexer, ownerID uint32) *Tracker {
	t := &Tracker{
		group:   m.NewGroup(),
		ownerID: ownerID,
		byID:    make(map[uint32]*Participant),
	}
	t.group.Subscribe(schema.PlayerJoined, t.onJoin)
	t.group.Subscribe(schema.PlayerLeft, t.onLeave)
	t.group.Subscribe(schema.PlayerJoinActivity, t.onOptIn)
	t.group.Subscribe(schema.PlayerDeclineActivity, t.onOptOut)
	t.group.Subscribe(schema.SequenceReset, t.onReset)
	t.group.Subscribe(schema.PlayerMove, t.onMove)
	return t
}

// Close releases the tracker's subscriptions. The last roster stays readable.
func (t *Tracker) Close() {
	t.group.Close()
}

func (t *Tracker) onJoin(msg protocol.Message) error {
	info := protocol.PlayerInfoFrom(msg)
	if p, ok := t.byID[info.ID]; ok {
		p.IGN = info.IGN
		return nil
	}
	role := schema.RoleGuest
	if info.ID == t.ownerID {
		role = schema.RoleOwner
	}
	t.byID[info.ID] = &Participant{ID: info.ID, IGN: info.IGN, Role: role}
	t.order = append(t.order, info.ID)
	log.Debug().Uint32("id", info.ID).Str("ign", info.IGN).Msg("tracker join")
	return nil
}

func (t *Tracker) onLeave(msg protocol.Message) error {
	id := msg.Uint32(schema.FieldID)
	if _, ok := t.byID[id]; !ok {
		return nil
	}
	delete(t.byID, id)
	t.order = lo.Without(t.order, id)
	log.Debug().Uint32("id", id).Msg("tracker leave")
	return nil
}

func (t *Tracker) onOptIn(msg protocol.Message) error {
	t.setParticipation(msg.Uint32(schema.FieldID), OptIn)
	return nil
}

func (t *Tracker) onOptOut(msg protocol.Message) error {
	t.setParticipation(msg.Uint32(schema.FieldID), OptOut)
	return nil
}

func (t *Tracker) onReset(protocol.Message) error {
	for _, p := range t.byID {
		p.Participation = Undecided
	}
	return nil
}

func (t *Tracker) onMove(msg protocol.Message) error {
	mv := protocol.MoveFrom(msg)
	if p, ok := t.byID[mv.PlayerID]; ok {
		p.LocationID = mv.ColonyLocationID
	}
	return nil
}

func (t *Tracker) setParticipation(id uint32, status Participation) {
	p, ok := t.byID[id]
	if !ok {
		log.Debug().Uint32("id", id).Str("status", status.String()).Msg("tracker ignoring untracked participant")
		return
	}
	p.Participation = status
}

// Participants returns a snapshot in join order.
func (t *Tracker) Participants() []Participant {
	return lo.Map(t.order, func(id uint32, _ int) Participant {
		return *t.byID[id]
	})
}

func (t *Tracker) Participant(id uint32) (Participant, bool) {
	p, ok := t.byID[id]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Count returns how many participants currently have status.
func (t *Tracker) Count(status Participation) int {
	return lo.CountBy(t.Participants(), func(p Participant) bool {
		return p.Participation == status
	})
}

// Participating returns the participants who opted in.
func (t *Tracker) Participating() []Participant {
	return lo.Filter(t.Participants(), func(p Participant, _ int) bool {
		return p.Participation == OptIn
	})
}
