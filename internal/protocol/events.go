package protocol

import (
	"fmt"

	"github.com/danmuck/colonyctl/internal/protocol/schema"
)

// PlayerInfo is the id+ign shape shared by the join/leave/activity events.
type PlayerInfo struct {
	ID  uint32
	IGN string
}

func (p PlayerInfo) Fields() Fields {
	return Fields{
		schema.FieldID:  Uint32(p.ID),
		schema.FieldIGN: Text(p.IGN),
	}
}

func PlayerInfoFrom(m Message) PlayerInfo {
	return PlayerInfo{ID: m.Uint32(schema.FieldID), IGN: m.Text(schema.FieldIGN)}
}

// Difficulty is carried by DifficultySelect/DifficultyConfirmed.
type Difficulty struct {
	MinigameID     uint32
	DifficultyID   uint32
	DifficultyName string
}

func (d Difficulty) Fields() Fields {
	return Fields{
		schema.FieldMinigameID:     Uint32(d.MinigameID),
		schema.FieldDifficultyID:   Uint32(d.DifficultyID),
		schema.FieldDifficultyName: Text(d.DifficultyName),
	}
}

func (d Difficulty) String() string {
	return fmt.Sprintf("minigame=%d difficulty=%d (%s)", d.MinigameID, d.DifficultyID, d.DifficultyName)
}

func DifficultyFrom(m Message) Difficulty {
	return Difficulty{
		MinigameID:     m.Uint32(schema.FieldMinigameID),
		DifficultyID:   m.Uint32(schema.FieldDifficultyID),
		DifficultyName: m.Text(schema.FieldDifficultyName),
	}
}

// LoadRequest is the LoadMinigame payload.
type LoadRequest struct {
	MinigameID   uint32
	DifficultyID uint32
}

func (l LoadRequest) Fields() Fields {
	return Fields{
		schema.FieldMinigameID:   Uint32(l.MinigameID),
		schema.FieldDifficultyID: Uint32(l.DifficultyID),
	}
}

func LoadRequestFrom(m Message) LoadRequest {
	return LoadRequest{
		MinigameID:   m.Uint32(schema.FieldMinigameID),
		DifficultyID: m.Uint32(schema.FieldDifficultyID),
	}
}

// Failure is the id+reason shape of PlayerLoadFailure and
// GenericMinigameUntimelyAbort.
type Failure struct {
	ID     uint32
	Reason string
}

func (f Failure) Fields() Fields {
	return Fields{
		schema.FieldID:     Uint32(f.ID),
		schema.FieldReason: Text(f.Reason),
	}
}

func FailureFrom(m Message) Failure {
	return Failure{ID: m.Uint32(schema.FieldID), Reason: m.Text(schema.FieldReason)}
}

// Move is the PlayerMove payload.
type Move struct {
	PlayerID         uint32
	ColonyLocationID uint32
}

func (mv Move) Fields() Fields {
	return Fields{
		schema.FieldPlayerID:         Uint32(mv.PlayerID),
		schema.FieldColonyLocationID: Uint32(mv.ColonyLocationID),
	}
}

func MoveFrom(m Message) Move {
	return Move{
		PlayerID:         m.Uint32(schema.FieldPlayerID),
		ColonyLocationID: m.Uint32(schema.FieldColonyLocationID),
	}
}

// LoadComplete builds the PlayerLoadComplete payload.
func LoadComplete(id uint32) Fields {
	return Fields{schema.FieldID: Uint32(id)}
}
