package schema

// Event IDs of the colony protocol. This table is canonical: the older
// PlayerJoinAccepted/PlayerJoinDeclined pair is now PlayerJoinActivity and
// PlayerDeclineActivity, and DebugInfo is server-only.
const (
	DebugInfo                       EventID = 0
	PlayerJoined                    EventID = 1
	PlayerLeft                      EventID = 2
	EnterLocation                   EventID = 3
	PlayerMove                      EventID = 4
	DifficultySelectForMinigame     EventID = 5
	DifficultyConfirmedForMinigame  EventID = 6
	PlayersDeclareIntentForMinigame EventID = 7
	PlayerReadyForMinigame          EventID = 8
	PlayerAbortingMinigame          EventID = 9
	PlayerJoinActivity              EventID = 10
	PlayerDeclineActivity           EventID = 11
	LoadMinigame                    EventID = 12
	PlayerLoadComplete              EventID = 13
	PlayerLoadFailure               EventID = 14
	MinigameBegins                  EventID = 15
	GenericMinigameUntimelyAbort    EventID = 16
	MinigameWon                     EventID = 17
	MinigameLost                    EventID = 18
	SequenceReset                   EventID = 19
	ServerClosing                   EventID = 20
	AsteroidsAsteroidSpawn          EventID = 21
	AsteroidsPlayerShoot            EventID = 22
	AsteroidsAsteroidImpact         EventID = 23
)

// Field names shared across events.
const (
	FieldID               = "id"
	FieldIGN              = "ign"
	FieldCode             = "code"
	FieldMessage          = "message"
	FieldPlayerID         = "playerID"
	FieldColonyLocationID = "colonyLocationID"
	FieldMinigameID       = "minigameID"
	FieldDifficultyID     = "difficultyID"
	FieldDifficultyName   = "difficultyName"
	FieldReason           = "reason"
	FieldAsteroidID       = "asteroidID"
	FieldX                = "x"
	FieldY                = "y"
	FieldHealth           = "health"
	FieldTimeUntilImpact  = "timeUntilImpact"
	FieldType             = "type"
	FieldHit              = "hit"
	FieldColonyHPLeft     = "colonyHPLeft"
)

var (
	serverOnly  = Allow(RoleServer)
	ownerOnly   = Allow(RoleOwner)
	players     = Allow(RoleOwner, RoleGuest)
	authority   = Allow(RoleServer, RoleOwner)
	everyone    = Allow(RoleServer, RoleOwner, RoleGuest)
	idAndIGN    = []FieldSpec{{FieldID, 8, 4, TypeU32}, {FieldIGN, 12, 0, TypeString}}
	idAndReason = []FieldSpec{{FieldID, 8, 4, TypeU32}, {FieldReason, 12, 0, TypeString}}
	difficulty  = []FieldSpec{
		{FieldMinigameID, 8, 4, TypeU32},
		{FieldDifficultyID, 12, 4, TypeU32},
		{FieldDifficultyName, 16, 0, TypeString},
	}
)

var catalogue = []EventSpecification{
	{
		ID: DebugInfo, Name: "DebugInfo", Permissions: serverOnly, ExpectedMinSize: 12,
		Structure: []FieldSpec{{FieldCode, 8, 4, TypeU32}, {FieldMessage, 12, 0, TypeString}},
	},
	{ID: PlayerJoined, Name: "PlayerJoined", Permissions: serverOnly, ExpectedMinSize: 12, Structure: idAndIGN},
	{ID: PlayerLeft, Name: "PlayerLeft", Permissions: serverOnly, ExpectedMinSize: 12, Structure: idAndIGN},
	{
		ID: EnterLocation, Name: "EnterLocation", Permissions: ownerOnly, ExpectedMinSize: 12,
		Structure: []FieldSpec{{FieldID, 8, 4, TypeU32}},
	},
	{
		ID: PlayerMove, Name: "PlayerMove", Permissions: everyone, ExpectedMinSize: 16,
		Structure: []FieldSpec{{FieldPlayerID, 8, 4, TypeU32}, {FieldColonyLocationID, 12, 4, TypeU32}},
	},
	{
		ID: DifficultySelectForMinigame, Name: "DifficultySelectForMinigame", Permissions: ownerOnly,
		ExpectedMinSize: 16, Structure: difficulty,
	},
	{
		ID: DifficultyConfirmedForMinigame, Name: "DifficultyConfirmedForMinigame", Permissions: ownerOnly,
		ExpectedMinSize: 16, Structure: difficulty,
	},
	{ID: PlayersDeclareIntentForMinigame, Name: "PlayersDeclareIntentForMinigame", Permissions: serverOnly, ExpectedMinSize: 8},
	{ID: PlayerReadyForMinigame, Name: "PlayerReadyForMinigame", Permissions: players, ExpectedMinSize: 12, Structure: idAndIGN},
	{ID: PlayerAbortingMinigame, Name: "PlayerAbortingMinigame", Permissions: players, ExpectedMinSize: 12, Structure: idAndIGN},
	{ID: PlayerJoinActivity, Name: "PlayerJoinActivity", Permissions: players, ExpectedMinSize: 12, Structure: idAndIGN},
	{ID: PlayerDeclineActivity, Name: "PlayerDeclineActivity", Permissions: players, ExpectedMinSize: 12, Structure: idAndIGN},
	{
		ID: LoadMinigame, Name: "LoadMinigame", Permissions: serverOnly, ExpectedMinSize: 16,
		Structure: []FieldSpec{{FieldMinigameID, 8, 4, TypeU32}, {FieldDifficultyID, 12, 4, TypeU32}},
	},
	{
		ID: PlayerLoadComplete, Name: "PlayerLoadComplete", Permissions: players, ExpectedMinSize: 12,
		Structure: []FieldSpec{{FieldID, 8, 4, TypeU32}},
	},
	{ID: PlayerLoadFailure, Name: "PlayerLoadFailure", Permissions: players, ExpectedMinSize: 12, Structure: idAndReason},
	{ID: MinigameBegins, Name: "MinigameBegins", Permissions: serverOnly, ExpectedMinSize: 8},
	{
		ID: GenericMinigameUntimelyAbort, Name: "GenericMinigameUntimelyAbort", Permissions: authority,
		ExpectedMinSize: 12, Structure: idAndReason,
	},
	{ID: MinigameWon, Name: "MinigameWon", Permissions: authority, ExpectedMinSize: 8},
	{ID: MinigameLost, Name: "MinigameLost", Permissions: authority, ExpectedMinSize: 8},
	{ID: SequenceReset, Name: "SequenceReset", Permissions: authority, ExpectedMinSize: 8},
	{ID: ServerClosing, Name: "ServerClosing", Permissions: serverOnly, ExpectedMinSize: 8},
	{
		ID: AsteroidsAsteroidSpawn, Name: "AsteroidsAsteroidSpawn", Permissions: serverOnly, ExpectedMinSize: 24,
		Structure: []FieldSpec{
			{FieldAsteroidID, 8, 4, TypeU32},
			{FieldX, 12, 4, TypeF32},
			{FieldY, 16, 4, TypeF32},
			{FieldHealth, 20, 1, TypeU8},
			{FieldTimeUntilImpact, 21, 2, TypeU16},
			{FieldType, 23, 1, TypeU8},
		},
	},
	{
		ID: AsteroidsPlayerShoot, Name: "AsteroidsPlayerShoot", Permissions: players, ExpectedMinSize: 29,
		Structure: []FieldSpec{
			{FieldPlayerID, 8, 4, TypeU32},
			{FieldX, 12, 8, TypeF64},
			{FieldY, 20, 8, TypeF64},
			{FieldHit, 28, 1, TypeBool},
		},
	},
	{
		ID: AsteroidsAsteroidImpact, Name: "AsteroidsAsteroidImpact", Permissions: serverOnly, ExpectedMinSize: 16,
		Structure: []FieldSpec{{FieldAsteroidID, 8, 4, TypeU32}, {FieldColonyHPLeft, 12, 4, TypeI32}},
	},
}
