package models

import (
	"time"
)

// Player lifecycle states.
const (
	StateIdle      = "idle"
	StateQueued    = "queued"
	StateMatched   = "matched"
	StateReporting = "reporting"
)

// Report codes, stored in the player-1 frame.
const (
	ReportPlayer1Win  = 1
	ReportPlayer2Win  = 2
	ReportDraw        = 0
	ReportManualAbort = -3
	ReportNoResponse  = -4
)

// Match result codes.
const (
	MatchResultPlayer1Win  = 1
	MatchResultPlayer2Win  = 2
	MatchResultDraw        = 0
	MatchResultInvalidated = -1
	MatchResultConflict    = -2
)

// DefaultMmr is the initial rating for every race.
const DefaultMmr = 1500

// DefaultRemainingAborts is the abort credit a player starts with.
const DefaultRemainingAborts = 3

// Player represents a ladder player. Players are created on first
// interaction and never destroyed; bans are a flag.
type Player struct {
	DiscordUID       int64     `gorm:"column:discord_uid;primaryKey" json:"discord_uid"`
	DiscordUsername  string    `gorm:"column:discord_username;type:varchar(100)" json:"discord_username"`
	PlayerName       string    `gorm:"column:player_name;type:varchar(12)" json:"player_name"`
	Battletag        string    `gorm:"column:battletag;type:varchar(20)" json:"battletag,omitempty"`
	AltName1         string    `gorm:"column:alt_name_1;type:varchar(20)" json:"alt_name_1,omitempty"`
	AltName2         string    `gorm:"column:alt_name_2;type:varchar(20)" json:"alt_name_2,omitempty"`
	Country          string    `gorm:"column:country;type:varchar(2)" json:"country"`
	Region           string    `gorm:"column:region;type:varchar(8)" json:"region"`
	AcceptedTOS      bool      `gorm:"column:accepted_tos;default:false" json:"accepted_tos"`
	CompletedSetup   bool      `gorm:"column:completed_setup;default:false" json:"completed_setup"`
	IsBanned         bool      `gorm:"column:is_banned;default:false" json:"is_banned"`
	ShieldBatteryBug bool      `gorm:"column:shield_battery_bug;default:false" json:"shield_battery_bug"`
	RemainingAborts  int       `gorm:"column:remaining_aborts;default:3" json:"remaining_aborts"`
	State            string    `gorm:"column:state;type:varchar(16);default:idle" json:"state"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Player model
func (Player) TableName() string {
	return "players"
}

// AltNames returns the registered alternate names, empty slots skipped.
func (p *Player) AltNames() []string {
	var alts []string
	if p.AltName1 != "" {
		alts = append(alts, p.AltName1)
	}
	if p.AltName2 != "" {
		alts = append(alts, p.AltName2)
	}
	return alts
}

// Mmr1v1 is the per-(player, race) skill rating row.
type Mmr1v1 struct {
	DiscordUID  int64      `gorm:"column:discord_uid;primaryKey" json:"discord_uid"`
	Race        string     `gorm:"column:race;type:varchar(16);primaryKey" json:"race"`
	Mmr         int        `gorm:"column:mmr;default:1500" json:"mmr"`
	GamesPlayed int        `gorm:"column:games_played;default:0" json:"games_played"`
	GamesWon    int        `gorm:"column:games_won;default:0" json:"games_won"`
	GamesLost   int        `gorm:"column:games_lost;default:0" json:"games_lost"`
	GamesDrawn  int        `gorm:"column:games_drawn;default:0" json:"games_drawn"`
	LastPlayed  *time.Time `gorm:"column:last_played" json:"last_played,omitempty"`
}

// TableName specifies the table name for Mmr1v1 model
func (Mmr1v1) TableName() string {
	return "mmrs_1v1"
}

// Match1v1 is a ladder match. Player1Mmr and Player2Mmr are the
// ratings frozen at creation and never change afterwards.
type Match1v1 struct {
	ID                int64     `gorm:"column:id;primaryKey" json:"id"`
	Player1DiscordUID int64     `gorm:"column:player_1_discord_uid;not null;index:idx_match_p1" json:"player_1_discord_uid"`
	Player2DiscordUID int64     `gorm:"column:player_2_discord_uid;not null;index:idx_match_p2" json:"player_2_discord_uid"`
	Player1Race       string    `gorm:"column:player_1_race;type:varchar(16);not null" json:"player_1_race"`
	Player2Race       string    `gorm:"column:player_2_race;type:varchar(16);not null" json:"player_2_race"`
	MapPlayed         string    `gorm:"column:map_played;type:varchar(64);not null" json:"map_played"`
	ServerUsed        string    `gorm:"column:server_used;type:varchar(8);not null" json:"server_used"`
	PlayedAt          time.Time `gorm:"column:played_at" json:"played_at"`
	Player1Mmr        int       `gorm:"column:player_1_mmr;not null" json:"player_1_mmr"`
	Player2Mmr        int       `gorm:"column:player_2_mmr;not null" json:"player_2_mmr"`
	Player1Report     *int      `gorm:"column:player_1_report" json:"player_1_report,omitempty"`
	Player2Report     *int      `gorm:"column:player_2_report" json:"player_2_report,omitempty"`
	MatchResult       *int      `gorm:"column:match_result" json:"match_result,omitempty"`
	MmrChange         *int      `gorm:"column:mmr_change" json:"mmr_change,omitempty"`
	Player1ReplayPath *string   `gorm:"column:player_1_replay_path;type:varchar(255)" json:"player_1_replay_path,omitempty"`
	Player2ReplayPath *string   `gorm:"column:player_2_replay_path;type:varchar(255)" json:"player_2_replay_path,omitempty"`
	UpdatedAt         time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for Match1v1 model
func (Match1v1) TableName() string {
	return "matches_1v1"
}

// IsTerminal reports whether the match reached a terminal result.
// Conflict (-2) is pending admin resolution and is not terminal.
func (m *Match1v1) IsTerminal() bool {
	if m.MatchResult == nil {
		return false
	}
	switch *m.MatchResult {
	case MatchResultPlayer1Win, MatchResultPlayer2Win, MatchResultDraw, MatchResultInvalidated:
		return true
	}
	return false
}

// HasPlayer reports whether uid is one of the two participants.
func (m *Match1v1) HasPlayer(uid int64) bool {
	return m.Player1DiscordUID == uid || m.Player2DiscordUID == uid
}

// OpponentOf returns the other participant's uid.
func (m *Match1v1) OpponentOf(uid int64) int64 {
	if m.Player1DiscordUID == uid {
		return m.Player2DiscordUID
	}
	return m.Player1DiscordUID
}

// Replay is a parsed replay artifact tied to one side of a match.
type Replay struct {
	Path         string    `gorm:"column:path;type:varchar(255);primaryKey" json:"path"`
	MetadataJSON string    `gorm:"column:metadata_json;type:json" json:"metadata_json"`
	UploadedAt   time.Time `gorm:"column:uploaded_at;autoCreateTime" json:"uploaded_at"`
	UploaderUID  int64     `gorm:"column:uploader_uid;not null;index:idx_replay_uploader" json:"uploader_uid"`
}

// TableName specifies the table name for Replay model
func (Replay) TableName() string {
	return "replays"
}

// AdminAction is an audit row for a privileged operation. It is never
// consulted by core logic.
type AdminAction struct {
	ID                int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AdminDiscordUID   int64     `gorm:"column:admin_discord_uid;not null;index:idx_admin_uid" json:"admin_discord_uid"`
	AdminUsername     string    `gorm:"column:admin_username;type:varchar(100)" json:"admin_username"`
	ActionType        string    `gorm:"column:action_type;type:varchar(32);not null;index:idx_action_type" json:"action_type"`
	TargetPlayerUID   *int64    `gorm:"column:target_player_uid;index:idx_target_player" json:"target_player_uid,omitempty"`
	TargetMatchID     *int64    `gorm:"column:target_match_id;index:idx_target_match" json:"target_match_id,omitempty"`
	ActionDetailsJSON string    `gorm:"column:action_details_json;type:json" json:"action_details_json"`
	Reason            string    `gorm:"column:reason;type:varchar(255)" json:"reason"`
	PerformedAt       time.Time `gorm:"column:performed_at;index:idx_performed_at,sort:desc" json:"performed_at"`
}

// TableName specifies the table name for AdminAction model
func (AdminAction) TableName() string {
	return "admin_actions"
}

// PlayerAction is an audit row for a significant player-initiated
// state change (enqueue, dequeue, report, upload).
type PlayerAction struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	DiscordUID  int64     `gorm:"column:discord_uid;not null;index:idx_player_action_uid" json:"discord_uid"`
	ActionType  string    `gorm:"column:action_type;type:varchar(32);not null" json:"action_type"`
	DetailsJSON string    `gorm:"column:details_json;type:json" json:"details_json"`
	PerformedAt time.Time `gorm:"column:performed_at" json:"performed_at"`
}

// TableName specifies the table name for PlayerAction model
func (PlayerAction) TableName() string {
	return "player_actions"
}

// CommandCall is an audit row for every command surface invocation.
type CommandCall struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	DiscordUID int64     `gorm:"column:discord_uid;not null;index:idx_command_uid" json:"discord_uid"`
	Command    string    `gorm:"column:command;type:varchar(32);not null" json:"command"`
	CalledAt   time.Time `gorm:"column:called_at" json:"called_at"`
}

// TableName specifies the table name for CommandCall model
func (CommandCall) TableName() string {
	return "command_calls"
}
