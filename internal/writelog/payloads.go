package writelog

import (
	"time"

	"ladder-platform/backend/internal/models"
)

// Payload types for each job. Payloads carry absolute values (whole
// rows or final field values), never deltas, so that re-applying a job
// is a no-op.

// PlayerPayload backs create_player and update_player_info.
type PlayerPayload struct {
	Player models.Player `json:"player"`
}

// PlayerStatePayload backs update_player_state.
type PlayerStatePayload struct {
	DiscordUID int64  `json:"discord_uid"`
	State      string `json:"state"`
}

// MmrPayload backs update_mmr with the full rating row.
type MmrPayload struct {
	Rating models.Mmr1v1 `json:"rating"`
}

// MatchPayload backs create_match.
type MatchPayload struct {
	Match models.Match1v1 `json:"match"`
}

// MatchReportPayload backs update_match_report. Slot is 1 or 2.
type MatchReportPayload struct {
	MatchID   int64     `json:"match_id"`
	Slot      int       `json:"slot"`
	Report    *int      `json:"report"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MatchResultPayload backs update_match_result_and_mmr_change.
type MatchResultPayload struct {
	MatchID   int64     `json:"match_id"`
	Result    int       `json:"result"`
	MmrChange int       `json:"mmr_change"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MatchReplayPathPayload backs update_match_replay_path. Slot is 1 or 2.
type MatchReplayPathPayload struct {
	MatchID   int64     `json:"match_id"`
	Slot      int       `json:"slot"`
	Path      string    `json:"path"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdminResolvePayload backs admin_resolve_match. It deliberately does
// not carry player reports: admin resolution must never overwrite the
// historical record of what players claimed. The companion update_mmr
// jobs carry the absolute post-resolution ratings.
type AdminResolvePayload struct {
	MatchID   int64     `json:"match_id"`
	Result    int       `json:"result"`
	MmrChange int       `json:"mmr_change"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReplayPayload backs upsert_replay.
type ReplayPayload struct {
	Replay models.Replay `json:"replay"`
}

// RemainingAbortsPayload backs update_remaining_aborts.
type RemainingAbortsPayload struct {
	DiscordUID      int64 `json:"discord_uid"`
	RemainingAborts int   `json:"remaining_aborts"`
}

// IsBannedPayload backs update_is_banned.
type IsBannedPayload struct {
	DiscordUID int64 `json:"discord_uid"`
	IsBanned   bool  `json:"is_banned"`
}

// ShieldBatteryBugPayload backs update_shield_battery_bug.
type ShieldBatteryBugPayload struct {
	DiscordUID       int64 `json:"discord_uid"`
	ShieldBatteryBug bool  `json:"shield_battery_bug"`
}

// AdminActionPayload backs log_admin_action.
type AdminActionPayload struct {
	Action models.AdminAction `json:"action"`
}

// PlayerActionPayload backs log_player_action.
type PlayerActionPayload struct {
	Action models.PlayerAction `json:"action"`
}

// CommandCallPayload backs log_command_call.
type CommandCallPayload struct {
	Call models.CommandCall `json:"call"`
}
