package writelog

import (
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ladder-platform/backend/internal/models"
)

// DBApplier applies write-log jobs to the main SQL database. Every
// branch is an upsert or an absolute-value update so that replaying a
// job after a crash cannot drift the database.
type DBApplier struct {
	db *gorm.DB
}

// NewDBApplier creates an applier over the main database handle.
func NewDBApplier(db *gorm.DB) *DBApplier {
	return &DBApplier{db: db}
}

// Apply dispatches one job to its idempotent database action.
func (a *DBApplier) Apply(job *Job) error {
	data := []byte(job.DataJSON)

	switch job.JobType {
	case JobCreatePlayer, JobUpdatePlayerInfo:
		var p PlayerPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return a.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&p.Player).Error

	case JobUpdatePlayerState:
		var p PlayerStatePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return a.db.Model(&models.Player{}).Where("discord_uid = ?", p.DiscordUID).
			Update("state", p.State).Error

	case JobUpdateMmr:
		var p MmrPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return a.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&p.Rating).Error

	case JobCreateMatch:
		var p MatchPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return a.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&p.Match).Error

	case JobUpdateMatchReport:
		var p MatchReportPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		column := "player_1_report"
		if p.Slot == 2 {
			column = "player_2_report"
		}
		return a.db.Model(&models.Match1v1{}).Where("id = ?", p.MatchID).
			Updates(map[string]interface{}{column: p.Report, "updated_at": p.UpdatedAt}).Error

	case JobUpdateMatchResultAndMmr:
		var p MatchResultPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return a.db.Model(&models.Match1v1{}).Where("id = ?", p.MatchID).
			Updates(map[string]interface{}{
				"match_result": p.Result,
				"mmr_change":   p.MmrChange,
				"updated_at":   p.UpdatedAt,
			}).Error

	case JobUpdateMatchReplayPath:
		var p MatchReplayPathPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		column := "player_1_replay_path"
		if p.Slot == 2 {
			column = "player_2_replay_path"
		}
		return a.db.Model(&models.Match1v1{}).Where("id = ?", p.MatchID).
			Updates(map[string]interface{}{column: p.Path, "updated_at": p.UpdatedAt}).Error

	case JobAdminResolveMatch:
		var p AdminResolvePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		// Reports are intentionally left untouched.
		return a.db.Model(&models.Match1v1{}).Where("id = ?", p.MatchID).
			Updates(map[string]interface{}{
				"match_result": p.Result,
				"mmr_change":   p.MmrChange,
				"updated_at":   p.UpdatedAt,
			}).Error

	case JobUpsertReplay:
		var p ReplayPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return a.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&p.Replay).Error

	case JobUpdateRemainingAborts:
		var p RemainingAbortsPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return a.db.Model(&models.Player{}).Where("discord_uid = ?", p.DiscordUID).
			Update("remaining_aborts", p.RemainingAborts).Error

	case JobUpdateIsBanned:
		var p IsBannedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return a.db.Model(&models.Player{}).Where("discord_uid = ?", p.DiscordUID).
			Update("is_banned", p.IsBanned).Error

	case JobUpdateShieldBatteryBug:
		var p ShieldBatteryBugPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return a.db.Model(&models.Player{}).Where("discord_uid = ?", p.DiscordUID).
			Update("shield_battery_bug", p.ShieldBatteryBug).Error

	case JobLogAdminAction:
		var p AdminActionPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		// The write-log id doubles as the audit row id so a replayed
		// job upserts instead of duplicating.
		p.Action.ID = job.ID
		return a.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&p.Action).Error

	case JobLogPlayerAction:
		var p PlayerActionPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		p.Action.ID = job.ID
		return a.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&p.Action).Error

	case JobLogCommandCall:
		var p CommandCallPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		p.Call.ID = job.ID
		return a.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&p.Call).Error
	}

	return fmt.Errorf("unknown job type %q", job.JobType)
}
