package ladder

import (
	"context"

	"ladder-platform/backend/internal/catalog"
	"ladder-platform/backend/internal/models"
	"ladder-platform/backend/internal/store"
	"ladder-platform/backend/internal/validation"
)

// RatingView is one race line of a player profile.
type RatingView struct {
	Race        string `json:"race"`
	ShortName   string `json:"short_name"`
	Mmr         int    `json:"mmr"`
	GamesPlayed int    `json:"games_played"`
	GamesWon    int    `json:"games_won"`
	GamesLost   int    `json:"games_lost"`
	GamesDrawn  int    `json:"games_drawn"`
	Rank        int    `json:"rank"`
}

// ProfileView is the read-only projection behind the profile command.
type ProfileView struct {
	DiscordUID      int64        `json:"discord_uid"`
	PlayerName      string       `json:"player_name"`
	Battletag       string       `json:"battletag,omitempty"`
	Country         string       `json:"country"`
	Region          string       `json:"region"`
	RemainingAborts int          `json:"remaining_aborts"`
	State           string       `json:"state"`
	Ratings         []RatingView `json:"ratings"`
}

// Profile returns a player's profile with per-race ratings and ranks.
func (s *Service) Profile(ctx context.Context, uid int64) (ProfileView, error) {
	s.touch(ctx, uid, "profile")
	p, ok := s.store.Player(uid)
	if !ok {
		return ProfileView{}, wrapErr(store.ErrPlayerNotFound)
	}
	view := ProfileView{
		DiscordUID:      p.DiscordUID,
		PlayerName:      p.PlayerName,
		Battletag:       p.Battletag,
		Country:         p.Country,
		Region:          p.Region,
		RemainingAborts: p.RemainingAborts,
		State:           p.State,
	}
	for _, r := range s.store.Ratings(uid) {
		race := catalog.Race(r.Race)
		view.Ratings = append(view.Ratings, RatingView{
			Race:        r.Race,
			ShortName:   catalog.RaceShortName(race),
			Mmr:         r.Mmr,
			GamesPlayed: r.GamesPlayed,
			GamesWon:    r.GamesWon,
			GamesLost:   r.GamesLost,
			GamesDrawn:  r.GamesDrawn,
			Rank:        s.store.RankOf(uid, race),
		})
	}
	return view, nil
}

// LeaderboardRow is one line of a race leaderboard.
type LeaderboardRow struct {
	Rank        int    `json:"rank"`
	DiscordUID  int64  `json:"discord_uid"`
	PlayerName  string `json:"player_name"`
	Mmr         int    `json:"mmr"`
	GamesPlayed int    `json:"games_played"`
}

// Leaderboard returns the top players for one race, MMR descending.
func (s *Service) Leaderboard(race string, limit int) ([]LeaderboardRow, error) {
	races, err := validation.ValidateRaceSelection([]string{race})
	if err != nil {
		return nil, newError(KindValidation, err, err.Error())
	}
	rows := s.store.Leaderboard(races[0], limit)
	out := make([]LeaderboardRow, 0, len(rows))
	for i, r := range rows {
		name := ""
		if p, ok := s.store.Player(r.DiscordUID); ok {
			name = p.PlayerName
		}
		out = append(out, LeaderboardRow{
			Rank:        i + 1,
			DiscordUID:  r.DiscordUID,
			PlayerName:  name,
			Mmr:         r.Mmr,
			GamesPlayed: r.GamesPlayed,
		})
	}
	return out, nil
}

// MatchView is the read-only projection of one match.
type MatchView struct {
	models.Match1v1
}

// Match returns one match row.
func (s *Service) Match(matchID int64) (MatchView, error) {
	m, ok := s.store.Match(matchID)
	if !ok {
		return MatchView{}, wrapErr(store.ErrMatchNotFound)
	}
	return MatchView{Match1v1: m}, nil
}

// QueueStatus summarizes the waiting queue for ops and the status
// command.
type QueueStatus struct {
	Size       int     `json:"size"`
	Population int     `json:"population"`
	Waiting    []int64 `json:"waiting"`
}

// Status reports the current queue occupancy and effective population.
func (s *Service) Status(ctx context.Context) QueueStatus {
	snapshot := s.queue.Snapshot()
	waiting := make([]int64, 0, len(snapshot))
	for _, e := range snapshot {
		waiting = append(waiting, e.UID)
	}
	return QueueStatus{
		Size:       len(snapshot),
		Population: s.presence.Population(ctx),
		Waiting:    waiting,
	}
}

// CommandHelp is one help entry.
type CommandHelp struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Help lists the player-facing commands.
func Help() []CommandHelp {
	return []CommandHelp{
		{Name: "setup", Description: "register your name, tag, country and region"},
		{Name: "setcountry", Description: "change your country"},
		{Name: "accept_terms", Description: "accept the ladder terms"},
		{Name: "queue", Description: "enter the 1v1 queue with one or more races"},
		{Name: "dequeue", Description: "leave the queue"},
		{Name: "report_result", Description: "report win, loss, draw or abort for your match"},
		{Name: "upload_replay", Description: "attach a replay to your match"},
		{Name: "profile", Description: "show your ratings and ranks"},
		{Name: "leaderboard", Description: "show the top players for a race"},
	}
}
