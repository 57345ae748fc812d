package ladder

import (
	"context"

	"ladder-platform/backend/internal/catalog"
	"ladder-platform/backend/internal/validation"
)

// Admin command pass-throughs. The admin service holds the logic; the
// facade adds the audit of the call itself and the error taxonomy.

func (s *Service) AdminResolve(ctx context.Context, adminUID, matchID int64, result int, reason string) error {
	s.touch(ctx, adminUID, "admin.resolve")
	return wrapErr(s.admins.Resolve(adminUID, matchID, result, reason))
}

func (s *Service) AdminAdjustMMR(ctx context.Context, adminUID, targetUID int64, race, mode string, value int, reason string) error {
	s.touch(ctx, adminUID, "admin.adjust_mmr")
	races, err := validation.ValidateRaceSelection([]string{race})
	if err != nil {
		return newError(KindValidation, err, err.Error())
	}
	return wrapErr(s.admins.AdjustMMR(adminUID, targetUID, races[0], mode, value, reason))
}

func (s *Service) AdminRemoveFromQueue(ctx context.Context, adminUID, targetUID int64, reason string) error {
	s.touch(ctx, adminUID, "admin.remove_queue")
	return wrapErr(s.admins.RemoveFromQueue(adminUID, targetUID, reason))
}

func (s *Service) AdminResetAborts(ctx context.Context, adminUID, targetUID int64, value int, reason string) error {
	s.touch(ctx, adminUID, "admin.reset_aborts")
	return wrapErr(s.admins.ResetAborts(adminUID, targetUID, value, reason))
}

func (s *Service) AdminToggleBan(ctx context.Context, adminUID, targetUID int64, reason string) (bool, error) {
	s.touch(ctx, adminUID, "admin.toggle_ban")
	banned, err := s.admins.ToggleBan(adminUID, targetUID, reason)
	return banned, wrapErr(err)
}

func (s *Service) AdminUnblock(ctx context.Context, adminUID, targetUID int64, reason string) error {
	s.touch(ctx, adminUID, "admin.unblock")
	return wrapErr(s.admins.Unblock(adminUID, targetUID, reason))
}

func (s *Service) AdminClearQueue(ctx context.Context, adminUID int64, reason string) (int, error) {
	s.touch(ctx, adminUID, "admin.clear_queue")
	n, err := s.admins.ClearQueue(adminUID, reason)
	return n, wrapErr(err)
}

func (s *Service) OwnerToggleAdmin(ctx context.Context, ownerUID, targetUID int64, targetName string) (bool, error) {
	s.touch(ctx, ownerUID, "owner.toggle_admin")
	isAdmin, err := s.admins.ToggleAdmin(ownerUID, targetUID, targetName)
	return isAdmin, wrapErr(err)
}

// IsAdmin reports whether a caller may use the admin surface.
func (s *Service) IsAdmin(uid int64) bool {
	return s.admins.Allowlist().IsAdmin(uid)
}

// Races lists the selectable race codes with short names. Used by the
// presentation layer to render pickers.
func (s *Service) Races() map[string]string {
	out := make(map[string]string, len(catalog.Races()))
	for _, r := range catalog.Races() {
		out[string(r)] = catalog.RaceShortName(r)
	}
	return out
}
