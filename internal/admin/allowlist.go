// Package admin implements the privileged command surface: match
// resolution, rating adjustments, queue intervention and bans, all
// gated by a file-backed allowlist and recorded in the audit trail.
package admin

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
)

// Allowlist roles.
const (
	RoleAdmin = "admin"
	RoleOwner = "owner"
)

// AllowlistEntry is one privileged user.
type AllowlistEntry struct {
	DiscordID int64  `json:"discord_id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

// Allowlist is the set of privileged users, loaded from a JSON file at
// startup. Owners can toggle admin membership at runtime; changes are
// written back to the file.
type Allowlist struct {
	mu      sync.RWMutex
	path    string
	entries map[int64]AllowlistEntry
}

// LoadAllowlist reads the allowlist file. A missing file yields an
// empty allowlist rather than an error, so fresh deployments boot.
func LoadAllowlist(path string) (*Allowlist, error) {
	a := &Allowlist{path: path, entries: make(map[int64]AllowlistEntry)}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("[ADMIN] allowlist file %s not found, starting empty", path)
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read allowlist: %w", err)
	}
	var entries []AllowlistEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("malformed allowlist file: %w", err)
	}
	for _, e := range entries {
		if e.Role != RoleAdmin && e.Role != RoleOwner {
			return nil, fmt.Errorf("allowlist entry %d has unknown role %q", e.DiscordID, e.Role)
		}
		a.entries[e.DiscordID] = e
	}
	log.Printf("[ADMIN] loaded %d allowlist entries from %s", len(a.entries), path)
	return a, nil
}

// IsAdmin reports whether uid holds admin privileges. Owners are
// admins too.
func (a *Allowlist) IsAdmin(uid int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.entries[uid]
	return ok
}

// IsOwner reports whether uid is an owner.
func (a *Allowlist) IsOwner(uid int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.entries[uid]
	return ok && e.Role == RoleOwner
}

// Name returns the allowlist display name for uid, if present.
func (a *Allowlist) Name(uid int64) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.entries[uid].Name
}

// Entries returns a copy of all allowlist entries.
func (a *Allowlist) Entries() []AllowlistEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]AllowlistEntry, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e)
	}
	return out
}

// Toggle adds uid as an admin, or removes them if already present.
// Owners cannot be removed this way. Returns true when the uid is an
// admin after the call.
func (a *Allowlist) Toggle(uid int64, name string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.entries[uid]; ok {
		if e.Role == RoleOwner {
			return true, fmt.Errorf("cannot remove owner %d from the allowlist", uid)
		}
		delete(a.entries, uid)
		return false, a.saveLocked()
	}
	a.entries[uid] = AllowlistEntry{DiscordID: uid, Name: name, Role: RoleAdmin}
	return true, a.saveLocked()
}

func (a *Allowlist) saveLocked() error {
	entries := make([]AllowlistEntry, 0, len(a.entries))
	for _, e := range a.entries {
		entries = append(entries, e)
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(a.path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to save allowlist: %w", err)
	}
	return nil
}
