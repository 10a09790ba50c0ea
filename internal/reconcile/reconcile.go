// Package reconcile computes what a settings save changes. The settings
// service logs the delta so a toggle can be traced to the save that made it.
package reconcile

import (
	"sort"

	"pixelflow-proxy/internal/model"
)

// FlagDiff describes class keys switched by a save.
type FlagDiff struct {
	Enabled  []model.ClassKey // Off before, on after
	Disabled []model.ClassKey // On before, off after
}

// IsEmpty returns true if no key changed state.
func (d *FlagDiff) IsEmpty() bool {
	return len(d.Enabled) == 0 && len(d.Disabled) == 0
}

// Names returns the changed keys as strings, enabled first.
func (d *FlagDiff) Names() (enabled, disabled []string) {
	for _, k := range d.Enabled {
		enabled = append(enabled, string(k))
	}
	for _, k := range d.Disabled {
		disabled = append(disabled, string(k))
	}
	return enabled, disabled
}

// DiffClasses compares two class option sets using their fail-open reading,
// so an absent key and an explicit 1 are the same state.
func DiffClasses(current, desired model.ClassOptions) *FlagDiff {
	return diffFlags(current.Enabled, desired.Enabled)
}

// DiffDebug compares two debug option sets using their fail-closed reading.
func DiffDebug(current, desired model.DebugOptions) *FlagDiff {
	return diffFlags(current.Enabled, desired.Enabled)
}

// diffFlags walks the known key space in settings-page order, so the
// result is deterministic.
func diffFlags(current, desired func(model.ClassKey) bool) *FlagDiff {
	diff := &FlagDiff{}
	for _, key := range model.ClassKeys {
		was, is := current(key), desired(key)
		switch {
		case !was && is:
			diff.Enabled = append(diff.Enabled, key)
		case was && !is:
			diff.Disabled = append(diff.Disabled, key)
		}
	}
	return diff
}

// GeneralChanges returns the JSON names of the general toggles that differ.
func GeneralChanges(current, desired model.GeneralOptions) []string {
	var changed []string
	if current.Enabled != desired.Enabled {
		changed = append(changed, "enabled")
	}
	if current.WooEnabled != desired.WooEnabled {
		changed = append(changed, "woo_enabled")
	}
	if current.WooPurchaseTracking != desired.WooPurchaseTracking {
		changed = append(changed, "woo_purchase_tracking")
	}
	if current.DebugEnabled != desired.DebugEnabled {
		changed = append(changed, "debug_enabled")
	}
	if current.RemoveOnUninstall != desired.RemoveOnUninstall {
		changed = append(changed, "remove_on_uninstall")
	}
	if roles := DiffRoles(current.ExcludedUserRoles, desired.ExcludedUserRoles); !roles.IsEmpty() {
		changed = append(changed, "excluded_user_roles")
	}
	return changed
}

// RoleDiff describes changes to the excluded role list.
type RoleDiff struct {
	Added   []string // Roles in desired but not current
	Removed []string // Roles in current but not desired
}

// IsEmpty returns true if the role sets are equal.
func (d *RoleDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// DiffRoles computes the set difference between two role lists.
func DiffRoles(current, desired []string) *RoleDiff {
	diff := &RoleDiff{}

	currentSet := make(map[string]bool)
	for _, role := range current {
		currentSet[role] = true
	}

	desiredSet := make(map[string]bool)
	for _, role := range desired {
		desiredSet[role] = true
	}

	for role := range desiredSet {
		if !currentSet[role] {
			diff.Added = append(diff.Added, role)
		}
	}
	for role := range currentSet {
		if !desiredSet[role] {
			diff.Removed = append(diff.Removed, role)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	return diff
}
