package roster

import (
	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/attendance"
)

// Partition splits a roster into the users with an attendance record and those without.
type Partition struct {
	Present []attendance.User `json:"present"`
	Absent  []attendance.User `json:"absent"`
}

// Reconcile joins users and records on the user ID.
// Both halves keep the roster order; membership does not depend on the order of either input.
func Reconcile(users []attendance.User, records []attendance.Record) Partition {
	recorded := make(map[int]struct{}, len(records))
	for _, rec := range records {
		recorded[rec.UserID] = struct{}{}
	}

	p := Partition{
		Present: make([]attendance.User, 0, len(recorded)),
		Absent:  make([]attendance.User, 0, len(users)),
	}
	for _, usr := range users {
		if _, ok := recorded[usr.ID]; ok {
			p.Present = append(p.Present, usr)
		} else {
			p.Absent = append(p.Absent, usr)
		}
	}
	return p
}

// Filter returns the users whose name or email contains query, ignoring case.
// A blank query matches everyone.
func Filter(users []attendance.User, query string) []attendance.User {
	query = core.CleanString(query)
	if query == "" {
		return users
	}
	filtered := make([]attendance.User, 0, len(users))
	for _, usr := range users {
		if core.ContainsFold(usr.Name, query) || core.ContainsFold(usr.Email, query) {
			filtered = append(filtered, usr)
		}
	}
	return filtered
}
