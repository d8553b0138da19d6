package domain

import (
	"sort"
	"time"
)

// SnapshotVersion is the current serialised snapshot format.
const SnapshotVersion = 1

// Snapshot is the portable, serialisable form of a whole directory. Slices
// are sorted by ID so encodings are stable.
type Snapshot struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Schools    []School  `json:"schools"`
	Colleges   []College `json:"colleges"`
	Students   []Student `json:"students"`
}

// SnapshotFromView captures every record visible in the view.
func SnapshotFromView(view TransactionView, at time.Time) Snapshot {
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: at,
		Schools:    view.ListSchools(),
		Colleges:   view.ListColleges(),
		Students:   view.ListStudents(),
	}
	sort.Slice(snap.Schools, func(i, j int) bool { return snap.Schools[i].ID < snap.Schools[j].ID })
	sort.Slice(snap.Colleges, func(i, j int) bool { return snap.Colleges[i].ID < snap.Colleges[j].ID })
	sort.Slice(snap.Students, func(i, j int) bool { return snap.Students[i].ID < snap.Students[j].ID })
	return snap
}
