package lecture

import (
	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/core/branch"
	"github.com/trezcool/hazira/core/teacher"
)

// CatalogEntry is a SubjectRow annotated with whether it is the active subject of its semester.
type CatalogEntry struct {
	SubjectRow
	Active bool `json:"active"`
}

// BuildCatalog flattens branches into one row per subject, in taxonomy order,
// with the names of every teacher assigned to it.
func BuildCatalog(branches []branch.Branch, teachers []teacher.Teacher) []SubjectRow {
	var rows []SubjectRow
	for _, b := range branches {
		for _, sem := range b.Semesters {
			for _, subject := range sem.Subjects {
				row := SubjectRow{
					BranchID:      b.ID,
					BranchName:    b.Name,
					SemesterID:    sem.ID,
					SemesterLabel: sem.Label,
					Subject:       subject,
					TeacherNames:  []string{},
				}
				for _, t := range teachers {
					if t.Assignments.Has(b.ID, sem.ID.String(), subject) {
						row.TeacherNames = append(row.TeacherNames, t.Name)
					}
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}

// FilterCatalog keeps the rows whose subject, branch name or semester label contains query, ignoring case.
func FilterCatalog(rows []SubjectRow, query string) []SubjectRow {
	query = core.CleanString(query)
	if query == "" {
		return rows
	}
	filtered := make([]SubjectRow, 0, len(rows))
	for _, row := range rows {
		if core.ContainsFold(row.Subject, query) ||
			core.ContainsFold(row.BranchName, query) ||
			core.ContainsFold(row.SemesterLabel, query) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

// FindRow returns the catalog row selected by act.
func FindRow(rows []SubjectRow, act Activation) (SubjectRow, bool) {
	for _, row := range rows {
		if row.BranchID == act.BranchID && row.SemesterID.String() == act.SemesterID && row.Subject == act.Subject {
			return row, true
		}
	}
	return SubjectRow{}, false
}

func MarkActive(rows []SubjectRow, markers Markers) []CatalogEntry {
	entries := make([]CatalogEntry, len(rows))
	for i, row := range rows {
		entries[i] = CatalogEntry{SubjectRow: row, Active: markers.IsActive(row.CounterKey())}
	}
	return entries
}
