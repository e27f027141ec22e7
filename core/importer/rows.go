package importer

import (
	"strings"

	"github.com/trezcool/rollcall/core/roster"
)

// Column is one labeled cell of a tabular row. Header is kept verbatim.
type Column struct {
	Header string
	Value  string
}

// RawRow is one extracted row: ordered Columns for tabular sources, a single Raw line otherwise.
type RawRow struct {
	Columns []Column
	Raw     string
}

func (r RawRow) IsStructured() bool { return len(r.Columns) > 0 }

// IsBlank reports whether the row carries no text at all.
func (r RawRow) IsBlank() bool {
	if strings.TrimSpace(r.Raw) != "" {
		return false
	}
	for _, col := range r.Columns {
		if strings.TrimSpace(col.Value) != "" {
			return false
		}
	}
	return true
}

// NormalizedRecord holds the canonical fields recovered from one RawRow.
// Blank fields are absent.
type NormalizedRecord struct {
	Name       string // single-string name, as found
	FirstName  string
	MiddleName string
	LastName   string
	Suffix     string

	StudentID string
	Email     string
	Username  string

	Status  roster.AttendanceStatus
	Remarks string

	Gender        string
	Course        string
	YearLevel     string
	Company       string
	Platoon       string
	Rank          string
	ContactNumber string

	// FreeText is set when the record comes from an unstructured line.
	FreeText bool
}

// HasNameParts reports whether both first and last names are known.
func (rec NormalizedRecord) HasNameParts() bool {
	return rec.FirstName != "" && rec.LastName != ""
}

// IsEmpty reports whether the record has nothing an identity could be resolved from.
func (rec NormalizedRecord) IsEmpty() bool {
	return rec.Name == "" && rec.FirstName == "" && rec.LastName == "" && rec.StudentID == "" && rec.Email == ""
}

// DisplayName is the best human-readable name of the record, used in error messages.
func (rec NormalizedRecord) DisplayName() string {
	if rec.Name != "" {
		return rec.Name
	}
	if name := strings.TrimSpace(rec.FirstName + " " + rec.LastName); name != "" {
		return name
	}
	if rec.StudentID != "" {
		return rec.StudentID
	}
	return rec.Email
}
