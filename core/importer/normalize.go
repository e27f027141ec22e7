package importer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/trezcool/rollcall/core/roster"
)

// Field is a canonical NormalizedRecord field.
type Field string

// Fields
const (
	FieldName          Field = "name"
	FieldFirstName     Field = "first_name"
	FieldMiddleName    Field = "middle_name"
	FieldLastName      Field = "last_name"
	FieldSuffix        Field = "suffix"
	FieldStudentID     Field = "student_id"
	FieldEmail         Field = "email"
	FieldUsername      Field = "username"
	FieldStatus        Field = "status"
	FieldRemarks       Field = "remarks"
	FieldGender        Field = "gender"
	FieldCourse        Field = "course"
	FieldYearLevel     Field = "year_level"
	FieldCompany       Field = "company"
	FieldPlatoon       Field = "platoon"
	FieldRank          Field = "rank"
	FieldContactNumber Field = "contact_number"
)

// FieldAliases lists, in order of preference, the header keys (see HeaderKey) accepted for Field.
type FieldAliases struct {
	Field   Field
	Aliases []string
}

// Tables holds the lookup tables the normalizer works with.
// DefaultTables returns a fresh copy each time so callers never share mutable state.
type Tables struct {
	Aliases        []FieldAliases
	Statuses       map[string]roster.AttendanceStatus // status cell value (as HeaderKey) -> status
	StatusKeywords map[string]roster.AttendanceStatus // words detected in free text
	Blacklist      map[string]bool                    // lower-cased noise words
	HeaderPhrases  []string                           // lower-cased header/footer phrases
	MinNameLength  int                                // free-text names must be longer than this
}

var (
	defaultAliases = []FieldAliases{
		{FieldName, []string{"name", "fullname", "completename", "cadetname", "studentname", "staffname", "nameofcadet", "nameofstudent", "lastnamefirstname", "surnamefirstname"}},
		{FieldFirstName, []string{"firstname", "givenname", "fname", "first"}},
		{FieldMiddleName, []string{"middlename", "middleinitial", "mname", "mi", "middle"}},
		{FieldLastName, []string{"lastname", "surname", "familyname", "lname", "last"}},
		{FieldSuffix, []string{"suffix", "nameextension", "extension", "ext"}},
		{FieldStudentID, []string{"studentid", "studentno", "studentnumber", "idnumber", "idno", "cadetid", "cadetno", "staffid", "employeeid", "employeeno", "serialnumber", "serialno", "id"}},
		{FieldEmail, []string{"email", "emailaddress", "mail", "gmail", "gsuiteemail"}},
		{FieldUsername, []string{"username", "login", "user"}},
		{FieldStatus, []string{"status", "attendancestatus", "attendance", "presence"}},
		{FieldRemarks, []string{"remarks", "remark", "notes", "note", "comments", "comment"}},
		{FieldGender, []string{"gender", "sex"}},
		{FieldCourse, []string{"course", "program", "courseprogram", "degree"}},
		{FieldYearLevel, []string{"yearlevel", "yearlvl", "year", "yr"}},
		{FieldCompany, []string{"company", "coy", "unit"}},
		{FieldPlatoon, []string{"platoon", "pltn", "plt"}},
		{FieldRank, []string{"rank", "designation"}},
		{FieldContactNumber, []string{"contactnumber", "contactno", "mobilenumber", "mobileno", "phonenumber", "phone", "cellphone", "cpno", "contact"}},
	}

	defaultStatuses = map[string]roster.AttendanceStatus{
		"present":  roster.StatusPresent,
		"p":        roster.StatusPresent,
		"attended": roster.StatusPresent,
		"absent":   roster.StatusAbsent,
		"a":        roster.StatusAbsent,
		"abs":      roster.StatusAbsent,
		"late":     roster.StatusLate,
		"l":        roster.StatusLate,
		"tardy":    roster.StatusLate,
		"excused":  roster.StatusExcused,
		"excuse":   roster.StatusExcused,
		"exc":      roster.StatusExcused,
		"e":        roster.StatusExcused,
	}

	defaultStatusKeywords = map[string]roster.AttendanceStatus{
		"present": roster.StatusPresent,
		"absent":  roster.StatusAbsent,
		"late":    roster.StatusLate,
		"excused": roster.StatusExcused,
	}

	defaultBlacklist = []string{
		"attendance", "sheet", "signature", "battalion", "regiment", "brigade", "corps", "unit",
		"company", "platoon", "squad", "rotc", "nstp", "cwts", "cadet", "officer", "commandant",
		"instructor", "staff", "training", "day", "date", "time", "name", "student", "id", "no",
		"number", "status", "remark", "present", "absent", "late", "excused", "total", "list",
		"roster", "report", "summary", "record", "page", "course", "year", "section", "semester",
		"school", "university", "college", "class", "prepared", "checked", "approved", "noted",
		"certified", "correct", "by", "of", "the", "and", "for", "first", "last", "middle",
	}

	defaultHeaderPhrases = []string{
		"page of", "generated by", "generated on", "printed on", "printed by", "date printed",
		"prepared by", "checked by", "noted by", "approved by", "certified correct", "as of",
	}
)

// DefaultTables returns the built-in alias, status and noise tables.
func DefaultTables() Tables {
	aliases := make([]FieldAliases, len(defaultAliases))
	for i, fa := range defaultAliases {
		aliases[i] = FieldAliases{Field: fa.Field, Aliases: append([]string(nil), fa.Aliases...)}
	}
	statuses := make(map[string]roster.AttendanceStatus, len(defaultStatuses))
	for k, v := range defaultStatuses {
		statuses[k] = v
	}
	keywords := make(map[string]roster.AttendanceStatus, len(defaultStatusKeywords))
	for k, v := range defaultStatusKeywords {
		keywords[k] = v
	}
	blacklist := make(map[string]bool, len(defaultBlacklist))
	for _, w := range defaultBlacklist {
		blacklist[w] = true
	}

	return Tables{
		Aliases:        aliases,
		Statuses:       statuses,
		StatusKeywords: keywords,
		Blacklist:      blacklist,
		HeaderPhrases:  append([]string(nil), defaultHeaderPhrases...),
		MinNameLength:  3,
	}
}

var (
	emailRe       = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	wordRe        = regexp.MustCompile(`\pL+`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	leadingJunkRe = regexp.MustCompile(`^[\s.,\-]+`)
	trailingRe    = regexp.MustCompile(`[\s.,\-]+$`)
)

// HeaderKey folds a column header (or status cell) for alias lookup: lower case, letters and digits only.
func HeaderKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize maps row onto the canonical fields, using tables for header aliases and noise filtering.
func Normalize(row RawRow, tables Tables) NormalizedRecord {
	if row.IsStructured() {
		return normalizeColumns(row.Columns, tables)
	}
	return normalizeLine(row.Raw, tables)
}

func normalizeColumns(cols []Column, tables Tables) NormalizedRecord {
	byKey := make(map[string]string, len(cols))
	for _, col := range cols {
		key := HeaderKey(col.Header)
		if _, dup := byKey[key]; key == "" || dup {
			continue // first column wins on duplicated headers
		}
		byKey[key] = collapse(col.Value)
	}

	lookup := func(fa FieldAliases) string {
		for _, alias := range fa.Aliases {
			if v, ok := byKey[alias]; ok && v != "" {
				return v
			}
		}
		return ""
	}

	rec := NormalizedRecord{Status: roster.StatusUnknown}
	for _, fa := range tables.Aliases {
		v := lookup(fa)
		if v == "" {
			continue
		}
		switch fa.Field {
		case FieldName:
			rec.Name = v
		case FieldFirstName:
			rec.FirstName = v
		case FieldMiddleName:
			rec.MiddleName = v
		case FieldLastName:
			rec.LastName = v
		case FieldSuffix:
			rec.Suffix = v
		case FieldStudentID:
			rec.StudentID = v
		case FieldEmail:
			rec.Email = strings.ToLower(v)
		case FieldUsername:
			rec.Username = v
		case FieldStatus:
			if st, ok := tables.Statuses[HeaderKey(v)]; ok {
				rec.Status = st
			}
		case FieldRemarks:
			rec.Remarks = v
		case FieldGender:
			rec.Gender = v
		case FieldCourse:
			rec.Course = v
		case FieldYearLevel:
			rec.YearLevel = v
		case FieldCompany:
			rec.Company = v
		case FieldPlatoon:
			rec.Platoon = v
		case FieldRank:
			rec.Rank = v
		case FieldContactNumber:
			rec.ContactNumber = v
		}
	}
	return rec
}

func normalizeLine(line string, tables Tables) NormalizedRecord {
	rec := NormalizedRecord{Status: roster.StatusUnknown, FreeText: true}

	if email := emailRe.FindString(line); email != "" {
		rec.Email = strings.ToLower(email)
	}
	line = emailRe.ReplaceAllString(line, " ")

	// the first status keyword wins and is cut out of the line
	for _, loc := range wordRe.FindAllStringIndex(line, -1) {
		if st, ok := tables.StatusKeywords[strings.ToLower(line[loc[0]:loc[1]])]; ok {
			rec.Status = st
			line = line[:loc[0]] + " " + line[loc[1]:]
			break
		}
	}

	var b strings.Builder
	b.Grow(len(line))
	for _, r := range line {
		switch {
		case unicode.IsDigit(r):
		case unicode.IsLetter(r), unicode.IsSpace(r), r == ',', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	candidate := collapse(b.String())
	candidate = leadingJunkRe.ReplaceAllString(candidate, "")
	candidate = strings.TrimSpace(trailingRe.ReplaceAllString(candidate, ""))

	if isNoise(candidate, tables) || utf8.RuneCountInString(candidate) <= tables.MinNameLength {
		return rec
	}
	rec.Name = candidate
	return rec
}

// isNoise reports whether candidate is header/footer vocabulary rather than a name.
func isNoise(candidate string, tables Tables) bool {
	lower := strings.ToLower(candidate)
	if isBlacklisted(strings.Trim(lower, " .,-"), tables.Blacklist) {
		return true
	}

	padded := " " + strings.Join(wordRe.FindAllString(lower, -1), " ") + " "
	for _, phrase := range tables.HeaderPhrases {
		if strings.Contains(padded, " "+phrase+" ") {
			return true
		}
	}

	words := wordRe.FindAllString(lower, -1)
	if len(words) == 0 {
		return true
	}
	for _, w := range words {
		if !isBlacklisted(w, tables.Blacklist) {
			return false
		}
	}
	return true
}

func isBlacklisted(s string, blacklist map[string]bool) bool {
	if blacklist[s] {
		return true
	}
	if strings.HasSuffix(s, "es") && blacklist[strings.TrimSuffix(s, "es")] {
		return true
	}
	return strings.HasSuffix(s, "s") && blacklist[strings.TrimSuffix(s, "s")]
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
