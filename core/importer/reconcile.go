package importer

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"

	"github.com/trezcool/rollcall/core/roster"
)

const maxUsernameAttempts = 6

var (
	// errors
	ErrNoIdentifier      = errors.New("cannot create without identifier")
	ErrUsernameExhausted = errors.New("no free username left to try")

	// randSuffixFunc is the last resort of the username cascade; replaced in tests.
	randSuffixFunc = func() string { return fmt.Sprintf("%04d", rand.Intn(10000)) }
)

// Outcome is what happened to one row.
type Outcome string

// Outcomes
const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Reconciler creates or updates roster identities with their login account and grade aggregate.
type Reconciler struct {
	repo         roster.Repository
	passwordCost int
}

func NewReconciler(repo roster.Repository, passwordCost int) *Reconciler {
	return &Reconciler{repo: repo, passwordCost: passwordCost}
}

// Reconcile upserts the identity described by rec and ensures its LoginAccount and GradeAggregate.
// match is the resolver output for rec; StrategyNone means a new identity is needed.
func (rc *Reconciler) Reconcile(ctx context.Context, role roster.Role, rec NormalizedRecord, match MatchResult) (roster.Identity, Outcome, error) {
	var (
		ident   roster.Identity
		outcome Outcome
		err     error
	)

	if match.Matched() {
		ident = *match.Identity
		if match.Strategy == StrategyFuzzyName {
			// fuzzy matches come from the batch snapshot; earlier rows may have updated the identity since
			if ident, err = rc.repo.GetIdentity(ctx, roster.GetFilter{ID: match.Identity.ID}); err != nil {
				return roster.Identity{}, OutcomeFailed, errors.Wrap(err, "reloading identity")
			}
		}
		if applyRecord(&ident, rec, match.Strategy) {
			if ident, err = rc.repo.UpdateIdentity(ctx, ident); err != nil {
				return roster.Identity{}, OutcomeFailed, errors.Wrap(err, "updating identity")
			}
			outcome = OutcomeUpdated
		} else {
			outcome = OutcomeUnchanged
		}
	} else {
		if rec.StudentID == "" {
			return roster.Identity{}, OutcomeFailed, ErrNoIdentifier
		}
		if ident, err = rc.repo.CreateIdentity(ctx, newIdentity(role, rec)); err != nil {
			return roster.Identity{}, OutcomeFailed, errors.Wrap(err, "creating identity")
		}
		outcome = OutcomeCreated
	}

	acct, err := rc.ensureLoginAccount(ctx, ident, rec)
	if err != nil {
		return ident, OutcomeFailed, err
	}
	if acct.IsApproved {
		if err = rc.repo.EnsureGradeAggregate(ctx, ident.ID); err != nil {
			return ident, OutcomeFailed, errors.Wrap(err, "ensuring grade aggregate")
		}
	}
	return ident, outcome, nil
}

func newIdentity(role roster.Role, rec NormalizedRecord) roster.Identity {
	first, last := rec.FirstName, rec.LastName
	if first == "" && last == "" && rec.Name != "" {
		first, last = SplitName(rec.Name)
	}
	return roster.Identity{
		Role:          role,
		StudentID:     rec.StudentID,
		FirstName:     first,
		MiddleName:    rec.MiddleName,
		LastName:      last,
		Suffix:        rec.Suffix,
		Email:         rec.Email,
		Gender:        rec.Gender,
		Course:        rec.Course,
		YearLevel:     rec.YearLevel,
		Company:       rec.Company,
		Platoon:       rec.Platoon,
		Rank:          rec.Rank,
		ContactNumber: rec.ContactNumber,
	}
}

// applyRecord copies the non-blank fields of rec onto ident and reports whether anything changed.
// Names only come from explicit name columns and the student id is only filled when missing.
func applyRecord(ident *roster.Identity, rec NormalizedRecord, strategy Strategy) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}

	if !rec.FreeText && strategy != StrategyFuzzyName {
		set(&ident.FirstName, rec.FirstName)
		set(&ident.MiddleName, rec.MiddleName)
		set(&ident.LastName, rec.LastName)
		set(&ident.Suffix, rec.Suffix)
	}
	if ident.StudentID == "" {
		set(&ident.StudentID, rec.StudentID)
	}
	set(&ident.Email, rec.Email)
	set(&ident.Gender, rec.Gender)
	set(&ident.Course, rec.Course)
	set(&ident.YearLevel, rec.YearLevel)
	set(&ident.Company, rec.Company)
	set(&ident.Platoon, rec.Platoon)
	set(&ident.Rank, rec.Rank)
	set(&ident.ContactNumber, rec.ContactNumber)
	return changed
}

// ensureLoginAccount returns the LoginAccount of ident, creating an approved one if missing.
// Username conflicts walk the cascade built by usernameCandidates.
func (rc *Reconciler) ensureLoginAccount(ctx context.Context, ident roster.Identity, rec NormalizedRecord) (roster.LoginAccount, error) {
	acct, err := rc.repo.GetLoginAccount(ctx, ident.ID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, roster.ErrNotFound) {
		return roster.LoginAccount{}, errors.Wrap(err, "getting login account")
	}

	acct = roster.LoginAccount{
		IdentityID: ident.ID,
		Role:       ident.Role.LoginRole(),
		IsApproved: true,
	}
	if err = acct.SetPlaceholderPassword(uuid.NewString(), rc.passwordCost); err != nil {
		return roster.LoginAccount{}, errors.Wrap(err, "hashing placeholder password")
	}

	tried := make(map[string]bool, maxUsernameAttempts)
	candidates := usernameCandidates(ident, rec)
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		var username string
		if attempt < len(candidates) {
			username = candidates[attempt]
		} else {
			username = candidates[0] + randSuffixFunc()
		}
		if tried[username] {
			continue
		}
		tried[username] = true

		acct.Username = username
		created, err := rc.repo.CreateLoginAccount(ctx, acct)
		if err == nil {
			return created, nil
		}
		var cErr *roster.ConflictError
		if !errors.As(err, &cErr) {
			return roster.LoginAccount{}, errors.Wrap(err, "creating login account")
		}
		if cErr.Field == "identity_id" {
			// created concurrently
			return rc.repo.GetLoginAccount(ctx, ident.ID)
		}
	}
	return roster.LoginAccount{}, errors.Wrapf(ErrUsernameExhausted, "after %d attempts", maxUsernameAttempts)
}

// usernameCandidates returns, deduplicated and in order: the base username,
// the base with a numeric suffix, first.last and last.first.
// The base is the explicit username, else the first name, else the student id.
func usernameCandidates(ident roster.Identity, rec NormalizedRecord) []string {
	base := slugify(rec.Username)
	if base == "" {
		base = slugify(ident.FirstName)
	}
	if base == "" {
		base = slugify(ident.StudentID)
	}
	if base == "" {
		base = "user"
	}

	suffix := lastDigits(ident.StudentID, 4)
	if suffix == "" {
		suffix = "2"
	}

	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(base)
	add(base + suffix)
	first, last := slugify(ident.FirstName), slugify(ident.LastName)
	if first != "" && last != "" {
		add(first + "." + last)
		add(last + "." + first)
	}
	return out
}

// slugify lower-cases s, strips diacritics and keeps [a-z0-9._] only.
func slugify(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

func lastDigits(s string, n int) string {
	var digits []rune
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) > n {
		digits = digits[len(digits)-n:]
	}
	return string(digits)
}
