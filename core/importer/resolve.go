package importer

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pkg/errors"
	"golang.org/x/text/cases"

	"github.com/trezcool/rollcall/core/roster"
)

// Strategy names the resolver step that produced a MatchResult.
type Strategy int

// Strategies, in cascade order.
const (
	StrategyNone Strategy = iota
	StrategyFuzzyName
	StrategyStudentID
	StrategyEmail
	StrategyExactName
)

func (s Strategy) String() string {
	switch s {
	case StrategyFuzzyName:
		return "fuzzy_name"
	case StrategyStudentID:
		return "student_id"
	case StrategyEmail:
		return "email"
	case StrategyExactName:
		return "exact_name"
	default:
		return "none"
	}
}

// MatchResult is the outcome of resolving one NormalizedRecord.
// Identity is nil iff Strategy is StrategyNone.
type MatchResult struct {
	Identity *roster.Identity
	Strategy Strategy
	Distance int // edit distance, for StrategyFuzzyName
}

func (m MatchResult) Matched() bool { return m.Strategy != StrategyNone && m.Identity != nil }

// MatchPolicy bounds fuzzy name acceptance: a match needs Distance <= MaxDistance
// and Distance < MaxRatio * len(candidate name).
type MatchPolicy struct {
	MaxDistance int
	MaxRatio    float64
}

var DefaultMatchPolicy = MatchPolicy{MaxDistance: 5, MaxRatio: 0.4}

func (p MatchPolicy) accepts(distance, nameLen int) bool {
	return distance <= p.MaxDistance && float64(distance) < p.MaxRatio*float64(nameLen)
}

// Snapshot is the known population of one role, fetched once per batch.
// It does not see identities created while the batch runs.
type Snapshot struct {
	Role       roster.Role
	Identities []roster.Identity
}

// TakeSnapshot loads every identity of role.
func TakeSnapshot(ctx context.Context, repo roster.Repository, role roster.Role) (Snapshot, error) {
	idents, err := repo.QueryIdentities(ctx, role)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "querying identities")
	}
	return Snapshot{Role: role, Identities: idents}, nil
}

type rendering struct {
	idx  int // into Snapshot.Identities
	text string
}

// Resolver runs the identity resolution cascade for one batch. Not safe for concurrent use.
type Resolver struct {
	repo       roster.Repository
	snap       Snapshot
	policy     MatchPolicy
	fold       cases.Caser
	renderings []rendering
}

func NewResolver(repo roster.Repository, snap Snapshot, policy MatchPolicy) *Resolver {
	res := &Resolver{
		repo:   repo,
		snap:   snap,
		policy: policy,
		fold:   cases.Fold(),
	}
	res.renderings = make([]rendering, 0, 4*len(snap.Identities))
	for i, ident := range snap.Identities {
		for _, text := range NameRenderings(ident.FirstName, ident.LastName) {
			res.renderings = append(res.renderings, rendering{idx: i, text: res.fold.String(text)})
		}
	}
	return res
}

// NameRenderings returns "first last", "last first", "last, first" and "first, last".
// Blank parts yield no renderings.
func NameRenderings(first, last string) []string {
	first, last = collapse(first), collapse(last)
	if first == "" || last == "" {
		return nil
	}
	return []string{
		first + " " + last,
		last + " " + first,
		last + ", " + first,
		first + ", " + last,
	}
}

// SplitName splits a full name into first and last names: around the first comma ("Last, First"),
// else the final token is the last name and the rest the first name.
func SplitName(name string) (first, last string) {
	name = collapse(name)
	if i := strings.Index(name, ","); i >= 0 {
		return collapse(name[i+1:]), collapse(name[:i])
	}
	if i := strings.LastIndex(name, " "); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// Resolve finds the identity rec refers to: fuzzy name, then student id, email and exact name.
// Storage errors other than roster.ErrNotFound are returned.
func (res *Resolver) Resolve(ctx context.Context, rec NormalizedRecord) (MatchResult, error) {
	if m, ok := res.fuzzyMatch(rec.Name); ok {
		return m, nil
	}

	role := res.snap.Role
	if rec.StudentID != "" {
		if m, err := res.lookup(ctx, roster.GetFilter{Role: role, StudentID: rec.StudentID}, StrategyStudentID); err != nil || m.Matched() {
			return m, err
		}
	}
	if rec.Email != "" {
		if m, err := res.lookup(ctx, roster.GetFilter{Role: role, Email: rec.Email}, StrategyEmail); err != nil || m.Matched() {
			return m, err
		}
	}

	first, last := rec.FirstName, rec.LastName
	if !rec.HasNameParts() && rec.Name != "" {
		first, last = SplitName(rec.Name)
	}
	if first != "" && last != "" {
		if m, err := res.lookup(ctx, roster.GetFilter{Role: role, FirstName: first, LastName: last}, StrategyExactName); err != nil || m.Matched() {
			return m, err
		}
	}
	return MatchResult{Strategy: StrategyNone}, nil
}

// fuzzyMatch keeps the globally closest rendering and applies the MatchPolicy to it.
func (res *Resolver) fuzzyMatch(name string) (MatchResult, bool) {
	name = collapse(name)
	if name == "" || len(res.renderings) == 0 {
		return MatchResult{}, false
	}
	candidate := res.fold.String(name)

	best, bestDist := -1, -1
	for _, r := range res.renderings {
		dist := fuzzy.LevenshteinDistance(candidate, r.text)
		if best < 0 || dist < bestDist {
			best, bestDist = r.idx, dist
			if dist == 0 {
				break
			}
		}
	}
	if !res.policy.accepts(bestDist, utf8.RuneCountInString(candidate)) {
		return MatchResult{}, false
	}
	ident := res.snap.Identities[best]
	return MatchResult{Identity: &ident, Strategy: StrategyFuzzyName, Distance: bestDist}, true
}

func (res *Resolver) lookup(ctx context.Context, filter roster.GetFilter, strategy Strategy) (MatchResult, error) {
	ident, err := res.repo.GetIdentity(ctx, filter)
	switch {
	case err == nil:
		return MatchResult{Identity: &ident, Strategy: strategy}, nil
	case errors.Is(err, roster.ErrNotFound):
		return MatchResult{Strategy: StrategyNone}, nil
	default:
		return MatchResult{}, errors.Wrapf(err, "looking up identity by %s", strategy)
	}
}
