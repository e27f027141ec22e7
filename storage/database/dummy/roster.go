package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/rollcall/core/roster"
)

type rosterRepository struct {
	db *DB
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *DB) roster.Repository {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) QueryIdentities(_ context.Context, role roster.Role) ([]roster.Identity, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.checkFault("QueryIdentities", role); err != nil {
		return nil, err
	}

	idents := make([]roster.Identity, 0, len(repo.db.identities))
	for _, ident := range repo.db.identities {
		if ident.Role == role {
			idents = append(idents, *ident)
		}
	}
	sort.Slice(idents, func(i, j int) bool {
		if idents[i].LastName != idents[j].LastName {
			return idents[i].LastName < idents[j].LastName
		}
		if idents[i].FirstName != idents[j].FirstName {
			return idents[i].FirstName < idents[j].FirstName
		}
		return idents[i].ID < idents[j].ID
	})
	return idents, nil
}

func (repo *rosterRepository) GetIdentity(_ context.Context, filter roster.GetFilter) (roster.Identity, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.checkFault("GetIdentity", filter); err != nil {
		return roster.Identity{}, err
	}
	if filter.IsEmpty() {
		return roster.Identity{}, roster.ErrNotFound
	}

	if filter.ID != 0 {
		if ident, ok := repo.db.identities[filter.ID]; ok && (filter.Role == "" || ident.Role == filter.Role) {
			return *ident, nil
		}
		return roster.Identity{}, roster.ErrNotFound
	}

	// lowest ID wins when several identities match
	var found *roster.Identity
	for _, ident := range repo.db.identities {
		if !filterMatches(filter, ident) {
			continue
		}
		if found == nil || ident.ID < found.ID {
			found = ident
		}
	}
	if found == nil {
		return roster.Identity{}, roster.ErrNotFound
	}
	return *found, nil
}

func filterMatches(filter roster.GetFilter, ident *roster.Identity) bool {
	if filter.Role != "" && ident.Role != filter.Role {
		return false
	}
	switch {
	case filter.StudentID != "":
		return ident.StudentID == filter.StudentID
	case filter.Email != "":
		return strings.EqualFold(ident.Email, filter.Email)
	default:
		return strings.EqualFold(ident.FirstName, filter.FirstName) && strings.EqualFold(ident.LastName, filter.LastName)
	}
}

// must be called with db.mu held
func (repo *rosterRepository) checkStudentID(ident roster.Identity) error {
	if ident.StudentID == "" {
		return nil
	}
	for _, other := range repo.db.identities {
		if other.ID != ident.ID && other.Role == ident.Role && other.StudentID == ident.StudentID {
			return roster.NewConflictError("student_id", ident.StudentID)
		}
	}
	return nil
}

func (repo *rosterRepository) CreateIdentity(_ context.Context, ident roster.Identity) (roster.Identity, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.checkFault("CreateIdentity", ident); err != nil {
		return roster.Identity{}, err
	}
	ident.ID = 0
	if err := repo.checkStudentID(ident); err != nil {
		return roster.Identity{}, err
	}

	now := time.Now().UTC()
	ident.ID = repo.db.nextID()
	ident.CreatedAt = now
	ident.UpdatedAt = now
	repo.db.identities[ident.ID] = &ident
	return ident, nil
}

func (repo *rosterRepository) UpdateIdentity(_ context.Context, ident roster.Identity) (roster.Identity, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.checkFault("UpdateIdentity", ident); err != nil {
		return roster.Identity{}, err
	}
	existing, ok := repo.db.identities[ident.ID]
	if !ok {
		return roster.Identity{}, roster.ErrNotFound
	}
	if err := repo.checkStudentID(ident); err != nil {
		return roster.Identity{}, err
	}

	ident.CreatedAt = existing.CreatedAt
	ident.UpdatedAt = time.Now().UTC()
	repo.db.identities[ident.ID] = &ident
	return ident, nil
}

func (repo *rosterRepository) GetLoginAccount(_ context.Context, identityID int64) (roster.LoginAccount, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.checkFault("GetLoginAccount", identityID); err != nil {
		return roster.LoginAccount{}, err
	}
	if la, ok := repo.db.logins[identityID]; ok {
		return *la, nil
	}
	return roster.LoginAccount{}, roster.ErrNotFound
}

func (repo *rosterRepository) CreateLoginAccount(_ context.Context, acct roster.LoginAccount) (roster.LoginAccount, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.checkFault("CreateLoginAccount", acct); err != nil {
		return roster.LoginAccount{}, err
	}
	if _, ok := repo.db.identities[acct.IdentityID]; !ok {
		return roster.LoginAccount{}, roster.ErrNotFound
	}
	if _, ok := repo.db.logins[acct.IdentityID]; ok {
		return roster.LoginAccount{}, roster.NewConflictError("identity_id", acct.Username)
	}
	for _, la := range repo.db.logins {
		if strings.EqualFold(la.Username, acct.Username) {
			return roster.LoginAccount{}, roster.NewConflictError("username", acct.Username)
		}
	}

	acct.ID = repo.db.nextID()
	acct.CreatedAt = time.Now().UTC()
	repo.db.logins[acct.IdentityID] = &acct
	return acct, nil
}

func (repo *rosterRepository) EnsureGradeAggregate(_ context.Context, identityID int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.checkFault("EnsureGradeAggregate", identityID); err != nil {
		return err
	}
	if _, ok := repo.db.aggregates[identityID]; !ok {
		repo.db.aggregates[identityID] = &roster.GradeAggregate{
			ID:         repo.db.nextID(),
			IdentityID: identityID,
			UpdatedAt:  time.Now().UTC(),
		}
	}
	return nil
}

func (repo *rosterRepository) SetAttendancePresent(_ context.Context, identityID int64, count int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.checkFault("SetAttendancePresent", identityID); err != nil {
		return err
	}
	agg, ok := repo.db.aggregates[identityID]
	if !ok {
		agg = &roster.GradeAggregate{ID: repo.db.nextID(), IdentityID: identityID}
		repo.db.aggregates[identityID] = agg
	}
	agg.AttendancePresent = count
	agg.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *rosterRepository) GetGradeAggregate(_ context.Context, identityID int64) (roster.GradeAggregate, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.checkFault("GetGradeAggregate", identityID); err != nil {
		return roster.GradeAggregate{}, err
	}
	if agg, ok := repo.db.aggregates[identityID]; ok {
		return *agg, nil
	}
	return roster.GradeAggregate{}, roster.ErrNotFound
}

func (repo *rosterRepository) GetTrainingDay(_ context.Context, id int64) (roster.TrainingDay, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.checkFault("GetTrainingDay", id); err != nil {
		return roster.TrainingDay{}, err
	}
	if day, ok := repo.db.trainingDays[id]; ok {
		return *day, nil
	}
	return roster.TrainingDay{}, roster.ErrNotFound
}

func (repo *rosterRepository) UpsertAttendance(_ context.Context, rec roster.AttendanceRecord) (roster.AttendanceRecord, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.checkFault("UpsertAttendance", rec); err != nil {
		return roster.AttendanceRecord{}, err
	}
	if _, ok := repo.db.trainingDays[rec.TrainingDayID]; !ok {
		return roster.AttendanceRecord{}, roster.ErrNotFound
	}
	if _, ok := repo.db.identities[rec.IdentityID]; !ok {
		return roster.AttendanceRecord{}, roster.ErrNotFound
	}

	key := attendanceKey{dayID: rec.TrainingDayID, identityID: rec.IdentityID}
	if existing, ok := repo.db.attendance[key]; ok {
		rec.ID = existing.ID
	} else {
		rec.ID = repo.db.nextID()
	}
	rec.UpdatedAt = time.Now().UTC()
	repo.db.attendance[key] = &rec
	return rec, nil
}

func (repo *rosterRepository) CountAttendance(_ context.Context, identityID int64, statuses ...roster.AttendanceStatus) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.checkFault("CountAttendance", identityID); err != nil {
		return 0, err
	}
	count := 0
	for key, rec := range repo.db.attendance {
		if key.identityID != identityID {
			continue
		}
		if len(statuses) == 0 || hasStatus(statuses, rec.Status) {
			count++
		}
	}
	return count, nil
}

func hasStatus(statuses []roster.AttendanceStatus, s roster.AttendanceStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
