package dummydb

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/rollcall/core/roster"
)

func setup(t *testing.T) (*DB, roster.Repository) {
	t.Helper()
	db, err := Open()
	require.NoError(t, err)
	return db, NewRosterRepository(db)
}

func TestRosterRepository_identities(t *testing.T) {
	ctx := context.Background()
	_, repo := setup(t)

	juan, err := repo.CreateIdentity(ctx, roster.Identity{Role: roster.RoleCadet, StudentID: "1", FirstName: "Juan", LastName: "Dela Cruz", Email: "juan@x.edu"})
	require.NoError(t, err)
	assert.NotZero(t, juan.ID)
	assert.False(t, juan.CreatedAt.IsZero())

	_, err = repo.CreateIdentity(ctx, roster.Identity{Role: roster.RoleCadet, StudentID: "2", FirstName: "Ana", LastName: "Abad"})
	require.NoError(t, err)
	_, err = repo.CreateIdentity(ctx, roster.Identity{Role: roster.RoleStaff, StudentID: "1", FirstName: "Rosa", LastName: "Lim"})
	require.NoError(t, err, "student ids are unique per role")

	_, err = repo.CreateIdentity(ctx, roster.Identity{Role: roster.RoleCadet, StudentID: "1", FirstName: "Other"})
	var cErr *roster.ConflictError
	require.True(t, errors.As(err, &cErr))
	assert.Equal(t, "student_id", cErr.Field)

	cadets, err := repo.QueryIdentities(ctx, roster.RoleCadet)
	require.NoError(t, err)
	require.Len(t, cadets, 2)
	assert.Equal(t, "Abad", cadets[0].LastName)

	tests := []struct {
		name   string
		filter roster.GetFilter
		wantID int64
	}{
		{name: "by id", filter: roster.GetFilter{ID: juan.ID}, wantID: juan.ID},
		{name: "by student id", filter: roster.GetFilter{Role: roster.RoleCadet, StudentID: "1"}, wantID: juan.ID},
		{name: "by email", filter: roster.GetFilter{Role: roster.RoleCadet, Email: "JUAN@X.EDU"}, wantID: juan.ID},
		{name: "by name", filter: roster.GetFilter{Role: roster.RoleCadet, FirstName: "juan", LastName: "DELA CRUZ"}, wantID: juan.ID},
		{name: "wrong role", filter: roster.GetFilter{ID: juan.ID, Role: roster.RoleStaff}},
		{name: "empty", filter: roster.GetFilter{Role: roster.RoleCadet}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetIdentity(ctx, tt.filter)
			if tt.wantID == 0 {
				assert.ErrorIs(t, err, roster.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}

	juan.Course = "BSIT"
	updated, err := repo.UpdateIdentity(ctx, juan)
	require.NoError(t, err)
	assert.Equal(t, "BSIT", updated.Course)
	assert.Equal(t, juan.CreatedAt, updated.CreatedAt)

	_, err = repo.UpdateIdentity(ctx, roster.Identity{ID: 999})
	assert.ErrorIs(t, err, roster.ErrNotFound)
}

func TestRosterRepository_loginAccounts(t *testing.T) {
	ctx := context.Background()
	db, repo := setup(t)

	juan, err := repo.CreateIdentity(ctx, roster.Identity{Role: roster.RoleCadet, StudentID: "1", FirstName: "Juan"})
	require.NoError(t, err)
	juana, err := repo.CreateIdentity(ctx, roster.Identity{Role: roster.RoleCadet, StudentID: "2", FirstName: "Juana"})
	require.NoError(t, err)

	_, err = repo.GetLoginAccount(ctx, juan.ID)
	assert.ErrorIs(t, err, roster.ErrNotFound)

	acct, err := repo.CreateLoginAccount(ctx, roster.LoginAccount{IdentityID: juan.ID, Username: "juan"})
	require.NoError(t, err)
	assert.NotZero(t, acct.ID)

	tests := []struct {
		name      string
		acct      roster.LoginAccount
		wantField string
		wantErr   error
	}{
		{name: "username ignores case", acct: roster.LoginAccount{IdentityID: juana.ID, Username: "JUAN"}, wantField: "username"},
		{name: "one account per identity", acct: roster.LoginAccount{IdentityID: juan.ID, Username: "juan2"}, wantField: "identity_id"},
		{name: "unknown identity", acct: roster.LoginAccount{IdentityID: 999, Username: "ghost"}, wantErr: roster.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.CreateLoginAccount(ctx, tt.acct)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			var cErr *roster.ConflictError
			require.True(t, errors.As(err, &cErr), "got %v", err)
			assert.Equal(t, tt.wantField, cErr.Field)
		})
	}

	assert.Len(t, db.LoginAccounts(), 1)
}

func TestRosterRepository_attendance(t *testing.T) {
	ctx := context.Background()
	db, repo := setup(t)

	juan, err := repo.CreateIdentity(ctx, roster.Identity{Role: roster.RoleCadet, StudentID: "1", FirstName: "Juan"})
	require.NoError(t, err)
	day1 := db.AddTrainingDay(roster.TrainingDay{Title: "Drill 1"})
	day2 := db.AddTrainingDay(roster.TrainingDay{Title: "Drill 2"})
	assert.False(t, day1.HeldOn.IsZero())

	got, err := repo.GetTrainingDay(ctx, day2.ID)
	require.NoError(t, err)
	assert.Equal(t, "Drill 2", got.Title)
	_, err = repo.GetTrainingDay(ctx, 999)
	assert.ErrorIs(t, err, roster.ErrNotFound)

	first, err := repo.UpsertAttendance(ctx, roster.AttendanceRecord{TrainingDayID: day1.ID, IdentityID: juan.ID, Status: roster.StatusAbsent})
	require.NoError(t, err)
	second, err := repo.UpsertAttendance(ctx, roster.AttendanceRecord{TrainingDayID: day1.ID, IdentityID: juan.ID, Status: roster.StatusPresent})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "upsert keeps the record")

	_, err = repo.UpsertAttendance(ctx, roster.AttendanceRecord{TrainingDayID: day2.ID, IdentityID: juan.ID, Status: roster.StatusLate})
	require.NoError(t, err)
	_, err = repo.UpsertAttendance(ctx, roster.AttendanceRecord{TrainingDayID: 999, IdentityID: juan.ID, Status: roster.StatusLate})
	assert.ErrorIs(t, err, roster.ErrNotFound)

	_, _, _, attendance := db.Counts()
	assert.Equal(t, 2, attendance)

	count, err := repo.CountAttendance(ctx, juan.ID, roster.CountedStatuses...)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = repo.CountAttendance(ctx, juan.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.SetAttendancePresent(ctx, juan.ID, count))
	require.NoError(t, repo.EnsureGradeAggregate(ctx, juan.ID))
	agg, err := repo.GetGradeAggregate(ctx, juan.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.AttendancePresent, "ensuring an existing aggregate keeps its total")
}

func TestDB_InjectFault(t *testing.T) {
	ctx := context.Background()
	db, repo := setup(t)

	boom := errors.New("boom")
	db.InjectFault(func(op string, arg interface{}) error {
		if op == "CreateIdentity" && arg.(roster.Identity).StudentID == "bad" {
			return boom
		}
		return nil
	})

	_, err := repo.CreateIdentity(ctx, roster.Identity{Role: roster.RoleCadet, StudentID: "bad"})
	assert.ErrorIs(t, err, boom)
	_, err = repo.CreateIdentity(ctx, roster.Identity{Role: roster.RoleCadet, StudentID: "good"})
	assert.NoError(t, err)

	db.InjectFault(nil)
	_, err = repo.CreateIdentity(ctx, roster.Identity{Role: roster.RoleCadet, StudentID: "bad"})
	assert.NoError(t, err)
}
