package sqlxrepos

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/roster"
)

func setup(t *testing.T) (roster.Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRosterRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantField string
		wantErr   error
	}{
		{name: "no rows", err: sql.ErrNoRows, wantErr: roster.ErrNotFound},
		{
			name:      "username conflict",
			err:       &pq.Error{Code: pqUniqueViolation, Constraint: "login_accounts_username_key"},
			wantField: "username",
			wantErr:   roster.ErrConflict,
		},
		{
			name:      "student id conflict",
			err:       &pq.Error{Code: pqUniqueViolation, Constraint: "identities_role_student_id_key"},
			wantField: "student_id",
			wantErr:   roster.ErrConflict,
		},
		{
			name:    "foreign key",
			err:     &pq.Error{Code: pqForeignKeyViolation, Constraint: "attendance_records_training_day_id_fkey"},
			wantErr: roster.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err, "juan")
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantField != "" {
				var cErr *roster.ConflictError
				require.ErrorAs(t, err, &cErr)
				assert.Equal(t, tt.wantField, cErr.Field)
				assert.Equal(t, "juan", cErr.Value)
			}
		})
	}
}

func TestMapError_connDone(t *testing.T) {
	assert.True(t, core.IsShutdown(mapError(sql.ErrConnDone, "")))
	assert.False(t, core.IsShutdown(mapError(sql.ErrNoRows, "")))
}

func TestRosterRepository_QueryIdentities(t *testing.T) {
	repo, mock := setup(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "role", "student_id", "first_name", "middle_name", "last_name", "suffix", "email", "gender", "course",
		"year_level", "company", "platoon", "rank", "contact_number", "created_at", "updated_at",
	}).
		AddRow(1, "cadet", "2021-0001", "Juan", "", "Dela Cruz", "", "", "", "", "", "", "", "", "", now, now).
		AddRow(2, "cadet", "2021-0002", "Maria", "", "Santos", "", "", "", "", "", "", "", "", "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM identities WHERE role = $1 ORDER BY last_name ASC, first_name ASC, id ASC")).
		WithArgs(roster.RoleCadet).
		WillReturnRows(rows)

	idents, err := repo.QueryIdentities(context.Background(), roster.RoleCadet)
	require.NoError(t, err)
	require.Len(t, idents, 2)
	assert.Equal(t, "Dela Cruz", idents[0].LastName)
	assert.Equal(t, roster.RoleCadet, idents[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepository_QueryIdentities_connDone(t *testing.T) {
	repo, mock := setup(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM identities WHERE role = $1")).
		WithArgs(roster.RoleCadet).
		WillReturnError(sql.ErrConnDone)

	_, err := repo.QueryIdentities(context.Background(), roster.RoleCadet)
	require.Error(t, err)
	assert.True(t, core.IsShutdown(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepository_GetIdentity(t *testing.T) {
	repo, mock := setup(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE role = $1 AND lower(first_name) = lower($2) AND lower(last_name) = lower($3)")).
		WithArgs(roster.RoleCadet, "juan", "dela cruz").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetIdentity(context.Background(), roster.GetFilter{Role: roster.RoleCadet, FirstName: "juan", LastName: "dela cruz"})
	assert.ErrorIs(t, err, roster.ErrNotFound)

	_, err = repo.GetIdentity(context.Background(), roster.GetFilter{Role: roster.RoleCadet})
	assert.ErrorIs(t, err, roster.ErrNotFound, "empty filters never hit the database")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepository_CreateLoginAccount_conflict(t *testing.T) {
	repo, mock := setup(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO login_accounts")).
		WithArgs(int64(7), "juan", "cadet", true, []byte("hash")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "login_accounts_username_key"})

	_, err := repo.CreateLoginAccount(context.Background(), roster.LoginAccount{
		IdentityID:   7,
		Username:     "juan",
		Role:         "cadet",
		IsApproved:   true,
		PasswordHash: []byte("hash"),
	})
	assert.True(t, roster.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepository_UpsertAttendance(t *testing.T) {
	repo, mock := setup(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (training_day_id, identity_id)")).
		WithArgs(int64(3), int64(7), roster.StatusExcused, "sick").
		WillReturnRows(sqlmock.NewRows([]string{"id", "updated_at"}).AddRow(11, now))

	rec, err := repo.UpsertAttendance(context.Background(), roster.AttendanceRecord{
		TrainingDayID: 3,
		IdentityID:    7,
		Status:        roster.StatusExcused,
		Remarks:       "sick",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepository_CountAttendance(t *testing.T) {
	repo, mock := setup(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM attendance_records WHERE identity_id = $1 AND status = ANY($2)")).
		WithArgs(int64(7), pq.Array([]string{"present", "excused"})).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountAttendance(context.Background(), 7, roster.CountedStatuses...)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepository_SetAttendancePresent(t *testing.T) {
	repo, mock := setup(t)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (identity_id) DO UPDATE SET attendance_present")).
		WithArgs(int64(7), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetAttendancePresent(context.Background(), 7, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}
