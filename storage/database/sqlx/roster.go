package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/roster"
)

const (
	identityColumns = "id, role, student_id, first_name, middle_name, last_name, suffix, email, gender, course, " +
		"year_level, company, platoon, rank, contact_number, created_at, updated_at"
	loginColumns = "id, identity_id, username, role, is_approved, password_hash, created_at"

	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// unique constraint -> conflicting field
var conflictFields = map[string]string{
	"identities_role_student_id_key":      "student_id",
	"login_accounts_username_key":         "username",
	"login_accounts_identity_id_key":      "identity_id",
	"grade_aggregates_identity_id_key":    "identity_id",
	"attendance_records_day_identity_key": "training_day_id",
}

var identityOrdering = []core.DBOrdering{
	{Field: "last_name", Ascending: true},
	{Field: "first_name", Ascending: true},
	{Field: "id", Ascending: true},
}

type rosterRepository struct {
	db core.DBExecutor
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db core.DBExecutor) roster.Repository {
	return &rosterRepository{db: db}
}

// mapError turns driver errors into roster errors. value is reported in conflict errors.
func mapError(err error, value string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return roster.ErrNotFound
	}
	if errors.Is(err, sql.ErrConnDone) {
		return core.NewShutdownError("database connection closed: " + err.Error())
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			field, ok := conflictFields[pqErr.Constraint]
			if !ok {
				field = pqErr.Constraint
			}
			return roster.NewConflictError(field, value)
		case pqForeignKeyViolation:
			return errors.Wrap(roster.ErrNotFound, pqErr.Constraint)
		}
	}
	return err
}

func (repo *rosterRepository) QueryIdentities(ctx context.Context, role roster.Role) ([]roster.Identity, error) {
	q := "SELECT " + identityColumns + " FROM identities WHERE role = $1" + core.OrderByClause(identityOrdering...)
	idents := make([]roster.Identity, 0)
	if err := repo.db.SelectContext(ctx, &idents, q, role); err != nil {
		return nil, errors.Wrap(mapError(err, ""), "selecting identities")
	}
	return idents, nil
}

func (repo *rosterRepository) GetIdentity(ctx context.Context, filter roster.GetFilter) (roster.Identity, error) {
	if filter.IsEmpty() {
		return roster.Identity{}, roster.ErrNotFound
	}

	var (
		conds []string
		args  []interface{}
	)
	where := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if filter.Role != "" {
		where("role = ?", filter.Role)
	}
	switch {
	case filter.ID != 0:
		where("id = ?", filter.ID)
	case filter.StudentID != "":
		where("student_id = ?", filter.StudentID)
	case filter.Email != "":
		where("lower(email) = lower(?)", filter.Email)
	default:
		where("lower(first_name) = lower(?)", filter.FirstName)
		where("lower(last_name) = lower(?)", filter.LastName)
	}

	q := "SELECT " + identityColumns + " FROM identities WHERE " + strings.Join(conds, " AND ") + " ORDER BY id ASC LIMIT 1"
	var ident roster.Identity
	if err := repo.db.GetContext(ctx, &ident, q, args...); err != nil {
		return roster.Identity{}, mapError(err, "")
	}
	return ident, nil
}

func (repo *rosterRepository) CreateIdentity(ctx context.Context, ident roster.Identity) (roster.Identity, error) {
	q := `INSERT INTO identities (role, student_id, first_name, middle_name, last_name, suffix, email, gender, course,
		year_level, company, platoon, rank, contact_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`
	err := repo.db.QueryRowxContext(ctx, q,
		ident.Role, ident.StudentID, ident.FirstName, ident.MiddleName, ident.LastName, ident.Suffix, ident.Email,
		ident.Gender, ident.Course, ident.YearLevel, ident.Company, ident.Platoon, ident.Rank, ident.ContactNumber,
	).Scan(&ident.ID, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		return roster.Identity{}, mapError(err, ident.StudentID)
	}
	return ident, nil
}

func (repo *rosterRepository) UpdateIdentity(ctx context.Context, ident roster.Identity) (roster.Identity, error) {
	q := `UPDATE identities SET student_id = $2, first_name = $3, middle_name = $4, last_name = $5, suffix = $6,
		email = $7, gender = $8, course = $9, year_level = $10, company = $11, platoon = $12, rank = $13,
		contact_number = $14, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`
	err := repo.db.QueryRowxContext(ctx, q,
		ident.ID, ident.StudentID, ident.FirstName, ident.MiddleName, ident.LastName, ident.Suffix, ident.Email,
		ident.Gender, ident.Course, ident.YearLevel, ident.Company, ident.Platoon, ident.Rank, ident.ContactNumber,
	).Scan(&ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		return roster.Identity{}, mapError(err, ident.StudentID)
	}
	return ident, nil
}

func (repo *rosterRepository) GetLoginAccount(ctx context.Context, identityID int64) (roster.LoginAccount, error) {
	var acct roster.LoginAccount
	q := "SELECT " + loginColumns + " FROM login_accounts WHERE identity_id = $1"
	if err := repo.db.GetContext(ctx, &acct, q, identityID); err != nil {
		return roster.LoginAccount{}, mapError(err, "")
	}
	return acct, nil
}

func (repo *rosterRepository) CreateLoginAccount(ctx context.Context, acct roster.LoginAccount) (roster.LoginAccount, error) {
	q := `INSERT INTO login_accounts (identity_id, username, role, is_approved, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := repo.db.QueryRowxContext(ctx, q, acct.IdentityID, acct.Username, acct.Role, acct.IsApproved, acct.PasswordHash).
		Scan(&acct.ID, &acct.CreatedAt)
	if err != nil {
		return roster.LoginAccount{}, mapError(err, acct.Username)
	}
	return acct, nil
}

func (repo *rosterRepository) EnsureGradeAggregate(ctx context.Context, identityID int64) error {
	q := `INSERT INTO grade_aggregates (identity_id) VALUES ($1) ON CONFLICT (identity_id) DO NOTHING`
	if _, err := repo.db.ExecContext(ctx, q, identityID); err != nil {
		return mapError(err, "")
	}
	return nil
}

func (repo *rosterRepository) SetAttendancePresent(ctx context.Context, identityID int64, count int) error {
	q := `INSERT INTO grade_aggregates (identity_id, attendance_present) VALUES ($1, $2)
		ON CONFLICT (identity_id) DO UPDATE SET attendance_present = EXCLUDED.attendance_present, updated_at = now()`
	if _, err := repo.db.ExecContext(ctx, q, identityID, count); err != nil {
		return mapError(err, "")
	}
	return nil
}

func (repo *rosterRepository) GetGradeAggregate(ctx context.Context, identityID int64) (roster.GradeAggregate, error) {
	var agg roster.GradeAggregate
	q := "SELECT id, identity_id, attendance_present, updated_at FROM grade_aggregates WHERE identity_id = $1"
	if err := repo.db.GetContext(ctx, &agg, q, identityID); err != nil {
		return roster.GradeAggregate{}, mapError(err, "")
	}
	return agg, nil
}

func (repo *rosterRepository) GetTrainingDay(ctx context.Context, id int64) (roster.TrainingDay, error) {
	var day roster.TrainingDay
	if err := repo.db.GetContext(ctx, &day, "SELECT id, held_on, title FROM training_days WHERE id = $1", id); err != nil {
		return roster.TrainingDay{}, mapError(err, "")
	}
	return day, nil
}

func (repo *rosterRepository) UpsertAttendance(ctx context.Context, rec roster.AttendanceRecord) (roster.AttendanceRecord, error) {
	q := `INSERT INTO attendance_records (training_day_id, identity_id, status, remarks) VALUES ($1, $2, $3, $4)
		ON CONFLICT (training_day_id, identity_id)
		DO UPDATE SET status = EXCLUDED.status, remarks = EXCLUDED.remarks, updated_at = now()
		RETURNING id, updated_at`
	err := repo.db.QueryRowxContext(ctx, q, rec.TrainingDayID, rec.IdentityID, rec.Status, rec.Remarks).
		Scan(&rec.ID, &rec.UpdatedAt)
	if err != nil {
		return roster.AttendanceRecord{}, mapError(err, "")
	}
	return rec, nil
}

func (repo *rosterRepository) CountAttendance(ctx context.Context, identityID int64, statuses ...roster.AttendanceStatus) (int, error) {
	q := "SELECT count(*) FROM attendance_records WHERE identity_id = $1"
	args := []interface{}{identityID}
	if len(statuses) > 0 {
		sts := make([]string, len(statuses))
		for i, s := range statuses {
			sts[i] = string(s)
		}
		q += " AND status = ANY($2)"
		args = append(args, pq.Array(sts))
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, q, args...); err != nil {
		return 0, mapError(err, "")
	}
	return count, nil
}
