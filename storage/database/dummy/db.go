package dummydb

import (
	"sync"
	"time"

	"github.com/trezcool/rollcall/core/roster"
)

// FaultFunc lets tests fail a repository operation. op is the Repository method name
// and arg the value it was called with; a non-nil return is returned by the method.
type FaultFunc func(op string, arg interface{}) error

type (
	DB struct {
		mu    sync.RWMutex
		seq   int64
		fault FaultFunc

		identities   map[int64]*roster.Identity
		logins       map[int64]*roster.LoginAccount // by identity ID
		aggregates   map[int64]*roster.GradeAggregate
		trainingDays map[int64]*roster.TrainingDay
		attendance   map[attendanceKey]*roster.AttendanceRecord
	}

	attendanceKey struct {
		dayID      int64
		identityID int64
	}
)

func Open() (*DB, error) {
	db := &DB{
		identities:   make(map[int64]*roster.Identity),
		logins:       make(map[int64]*roster.LoginAccount),
		aggregates:   make(map[int64]*roster.GradeAggregate),
		trainingDays: make(map[int64]*roster.TrainingDay),
		attendance:   make(map[attendanceKey]*roster.AttendanceRecord),
	}
	return db, nil
}

// InjectFault installs fn as the fault hook; nil removes it.
func (db *DB) InjectFault(fn FaultFunc) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.fault = fn
}

// AddTrainingDay stores a TrainingDay, assigning its ID when zero.
func (db *DB) AddTrainingDay(day roster.TrainingDay) roster.TrainingDay {
	db.mu.Lock()
	defer db.mu.Unlock()

	if day.ID == 0 {
		day.ID = db.nextID()
	}
	if day.HeldOn.IsZero() {
		day.HeldOn = time.Now().UTC().Truncate(24 * time.Hour)
	}
	db.trainingDays[day.ID] = &day
	return day
}

// Counts reports the number of stored identities, login accounts, grade aggregates and attendance records.
func (db *DB) Counts() (identities, logins, aggregates, attendance int) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.identities), len(db.logins), len(db.aggregates), len(db.attendance)
}

// LoginAccounts returns a copy of every stored LoginAccount.
func (db *DB) LoginAccounts() []roster.LoginAccount {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accts := make([]roster.LoginAccount, 0, len(db.logins))
	for _, la := range db.logins {
		accts = append(accts, *la)
	}
	return accts
}

// must be called with db.mu held
func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}

// must be called with db.mu held
func (db *DB) checkFault(op string, arg interface{}) error {
	if db.fault == nil {
		return nil
	}
	return db.fault(op, arg)
}
