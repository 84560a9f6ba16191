// Package inmemdb is an in-memory store implementing every repository, used by tests
// and by the API when configured with the "memory" database driver.
package inmemdb

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/discipline"
	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type (
	tables struct {
		users               map[string]user.User
		students            map[string]school.Student
		teachers            map[string]school.Teacher
		parents             map[string]school.Parent
		classrooms          map[string]school.Classroom
		subjects            map[string]school.Subject
		subjectConfigs      map[string]school.SubjectConfig
		teachingAssignments map[string]school.TeachingAssignment
		gradebooks          map[string]grading.Gradebook
		assessments         map[string]grading.Assessment
		scores              map[string]grading.AssessmentScore
		attendances         map[string]attendance.Attendance
		demerits            map[string]discipline.DemeritPoint
	}

	// DB serializes writers: a transaction holds the writer lock until it ends,
	// and rolls the tables back to their snapshot when it fails.
	DB struct {
		txMutex sync.Mutex
		mutex   sync.RWMutex
		data    *tables
	}

	txKey struct{}
)

func newTables() *tables {
	return &tables{
		users:               make(map[string]user.User),
		students:            make(map[string]school.Student),
		teachers:            make(map[string]school.Teacher),
		parents:             make(map[string]school.Parent),
		classrooms:          make(map[string]school.Classroom),
		subjects:            make(map[string]school.Subject),
		subjectConfigs:      make(map[string]school.SubjectConfig),
		teachingAssignments: make(map[string]school.TeachingAssignment),
		gradebooks:          make(map[string]grading.Gradebook),
		assessments:         make(map[string]grading.Assessment),
		scores:              make(map[string]grading.AssessmentScore),
		attendances:         make(map[string]attendance.Attendance),
		demerits:            make(map[string]discipline.DemeritPoint),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func (t *tables) clone() *tables {
	return &tables{
		users:               cloneMap(t.users),
		students:            cloneMap(t.students),
		teachers:            cloneMap(t.teachers),
		parents:             cloneMap(t.parents),
		classrooms:          cloneMap(t.classrooms),
		subjects:            cloneMap(t.subjects),
		subjectConfigs:      cloneMap(t.subjectConfigs),
		teachingAssignments: cloneMap(t.teachingAssignments),
		gradebooks:          cloneMap(t.gradebooks),
		assessments:         cloneMap(t.assessments),
		scores:              cloneMap(t.scores),
		attendances:         cloneMap(t.attendances),
		demerits:            cloneMap(t.demerits),
	}
}

func Open() *DB {
	return &DB{data: newTables()}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.txMutex.Lock()
	defer db.txMutex.Unlock()
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.data = newTables()
}

func (db *DB) inTx(ctx context.Context) bool {
	tx, _ := ctx.Value(txKey{}).(*DB)
	return tx == db
}

func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.inTx(ctx) {
		return fn(ctx)
	}
	db.txMutex.Lock()
	defer db.txMutex.Unlock()

	db.mutex.RLock()
	snapshot := db.data.clone()
	db.mutex.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		db.mutex.Lock()
		db.data = snapshot
		db.mutex.Unlock()
		return err
	}
	return nil
}

func (db *DB) read(fn func(t *tables)) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	fn(db.data)
}

func (db *DB) write(ctx context.Context, fn func(t *tables) error) error {
	if !db.inTx(ctx) {
		db.txMutex.Lock()
		defer db.txMutex.Unlock()
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return fn(db.data)
}

func uniqueViolation(field, msg string) error {
	return core.NewValidationError(errors.New(msg), core.FieldError{Field: field, Error: msg})
}

func inSlice(s string, items []string) bool {
	return core.StringInSlice(s, items)
}

var _ core.Transactor = (*DB)(nil)
