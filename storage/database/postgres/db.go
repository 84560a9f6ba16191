// Package pgrepos implements the repositories on PostgreSQL with sqlx.
package pgrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

type (
	// DB runs repositories queries in the transaction carried by the context, if any.
	DB struct {
		db *sqlx.DB
	}

	txKey struct{}
)

// NewDB maps untagged struct fields to their snake_cased names.
func NewDB(db *sqlx.DB) *DB {
	db.Mapper = reflectx.NewMapperFunc("db", snakeCase)
	return &DB{db: db}
}

// snakeCase turns "HomeroomTeacherID" into "homeroom_teacher_id".
func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}
	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (db *DB) conn(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db.db
}

func (db *DB) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, db.conn(ctx), dest, query, args...)
}

func (db *DB) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return mapError(sqlx.SelectContext(ctx, db.conn(ctx), dest, query, args...))
}

func (db *DB) exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := db.conn(ctx).ExecContext(ctx, query, args...)
	return mapError(err)
}

func (db *DB) namedExec(ctx context.Context, query string, arg interface{}) error {
	_, err := db.namedExecResult(ctx, query, arg)
	return err
}

func (db *DB) namedExecResult(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	res, err := sqlx.NamedExecContext(ctx, db.conn(ctx), query, arg)
	return res, mapError(err)
}

func affectedOrNotFound(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "getting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// getOne fetches a single row into dest, returning notFound when there is none
// (or when id is not even a UUID).
func (db *DB) getOne(ctx context.Context, notFound error, dest interface{}, query string, id string) error {
	if !isUUID(id) {
		return notFound
	}
	err := db.get(ctx, dest, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return mapError(err)
}

var _ core.Transactor = (*DB)(nil)

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// uuids drops the values that are not UUIDs, which cannot match any row.
func uuids(ids []string) pq.StringArray {
	valid := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

// conditions builds a WHERE clause; clauses use `?` as placeholder.
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) add(clause string, args ...interface{}) {
	for _, arg := range args {
		c.args = append(c.args, arg)
		clause = strings.Replace(clause, "?", "$"+strconv.Itoa(len(c.args)), 1)
	}
	c.clauses = append(c.clauses, clause)
}

// never makes the query match nothing.
func (c *conditions) never() {
	c.clauses = append(c.clauses, "FALSE")
}

// ids filters column on ids, matching nothing when none is a UUID.
func (c *conditions) ids(column string, ids []string) {
	if len(ids) == 0 {
		return
	}
	valid := uuids(ids)
	if len(valid) == 0 {
		c.never()
		return
	}
	c.add(column+" = ANY(?::uuid[])", valid)
}

// uuid filters column on id, matching nothing when it is not a UUID.
func (c *conditions) uuid(column, id string) {
	if id == "" {
		return
	}
	if !isUUID(id) {
		c.never()
		return
	}
	c.add(column+" = ?", id)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

type uniqueConstraint struct {
	field string
	err   error
}

var uniqueConstraints = map[string]uniqueConstraint{
	"users_username_key":                 {"username", user.ErrUsernameExists},
	"users_email_key":                    {"email", user.ErrEmailExists},
	"students_student_number_key":        {"student_number", errors.New("a student with this number already exists")},
	"students_user_id_key":               {"user_id", errors.New("this user already has a student profile")},
	"teachers_employee_number_key":       {"employee_number", errors.New("a teacher with this employee number already exists")},
	"teachers_user_id_key":               {"user_id", errors.New("this user already has a teacher profile")},
	"parents_user_id_key":                {"user_id", errors.New("this user already has a parent profile")},
	"classrooms_grade_major_section_key": {"classroom", errors.New("a classroom with this grade, major and section already exists")},
	"classrooms_homeroom_teacher_id_key": {"homeroom_teacher_id", errors.New("this teacher is already the homeroom teacher of another classroom")},
	"subjects_name_key":                  {"name", errors.New("a subject with this name already exists")},

	"subject_configs_subject_id_grade_academic_year_semester_key":    {"subject_id", errors.New("this subject is already configured for this grade and term")},
	"teaching_assignments_subject_id_classroom_id_academic_year_key": {"subject_id", errors.New("this subject is already taught to this classroom during this academic year")},
	"gradebooks_student_id_subject_id_academic_year_semester_key":    {"gradebook", errors.New("this student already has a gradebook for this subject and term")},
	"assessment_scores_assessment_id_gradebook_id_key":               {"score", errors.New("this student already has a score for this assessment")},
	"attendances_student_id_date_key":                                {"student_id", errors.New("attendance already recorded for this student on this day")},
	"demerit_points_single_per_day_key":                              {"category", errors.New("this category can only be recorded once per day")},
}

// mapError turns constraint violations into errors the API reports as bad requests.
func mapError(err error) error {
	var pqErr *pq.Error
	if err == nil || !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code.Name() {
	case "unique_violation":
		uc, ok := uniqueConstraints[pqErr.Constraint]
		if !ok {
			return core.NewValidationError(errors.Wrap(err, "duplicate record"))
		}
		if uc.err == user.ErrUsernameExists || uc.err == user.ErrEmailExists {
			return uc.err
		}
		return core.NewValidationError(uc.err, core.FieldError{Field: uc.field, Error: uc.err.Error()})
	case "foreign_key_violation":
		field := strings.TrimSuffix(strings.TrimPrefix(pqErr.Constraint, pqErr.Table+"_"), "_fkey")
		return core.NewValidationError(
			errors.Wrap(err, "invalid reference"),
			core.FieldError{Field: field, Error: "the referenced record does not exist"},
		)
	case "check_violation":
		return core.NewValidationError(errors.Wrap(err, "invalid value"))
	}
	return err
}
