package account

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type TeacherRow struct {
	Row int
	NewTeacherAccount
}

func TeacherRows(rows []Row) []TeacherRow {
	out := make([]TeacherRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, TeacherRow{Row: r.Number, NewTeacherAccount: NewTeacherAccount{
			Credentials:    r.credentials(),
			EmployeeNumber: r.Get("employee_number"),
			Phone:          r.Get("phone"),
		}})
	}
	return out
}

func (svc *Service) CreateTeacher(ctx context.Context, data NewTeacherAccount) (CreatedAccount, error) {
	accs, err := svc.createTeachers(ctx, true, []TeacherRow{{NewTeacherAccount: data}})
	if err != nil {
		return CreatedAccount{}, err
	}
	return accs[0], nil
}

// CreateTeachers creates the accounts of every row, or none of them when any row is invalid.
func (svc *Service) CreateTeachers(ctx context.Context, rows []TeacherRow) ([]CreatedAccount, error) {
	if len(rows) == 0 {
		return nil, core.NewValidationError(ErrNoRows, core.FieldError{Field: "file", Error: ErrNoRows.Error()})
	}
	return svc.createTeachers(ctx, false, rows)
}

func (svc *Service) createTeachers(ctx context.Context, single bool, rows []TeacherRow) ([]CreatedAccount, error) {
	b := svc.newBatch(user.RoleTeacher)

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		numbers := make([]string, 0, len(rows))
		for i := range rows {
			rows[i].EmployeeNumber = core.CleanString(rows[i].EmployeeNumber)
			rows[i].Phone = core.CleanString(rows[i].Phone)
			if rows[i].EmployeeNumber != "" {
				numbers = append(numbers, rows[i].EmployeeNumber)
			}
		}
		taken, err := svc.schools.ExistingEmployeeNumbers(ctx, numbers)
		if err != nil {
			return errors.Wrap(err, "checking employee numbers")
		}

		var teachers []school.Teacher
		now := time.Now().UTC()
		for _, r := range rows {
			prefix := rowPrefix(r.Row)
			idx, err := b.addUser(ctx, r.Row, r.Credentials)
			if err != nil {
				return err
			}
			before := len(b.flds)
			if err := b.validate(prefix, r.NewTeacherAccount); err != nil {
				return err
			}
			if b.unique(r.Row, prefix, "employee_number", r.EmployeeNumber) && core.StringInSlice(r.EmployeeNumber, taken) {
				b.fail(prefix, "employee_number", "a teacher with this employee number already exists")
			}
			if idx < 0 || len(b.flds) > before {
				continue
			}

			usr := b.users[idx]
			t := school.Teacher{
				ID:             uuid.NewString(),
				UserID:         usr.ID,
				Name:           usr.Name,
				EmployeeNumber: r.EmployeeNumber,
				Phone:          r.Phone,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			teachers = append(teachers, t)
			b.out[idx].ProfileID = t.ID
		}
		if b.invalid() {
			return b.err(single)
		}

		if err := b.createUsers(ctx); err != nil {
			return err
		}
		return errors.Wrap(svc.schools.CreateTeachers(ctx, teachers...), "creating teachers")
	})
	if err != nil {
		return nil, err
	}
	b.notify()
	return b.out, nil
}
