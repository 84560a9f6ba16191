package account

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type StudentRow struct {
	Row int
	NewStudentAccount
}

// StudentRows reads the rows of a student accounts file. Conversion errors are
// returned as validation errors keyed by row.
func StudentRows(rows []Row) ([]StudentRow, error) {
	out := make([]StudentRow, 0, len(rows))
	var flds []core.FieldError
	for _, r := range rows {
		p := rowParser{row: r}
		out = append(out, StudentRow{Row: r.Number, NewStudentAccount: NewStudentAccount{
			Credentials:   r.credentials(),
			StudentNumber: r.Get("student_number"),
			Gender:        r.Get("gender"),
			BirthDate:     p.date("birth_date"),
			Grade:         p.int("grade"),
			Major:         r.Get("major"),
			Section:       p.int("section"),
		}})
		flds = append(flds, p.flds...)
	}
	if len(flds) > 0 {
		return nil, core.NewValidationError(errInvalidRows, flds...)
	}
	return out, nil
}

func (svc *Service) CreateStudent(ctx context.Context, data NewStudentAccount) (CreatedAccount, error) {
	accs, err := svc.createStudents(ctx, true, []StudentRow{{NewStudentAccount: data}})
	if err != nil {
		return CreatedAccount{}, err
	}
	return accs[0], nil
}

// CreateStudents creates the accounts of every row, or none of them when any row is invalid.
func (svc *Service) CreateStudents(ctx context.Context, rows []StudentRow) ([]CreatedAccount, error) {
	if len(rows) == 0 {
		return nil, core.NewValidationError(ErrNoRows, core.FieldError{Field: "file", Error: ErrNoRows.Error()})
	}
	return svc.createStudents(ctx, false, rows)
}

func (svc *Service) createStudents(ctx context.Context, single bool, rows []StudentRow) ([]CreatedAccount, error) {
	b := svc.newBatch(user.RoleStudent)
	var students []school.Student

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		numbers := make([]string, 0, len(rows))
		for i := range rows {
			rows[i].StudentNumber = core.CleanString(rows[i].StudentNumber)
			rows[i].Gender = core.CleanString(rows[i].Gender)
			rows[i].ClassroomID = core.CleanString(rows[i].ClassroomID)
			rows[i].Major = core.CleanString(rows[i].Major)
			if rows[i].StudentNumber != "" {
				numbers = append(numbers, rows[i].StudentNumber)
			}
		}
		taken, err := svc.schools.ExistingStudentNumbers(ctx, numbers)
		if err != nil {
			return errors.Wrap(err, "checking student numbers")
		}

		classrooms := make(map[string]school.Classroom)
		now := time.Now().UTC()
		for _, r := range rows {
			prefix := rowPrefix(r.Row)
			idx, err := b.addUser(ctx, r.Row, r.Credentials)
			if err != nil {
				return err
			}
			before := len(b.flds)
			if err := b.validate(prefix, r.NewStudentAccount); err != nil {
				return err
			}
			if b.unique(r.Row, prefix, "student_number", r.StudentNumber) && core.StringInSlice(r.StudentNumber, taken) {
				b.fail(prefix, "student_number", "a student with this number already exists")
			}
			classroomID, err := svc.findClassroom(ctx, b, prefix, r.NewStudentAccount, classrooms)
			if err != nil {
				return err
			}
			if idx < 0 || len(b.flds) > before {
				continue
			}

			usr := b.users[idx]
			s := school.Student{
				ID:            uuid.NewString(),
				UserID:        usr.ID,
				Name:          usr.Name,
				StudentNumber: r.StudentNumber,
				ClassroomID:   classroomID,
				Gender:        r.Gender,
				BirthDate:     r.BirthDate,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			students = append(students, s)
			b.out[idx].ProfileID = s.ID
		}
		if b.invalid() {
			return b.err(single)
		}

		if err := b.createUsers(ctx); err != nil {
			return err
		}
		if err := svc.schools.CreateStudents(ctx, students...); err != nil {
			return errors.Wrap(err, "creating students")
		}
		return svc.ensureGradebooks(ctx, students)
	})
	if err != nil {
		return nil, err
	}
	b.notify()
	return b.out, nil
}

// findClassroom resolves the classroom of a student row, by ID or by grade, major and section.
func (svc *Service) findClassroom(ctx context.Context, b *batch, prefix string, data NewStudentAccount, cache map[string]school.Classroom) (string, error) {
	if data.ClassroomID != "" {
		if _, err := svc.schools.GetClassroom(ctx, data.ClassroomID); err != nil {
			if errors.Cause(err) != school.ErrClassroomNotFound {
				return "", errors.Wrap(err, "getting classroom")
			}
			b.fail(prefix, "classroom_id", school.ErrClassroomNotFound.Error())
		}
		return data.ClassroomID, nil
	}
	if data.Grade == 0 && data.Major == "" && data.Section == 0 {
		return "", nil
	}
	if data.Grade == 0 || data.Major == "" || data.Section == 0 {
		b.fail(prefix, "classroom", "grade, major and section are all required to find the classroom")
		return "", nil
	}

	name := school.Classroom{Grade: data.Grade, Major: data.Major, Section: data.Section}.Name()
	if c, ok := cache[name]; ok {
		return c.ID, nil
	}
	c, err := svc.schools.FindClassroom(ctx, data.Grade, data.Major, data.Section)
	if err != nil {
		if errors.Cause(err) != school.ErrClassroomNotFound {
			return "", errors.Wrap(err, "finding classroom")
		}
		b.fail(prefix, "classroom", fmt.Sprintf("classroom %s not found", name))
		return "", nil
	}
	cache[name] = c
	return c.ID, nil
}

func (svc *Service) ensureGradebooks(ctx context.Context, students []school.Student) error {
	if svc.gradebooks == nil {
		return nil
	}
	byClassroom := make(map[string][]school.Student)
	var classroomIDs []string
	for _, s := range students {
		if s.ClassroomID == "" {
			continue
		}
		if _, ok := byClassroom[s.ClassroomID]; !ok {
			classroomIDs = append(classroomIDs, s.ClassroomID)
		}
		byClassroom[s.ClassroomID] = append(byClassroom[s.ClassroomID], s)
	}
	for _, id := range classroomIDs {
		if err := svc.gradebooks.EnsureClassroomGradebooks(ctx, id, byClassroom[id]...); err != nil {
			return errors.Wrap(err, "ensuring gradebooks")
		}
	}
	return nil
}
