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

type ParentRow struct {
	Row int
	NewParentAccount
}

func ParentRows(rows []Row) []ParentRow {
	out := make([]ParentRow, 0, len(rows))
	for _, r := range rows {
		p := rowParser{row: r}
		out = append(out, ParentRow{Row: r.Number, NewParentAccount: NewParentAccount{
			Credentials:    r.credentials(),
			Phone:          r.Get("phone"),
			StudentNumbers: p.list("student_numbers"),
		}})
	}
	return out
}

func (svc *Service) CreateParent(ctx context.Context, data NewParentAccount) (CreatedAccount, error) {
	accs, err := svc.createParents(ctx, true, []ParentRow{{NewParentAccount: data}})
	if err != nil {
		return CreatedAccount{}, err
	}
	return accs[0], nil
}

// CreateParents creates the accounts of every row and links them to their children,
// or does nothing when any row is invalid.
func (svc *Service) CreateParents(ctx context.Context, rows []ParentRow) ([]CreatedAccount, error) {
	if len(rows) == 0 {
		return nil, core.NewValidationError(ErrNoRows, core.FieldError{Field: "file", Error: ErrNoRows.Error()})
	}
	return svc.createParents(ctx, false, rows)
}

func (svc *Service) createParents(ctx context.Context, single bool, rows []ParentRow) ([]CreatedAccount, error) {
	b := svc.newBatch(user.RoleParent)

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var numbers []string
		for i := range rows {
			rows[i].Phone = core.CleanString(rows[i].Phone)
			for j, num := range rows[i].StudentNumbers {
				rows[i].StudentNumbers[j] = core.CleanString(num)
				numbers = append(numbers, rows[i].StudentNumbers[j])
			}
		}
		children := make(map[string]school.Student)
		if len(numbers) > 0 {
			students, err := svc.schools.QueryStudents(ctx, school.StudentFilter{StudentNumbers: numbers})
			if err != nil {
				return errors.Wrap(err, "querying students")
			}
			for _, s := range students {
				children[s.StudentNumber] = s
			}
		}

		var (
			parents []school.Parent
			links   []school.Student
		)
		now := time.Now().UTC()
		for _, r := range rows {
			prefix := rowPrefix(r.Row)
			idx, err := b.addUser(ctx, r.Row, r.Credentials)
			if err != nil {
				return err
			}
			before := len(b.flds)
			if err := b.validate(prefix, r.NewParentAccount); err != nil {
				return err
			}
			var kids []school.Student
			for _, num := range r.StudentNumbers {
				child, ok := children[num]
				switch {
				case num == "":
					continue
				case !b.unique(r.Row, prefix, "student_numbers", num):
				case !ok:
					b.fail(prefix, "student_numbers", fmt.Sprintf("student %s not found", num))
				default:
					kids = append(kids, child)
				}
			}
			if idx < 0 || len(b.flds) > before {
				continue
			}

			usr := b.users[idx]
			p := school.Parent{
				ID:        uuid.NewString(),
				UserID:    usr.ID,
				Name:      usr.Name,
				Phone:     r.Phone,
				CreatedAt: now,
				UpdatedAt: now,
			}
			for _, kid := range kids {
				kid.ParentID = p.ID
				kid.UpdatedAt = now
				links = append(links, kid)
			}
			parents = append(parents, p)
			b.out[idx].ProfileID = p.ID
		}
		if b.invalid() {
			return b.err(single)
		}

		if err := b.createUsers(ctx); err != nil {
			return err
		}
		if err := svc.schools.CreateParents(ctx, parents...); err != nil {
			return errors.Wrap(err, "creating parents")
		}
		for _, kid := range links {
			if err := svc.schools.UpdateStudent(ctx, kid); err != nil {
				return errors.Wrap(err, "linking child")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.notify()
	return b.out, nil
}
