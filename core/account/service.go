package account

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

var (
	ErrNoRows       = errors.New("the file does not contain any account")
	errInvalidRows  = errors.New("invalid accounts")
	errInvalidInput = errors.New("invalid account")
)

type Service struct {
	users      user.Repository
	schools    school.Repository
	gradebooks school.GradebookEnsurer
	tx         core.Transactor
	validate   *validator.Validate
	translator ut.Translator
	mailSvc    core.EmailService
}

func NewService(
	users user.Repository,
	schools school.Repository,
	gradebooks school.GradebookEnsurer,
	tx core.Transactor,
	validate *validator.Validate,
	translator ut.Translator,
	mailSvc core.EmailService,
) *Service {
	return &Service{
		users:      users,
		schools:    schools,
		gradebooks: gradebooks,
		tx:         tx,
		validate:   validate,
		translator: translator,
		mailSvc:    mailSvc,
	}
}

// batch accumulates the accounts of a single creation request and the errors found on its rows.
type batch struct {
	svc   *Service
	role  string
	flds  []core.FieldError
	seen  map[string]map[string]int // field -> value -> first row
	users []user.User
	out   []CreatedAccount
}

func (svc *Service) newBatch(role string) *batch {
	return &batch{svc: svc, role: role, seen: make(map[string]map[string]int)}
}

func (b *batch) fail(prefix, field, msg string) {
	b.flds = append(b.flds, core.FieldError{Field: fieldKey(prefix, field), Error: msg})
}

func (b *batch) invalid() bool {
	return len(b.flds) > 0
}

func (b *batch) err(single bool) error {
	if single {
		return core.NewValidationError(errInvalidInput, b.flds...)
	}
	return core.NewValidationError(errInvalidRows, b.flds...)
}

// unique reports whether value was not used by a previous row of the batch for field.
func (b *batch) unique(row int, prefix, field, value string) bool {
	if value == "" {
		return true
	}
	values, ok := b.seen[field]
	if !ok {
		values = make(map[string]int)
		b.seen[field] = values
	}
	if first, ok := values[value]; ok {
		if first == 0 {
			b.fail(prefix, field, "duplicate value")
		} else {
			b.fail(prefix, field, fmt.Sprintf("duplicate of row %d", first))
		}
		return false
	}
	values[value] = row
	return true
}

// validate translates the validation errors of s under prefix.
func (b *batch) validate(prefix string, s interface{}) error {
	err := b.svc.validate.Struct(s)
	if err == nil {
		return nil
	}
	flds, err := core.TranslateFieldErrors(err, b.svc.translator, prefix)
	if err != nil {
		return err
	}
	b.flds = append(b.flds, flds...)
	return nil
}

// addUser checks the credentials of a row and prepares its user. The returned index
// locates the user and its report in the batch; -1 when the row is invalid.
func (b *batch) addUser(ctx context.Context, row int, creds Credentials) (int, error) {
	prefix := rowPrefix(row)
	creds.clean()
	generated := ""
	if creds.Password == "" {
		pwd, err := user.GeneratePassword()
		if err != nil {
			return -1, errors.Wrap(err, "generating password")
		}
		creds.Password, generated = pwd, pwd
	}
	nu := user.NewUser{
		Name:            creds.Name,
		Username:        creds.Username,
		Email:           creds.Email,
		Password:        creds.Password,
		PasswordConfirm: creds.Password,
		Roles:           []string{b.role},
	}

	before := len(b.flds)
	if err := b.validate(prefix, nu); err != nil {
		return -1, err
	}
	unameOK := b.unique(row, prefix, "username", nu.Username)
	emailOK := b.unique(row, prefix, "email", nu.Email)
	if unameOK && emailOK && len(b.flds) == before {
		if err := b.svc.users.CheckUniqueness(ctx, nu.Username, nu.Email, ""); err != nil {
			switch errors.Cause(err) {
			case user.ErrUsernameExists:
				b.fail(prefix, "username", user.ErrUsernameExists.Error())
			case user.ErrEmailExists:
				b.fail(prefix, "email", user.ErrEmailExists.Error())
			default:
				return -1, errors.Wrap(err, "checking user uniqueness")
			}
		}
	}
	if len(b.flds) > before {
		return -1, nil
	}

	usr, err := user.NewRecord(nu, time.Now())
	if err != nil {
		return -1, err
	}
	b.users = append(b.users, usr)
	b.out = append(b.out, CreatedAccount{
		Row:               row,
		UserID:            usr.ID,
		Name:              usr.Name,
		Username:          usr.Username,
		Email:             usr.Email,
		GeneratedPassword: generated,
	})
	return len(b.users) - 1, nil
}

func (b *batch) createUsers(ctx context.Context) error {
	return errors.Wrap(b.svc.users.Create(ctx, b.users...), "creating users")
}

// notify mails their credentials to the new users having an e-mail address.
func (b *batch) notify() {
	var msgs []*core.EmailMessage
	for _, acc := range b.out {
		if acc.Email == "" {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: acc.Name, Address: acc.Email}},
			Subject:      "Your account",
			TemplateName: "account_created",
			TemplateData: map[string]interface{}{
				"Name":     acc.Name,
				"Username": acc.Username,
				"Password": acc.GeneratedPassword,
			},
		})
	}
	if len(msgs) > 0 && b.svc.mailSvc != nil {
		b.svc.mailSvc.SendMessages(msgs...)
	}
}
