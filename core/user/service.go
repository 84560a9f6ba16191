package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound       = &core.NotFoundError{Entity: "user"}
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrInvalidReset   = errors.New("the password reset link is invalid or has expired")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when taken by a user other than excludedID.
		CheckUniqueness(ctx context.Context, username, email, excludedID string) error
		Create(ctx context.Context, users ...User) error
		// Query applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		Query(ctx context.Context, filter QueryFilter) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, usr User) error
		SetLastLogin(ctx context.Context, id string, t time.Time) error
		Delete(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		mailSvc  core.EmailService
		tokens   tokenGenerator
	}
)

func NewService(repo Repository, validate *validator.Validate, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		validate: validate,
		mailSvc:  mailSvc,
		tokens: tokenGenerator{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.PasswordResetTimeoutDelta,
		},
	}
}

func (svc *Service) CheckUniqueness(ctx context.Context, uname, email, excludedID string) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludedID); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: errors.Cause(err).Error()})
	}
	return nil
}

// NewRecord builds a new active User (with hashed password) out of validated data.
func NewRecord(nu NewUser, now time.Time) (User, error) {
	usr := User{
		ID:        uuid.NewString(),
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return usr, nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, err
	}
	if err := svc.CheckUniqueness(ctx, nu.Username, nu.Email, ""); err != nil {
		return User{}, err
	}

	usr, err := NewRecord(nu, time.Now())
	if err != nil {
		return User{}, err
	}
	if err := svc.repo.Create(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]User, error) {
	filter.Clean()
	return svc.repo.Query(ctx, filter)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	uu.Clean(usr)
	if err := svc.validate.Struct(uu); err != nil {
		return User{}, err
	}
	if err := svc.CheckUniqueness(ctx, uu.Username, uu.Email, usr.ID); err != nil {
		return User{}, err
	}

	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()

	if err := svc.repo.Update(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

// ChangePassword sets a new password for the User after applying the password policy.
func (svc *Service) ChangePassword(ctx context.Context, id, pwd string) error {
	usr, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if msg := CheckPasswordPolicy(pwd, usr.Name, usr.Username, usr.Email); msg != "" {
		return core.NewValidationError(errors.New(msg), core.FieldError{Field: "password", Error: msg})
	}
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return errors.Wrap(svc.repo.Update(ctx, usr), "updating user")
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, errors.Wrap(err, "setting last login")
	}
	usr.LastLogin = &now
	return usr, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return svc.repo.Delete(ctx, ids...)
}

// RequestPasswordReset mails a password reset link to the active User owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return nil
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": svc.tokens.makeToken(usr),
		},
	})
}

// ResetPassword sets a new password for the User identified by a password reset link.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	if err := svc.validate.Struct(data); err != nil {
		return err
	}
	invalid := core.NewValidationError(ErrInvalidReset)

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalid
	}
	usr, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalid
		}
		return err
	}
	if err := svc.tokens.verifyToken(usr, data.Token); err != nil {
		return invalid
	}
	if msg := CheckPasswordPolicy(data.Password, usr.Name, usr.Username, usr.Email); msg != "" {
		return core.NewValidationError(errors.New(msg), core.FieldError{Field: "password", Error: msg})
	}

	if err := usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return errors.Wrap(svc.repo.Update(ctx, usr), "updating user")
}
