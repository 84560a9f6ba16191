package dig_container

import (
	"context"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/account"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/discipline"
	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	appfs "github.com/trezcool/shule/fs"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/services/ratelimit"
	"github.com/trezcool/shule/storage/database"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	pgrepos "github.com/trezcool/shule/storage/database/postgres"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// DBCloser releases the database connections; a no-op for the memory driver.
	DBCloser func() error

	Repositories struct {
		dig.Out
		Tx          core.Transactor
		Users       user.Repository
		Schools     school.Repository
		Grades      grading.Repository
		Attendances attendance.Repository
		Demerits    discipline.Repository
		Close       DBCloser
	}

	serverParams struct {
		dig.In
		Conf          *core.Config
		Logger        core.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		RateLimiter   core.RateLimiter
		UserSvc       *user.Service
		SchoolSvc     *school.Service
		AccountSvc    *account.Service
		AttendanceSvc *attendance.Service
		DisciplineSvc *discipline.Service
		GradingSvc    *grading.Service
	}
)

func newRollbarLogger(conf *core.Config) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZapLogger(conf, "api"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newLogger(logger *logsvc.RollbarLogger) core.Logger {
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(logsvc.NewZapLogger(conf, "db"), conf)
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	if conf.Database.Driver == "memory" {
		loggerParam.Logger.Warn("using the in-memory database, data is lost on shutdown")
		db := inmemdb.Open()
		return Repositories{
			Tx:          db,
			Users:       inmemdb.NewUserRepository(db),
			Schools:     inmemdb.NewSchoolRepository(db),
			Grades:      inmemdb.NewGradingRepository(db),
			Attendances: inmemdb.NewAttendanceRepository(db),
			Demerits:    inmemdb.NewDisciplineRepository(db),
			Close:       func() error { return nil },
		}
	}

	setUp := func() (*pgrepos.DB, DBCloser, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, nil, err
		}
		sqlDB, err := database.Open(conf)
		if err != nil {
			return nil, nil, err
		}
		if err = database.Migrate(context.Background(), sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		return pgrepos.NewDB(sqlDB), sqlDB.Close, nil
	}

	db, closeDB, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal("setting up database", err)
	}
	return Repositories{
		Tx:          db,
		Users:       pgrepos.NewUserRepository(db),
		Schools:     pgrepos.NewSchoolRepository(db),
		Grades:      pgrepos.NewGradingRepository(db),
		Attendances: pgrepos.NewAttendanceRepository(db),
		Demerits:    pgrepos.NewDisciplineRepository(db),
		Close:       closeDB,
	}
}

func newRateLimiter(conf *core.Config, logger core.Logger) core.RateLimiter {
	if conf.Redis.Address == "" {
		return ratelimit.NewMemoryLimiter()
	}
	rdb := ratelimit.NewRedisClient(conf)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("connecting to redis", err, map[string]interface{}{"address": conf.Redis.Address})
	}
	return ratelimit.NewRedisLimiter(rdb)
}

func newEmailTemplates(conf *core.Config, logger core.Logger) *core.EmailTemplates {
	return core.ParseEmailTemplates(appfs.FS, conf, logger)
}

func newEmailService(conf *core.Config, templates *core.EmailTemplates, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, templates, logger)
	}
	return emailsvc.NewSendgridService(conf, templates, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newGradebookEnsurer(svc *grading.Service) school.GradebookEnsurer {
	return svc
}

func newGradebooks(svc *grading.Service) school.Gradebooks {
	return svc
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		RateLimiter:   p.RateLimiter,
		UserSvc:       p.UserSvc,
		SchoolSvc:     p.SchoolSvc,
		AccountSvc:    p.AccountSvc,
		AttendanceSvc: p.AttendanceSvc,
		DisciplineSvc: p.DisciplineSvc,
		GradingSvc:    p.GradingSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newRollbarLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newRateLimiter))
	must(c.Provide(newEmailTemplates))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(grading.NewService))
	must(c.Provide(newGradebookEnsurer))
	must(c.Provide(newGradebooks))
	must(c.Provide(school.NewService))
	must(c.Provide(attendance.NewService))
	must(c.Provide(discipline.NewService))
	must(c.Provide(account.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
