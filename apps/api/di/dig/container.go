package dig_container

import (
	"context"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	echoapi "github.com/toure-cloud/institutdeveloppement/apps/api/echo"
	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/activity"
	"github.com/toure-cloud/institutdeveloppement/core/content"
	"github.com/toure-cloud/institutdeveloppement/core/convocation"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
	"github.com/toure-cloud/institutdeveloppement/core/mailing"
	"github.com/toure-cloud/institutdeveloppement/core/user"
	emailsvc "github.com/toure-cloud/institutdeveloppement/services/email"
	logsvc "github.com/toure-cloud/institutdeveloppement/services/logger"
	metricsvc "github.com/toure-cloud/institutdeveloppement/services/metrics"
	ratelimitsvc "github.com/toure-cloud/institutdeveloppement/services/ratelimit"
	revocationsvc "github.com/toure-cloud/institutdeveloppement/services/revocation"
	storagesvc "github.com/toure-cloud/institutdeveloppement/services/storage"
	"github.com/toure-cloud/institutdeveloppement/storage/database"
	inmemdb "github.com/toure-cloud/institutdeveloppement/storage/database/inmem"
	sqlxrepos "github.com/toure-cloud/institutdeveloppement/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Loggers groups the loggers that must be flushed on exit.
type Loggers struct {
	dig.Out
	API *logsvc.RollbarLogger
	Log core.Logger
	DB  core.Logger `name:"dbLogger"`
}

func newLoggers(conf *core.Config) Loggers {
	apiLogger := logsvc.NewRollbarLogger(log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	apiLogger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	dbLogger.Enable(!conf.Debug)

	return Loggers{API: apiLogger, Log: apiLogger, DB: dbLogger}
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Ping(ctx, db); err != nil {
			return nil, err
		}
		if err = database.Migrate(ctx, db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal("setting up database: "+err.Error(), err)
	}
	return db
}

// newRedis returns a nil client when redis is not configured or unreachable; services then fall back to memory.
func newRedis(conf *core.Config, logger core.Logger) *redis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := ratelimitsvc.NewRedisClient(ctx, conf)
	if err != nil {
		logger.Warn("connecting to redis: " + err.Error() + ": rate limits and token revocations are kept in memory")
		return nil
	}
	if client == nil {
		logger.Warn("redis is not configured: rate limits and token revocations are kept in memory")
	}
	return client
}

func newRegistry() (*prometheus.Registry, prometheus.Registerer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, reg
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(logger, conf)
	}
	return emailsvc.NewSendgridService(logger, conf)
}

func newSheetRenderer(conf *core.Config) enrollment.SheetRenderer {
	return convocation.NewSheetRenderer(conf.AppName)
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	storage core.FileStorage,
	usrSvc user.Service,
	enrSvc enrollment.Service,
	actSvc activity.Service,
	contentSvc content.Service,
	convSvc convocation.Service,
	mailingSvc mailing.Service,
	limiters *ratelimitsvc.Limiters,
	revocations revocationsvc.List,
	metrics *metricsvc.Metrics,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Storage:        storage,
		UserSvc:        usrSvc,
		EnrollmentSvc:  enrSvc,
		ActivitySvc:    actSvc,
		ContentSvc:     contentSvc,
		ConvocationSvc: convSvc,
		MailingSvc:     mailingSvc,
		Limiters:       limiters,
		Revocations:    revocations,
		Metrics:        metrics,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	return newContainer(core.NewConfig())
}

func newContainer(conf *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(func() *core.Config { return conf }))
	must(c.Provide(newLoggers))
	must(c.Provide(newRedis))
	must(c.Provide(newRegistry))

	// repositories
	if conf.TestMode {
		provideInmemRepositories(c)
	} else {
		provideSQLRepositories(c)
	}

	// infrastructure
	must(c.Provide(newEmailService))
	must(c.Provide(storagesvc.NewLocalStorage))
	must(c.Provide(ratelimitsvc.NewLimiters))
	must(c.Provide(revocationsvc.New))
	must(c.Provide(metricsvc.New))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newSheetRenderer))

	// domain services
	must(c.Provide(user.NewService))
	must(c.Provide(enrollment.NewService))
	must(c.Provide(func(svc enrollment.Service) content.EnrollmentFinder { return svc }))
	must(c.Provide(func(svc enrollment.Service) convocation.EnrollmentFinder { return svc }))
	must(c.Provide(func(svc enrollment.Service) mailing.EnrollmentLister { return svc }))
	must(c.Provide(activity.NewService))
	must(c.Provide(func(svc activity.Service) content.ActivityLister { return svc }))
	must(c.Provide(content.NewService))
	must(c.Provide(convocation.NewService))
	must(c.Provide(mailing.NewService))

	must(c.Provide(newServer))

	return c
}

func provideSQLRepositories(c *dig.Container) {
	must(c.Provide(newDB))
	must(c.Provide(func(db *sqlx.DB) core.DBExecutor { return db }))
	must(c.Provide(database.NewTransactor))

	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewEnrollmentRepository))
	must(c.Provide(sqlxrepos.NewActivityRepository))
	must(c.Provide(sqlxrepos.NewContentRepository))
	must(c.Provide(sqlxrepos.NewScheduleRepository))
}

// provideInmemRepositories backs the TEST mode: no database is opened.
func provideInmemRepositories(c *dig.Container) {
	must(c.Provide(inmemdb.Open))
	must(c.Provide(inmemdb.NewTransactor))

	must(c.Provide(inmemdb.NewUserRepository))
	must(c.Provide(inmemdb.NewEnrollmentRepository))
	must(c.Provide(inmemdb.NewActivityRepository))
	must(c.Provide(inmemdb.NewContentRepository))
	must(c.Provide(inmemdb.NewScheduleRepository))
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
