package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/asptt-sync/modules/asptt"
	"github.com/iota-uz/asptt-sync/modules/asptt/infrastructure/staging"
	"github.com/iota-uz/asptt-sync/modules/asptt/services"
	"github.com/iota-uz/asptt-sync/pkg/composables"
	"github.com/iota-uz/asptt-sync/pkg/configuration"
	"github.com/iota-uz/asptt-sync/pkg/eventbus"
	"github.com/iota-uz/asptt-sync/pkg/logging"
)

const connectTimeout = 5 * time.Second

// runtime is everything one command invocation needs.
type runtime struct {
	conf     *configuration.Configuration
	logger   *logrus.Logger
	pool     *pgxpool.Pool
	imports  *services.ImportService
	reviews  *services.ReviewService
	settings services.Settings
	closers  []func()
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// bind carries pool, logger and operator into ctx for the services.
func (rt *runtime) bind(ctx context.Context, operator string) context.Context {
	if rt.pool != nil {
		ctx = composables.WithPool(ctx, rt.pool)
	}
	ctx = composables.WithLogger(ctx, rt.logger.WithField("operator", operator))
	return composables.WithOperator(ctx, operator)
}

// openRuntime is swapped in tests.
var openRuntime = func(ctx context.Context, g *globalOptions) (*runtime, error) {
	conf, logger, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	pool, err := connect(ctx, conf)
	if err != nil {
		return nil, err
	}
	rt := &runtime{conf: conf, logger: logger, pool: pool, closers: []func(){pool.Close}}

	stage, err := staging.NewStore(conf.Staging.Dir, conf.Staging.MaxUploadSize)
	if err != nil {
		rt.Close()
		return nil, withCode(exitUsage, fmt.Errorf("staging: %w", err))
	}
	states, closeStates, err := asptt.NewPreviewStates(conf, stage)
	if err != nil {
		rt.Close()
		return nil, withCode(exitUsage, err)
	}
	rt.closers = append(rt.closers, func() { _ = closeStates() })

	bus := eventbus.NewEventPublisher(logger)
	rt.closers = append(rt.closers, services.SubscribeAuditLog(bus, logger))

	repos := asptt.Repositories()
	rt.imports = services.NewImportService(repos, stage, states, bus)
	rt.reviews = services.NewReviewService(repos, bus)
	rt.settings = services.SettingsFrom(conf.Import, time.Now())
	return rt, nil
}

func loadConfig(g *globalOptions) (*configuration.Configuration, *logrus.Logger, error) {
	if _, err := configuration.LoadEnv([]string{".env", ".env.local"}); err != nil {
		return nil, nil, withCode(exitUsage, fmt.Errorf("load env: %w", err))
	}
	conf, err := configuration.Parse()
	if err != nil {
		return nil, nil, withCode(exitUsage, err)
	}
	if g != nil && stringsTrim(g.logLevel) != "" {
		conf.LogLevel = stringsTrim(g.logLevel)
	}
	return conf, logging.StderrLogger(conf.LogrusLogLevel()), nil
}

func connect(ctx context.Context, conf *configuration.Configuration) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("connect db: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, withCode(exitDB, fmt.Errorf("ping db: %w", err))
	}
	return pool, nil
}

// withRuntime opens the runtime around fn and closes it afterwards.
func withRuntime(ctx context.Context, g *globalOptions, fn func(context.Context, *runtime) error) error {
	rt, err := openRuntime(ctx, g)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt.bind(ctx, g.operator), rt)
}
