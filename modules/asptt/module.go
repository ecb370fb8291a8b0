package asptt

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/asptt-sync/modules/asptt/infrastructure/persistence"
	"github.com/iota-uz/asptt-sync/modules/asptt/infrastructure/previewstate"
	"github.com/iota-uz/asptt-sync/modules/asptt/infrastructure/staging"
	"github.com/iota-uz/asptt-sync/modules/asptt/presentation/controllers"
	"github.com/iota-uz/asptt-sync/modules/asptt/services"
	"github.com/iota-uz/asptt-sync/pkg/application"
	"github.com/iota-uz/asptt-sync/pkg/configuration"
)

func NewModule(conf *configuration.Configuration) application.Module {
	return &Module{conf: conf, now: time.Now}
}

type Module struct {
	conf *configuration.Configuration
	now  func() time.Time
}

// Repositories returns the Postgres-backed repository set. Each repository
// picks its pool or tx from the call context.
func Repositories() services.Repositories {
	return services.Repositories{
		Clubs:      persistence.NewClubRepository(),
		Licensees:  persistence.NewLicenseeRepository(),
		Aliases:    persistence.NewAliasRepository(),
		Documents:  persistence.NewDocumentRepository(),
		Meta:       persistence.NewMetaRepository(),
		Batches:    persistence.NewBatchRepository(),
		ImportLogs: persistence.NewImportLogRepository(),
		Tx:         persistence.NewTransactor(),
	}
}

// NewPreviewStates builds the configured preview-state backend. The returned
// closer releases the redis client, if any.
func NewPreviewStates(conf *configuration.Configuration, stage *staging.Store) (services.PreviewStates, func() error, error) {
	switch conf.PreviewState.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: conf.PreviewState.RedisURL})
		return previewstate.NewRedisStore(client, conf.PreviewState.TTL), client.Close, nil
	case "file", "":
		return previewstate.NewFileStore(stage), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown preview state backend %q", conf.PreviewState.Backend)
	}
}

func (m *Module) Register(app application.Application) error {
	stage, err := staging.NewStore(m.conf.Staging.Dir, m.conf.Staging.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("staging: %w", err)
	}
	states, closeStates, err := NewPreviewStates(m.conf, stage)
	if err != nil {
		return err
	}
	app.OnShutdown(func() { _ = closeStates() })

	repos := Repositories()
	app.RegisterServices(
		services.NewImportService(repos, stage, states, app.EventPublisher()),
		services.NewReviewService(repos, app.EventPublisher()),
	)

	importOpts := m.conf.Import
	app.RegisterControllers(
		controllers.NewAspttAPIController(app, func() services.Settings {
			return services.SettingsFrom(importOpts, m.now())
		}),
	)

	app.OnShutdown(services.SubscribeAuditLog(app.EventPublisher(), app.Logger()))
	return nil
}

func (m *Module) Name() string {
	return "asptt"
}
