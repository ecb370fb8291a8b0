package services

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/modules/asptt/infrastructure/previewstate"
	"github.com/iota-uz/asptt-sync/modules/asptt/infrastructure/staging"
	"github.com/iota-uz/asptt-sync/pkg/composables"
	"github.com/iota-uz/asptt-sync/pkg/eventbus"
)

const header = "Nom;Prénom;Date de naissance;Licence;Note;Sexe"

// mixedFile covers one row per outcome.
var mixedFile = strings.Join([]string{
	header,
	"MARTIN;Jean;01/02/2005;A1001;AS VILLE;M",
	"DUPONT;Marie;04/03/2006;A1002;AS Double;",
	"LEROY;Paul;06/05/2004;A1003;ASVILLE X;M",
	"MARTIN;Jean;31/02/2005;A1004;AS VILLE;M",
	"Dupont;Marie;04/03/2006;A1005;as double;f",
	"INCONNU;Jean;01/02/2005;A1006;AS VILLE;",
	"MARTIN;Jean;01/02/2005;;AS VILLE;",
	"MARTIN;Jean;01/02/2005;A1008;Nowhere FC;",
}, "\n") + "\n"

type fixture struct {
	store    *memStore
	staging  *staging.Store
	imports  *ImportService
	reviews  *ReviewService
	bus      eventbus.EventBus
	logger   *logrus.Logger
	logs     *test.Hook
	settings Settings
	ctx      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	store.AddClub(1, "AS Ville")
	store.AddClub(2, "AS Double")
	store.AddClub(3, "Club Trois")
	store.AddClub(7, "Club Sept")
	store.AddAlias(7, "ASVILLE X")
	store.AddLicensee(101, 1, "Martin", "Jean", "2005-02-01", "M")
	store.AddLicensee(102, 3, "MARTIN", "JEAN", "2005-02-01", "M")
	store.AddLicensee(201, 2, "Dupont", "Marie", "2006-03-04", "F")
	store.AddLicensee(202, 2, "DUPONT", "MARIE", "2006-03-04", "M")
	store.AddLicensee(701, 7, "Leroy", "Paul", "2004-05-06", "M")

	stage, err := staging.NewStore(t.TempDir(), 1<<20)
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	bus := eventbus.NewEventPublisher(logger)

	imports := NewImportService(store.repos(), stage, previewstate.NewFileStore(stage), bus)
	imports.now = store.Now

	ctx := composables.WithLogger(context.Background(), logrus.NewEntry(logger))
	ctx = composables.WithOperator(ctx, "alice")

	return &fixture{
		store:   store,
		staging: stage,
		imports: imports,
		reviews: NewReviewService(store.repos(), bus),
		bus:     bus,
		logger:  logger,
		logs:    hook,
		settings: Settings{
			DefaultSeasonEndYear: 2025,
			AutoApproveThreshold: 0,
			RollbackEnabled:      true,
			PreviewMinRows:       1,
			PreviewMaxRows:       200,
			PreviewDefaultRows:   50,
		},
		ctx: ctx,
	}
}

// stage uploads content and returns its handle and suggested params.
func (f *fixture) stage(t *testing.T, content string) (string, reconcile.Params) {
	t.Helper()
	res, err := f.imports.Stage(f.ctx, "licences.csv", strings.NewReader(content))
	require.NoError(t, err)
	params, err := f.imports.Params(f.ctx, res.Upload.Handle)
	require.NoError(t, err)
	return res.Upload.Handle, params
}

func (f *fixture) commit(t *testing.T, handle string, params reconcile.Params) CommitSummary {
	t.Helper()
	sum, err := f.imports.Commit(f.ctx, handle, params, f.settings, CommitOptions{})
	require.NoError(t, err)
	return sum
}

func (f *fixture) hasLog(msg string) bool {
	for _, e := range f.logs.AllEntries() {
		if e.Message == msg {
			return true
		}
	}
	return false
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, ErrorCode(err), "error: %v", err)
}
