package controllers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/asptt-sync/modules/asptt/infrastructure/previewstate"
	"github.com/iota-uz/asptt-sync/modules/asptt/infrastructure/staging"
	"github.com/iota-uz/asptt-sync/modules/asptt/services"
	"github.com/iota-uz/asptt-sync/modules/asptt/testkit"
	"github.com/iota-uz/asptt-sync/pkg/application"
	"github.com/iota-uz/asptt-sync/pkg/httpapi"
	"github.com/iota-uz/asptt-sync/pkg/middleware"
)

const licencesCSV = "Nom;Prénom;Date de naissance;Licence;Note;Sexe\n" +
	"MARTIN;Jean;01/02/2005;A1001;AS VILLE;M\n" +
	"INCONNU;Jean;01/02/2005;A1006;AS VILLE;\n"

type apiEnv struct {
	store  *testkit.Store
	router *mux.Router
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	store := testkit.NewStore()
	store.AddClub(1, "AS Ville")
	store.AddClub(3, "Club Trois")
	store.AddLicensee(101, 1, "Martin", "Jean", "2005-02-01", "M")
	store.AddLicensee(102, 3, "MARTIN", "JEAN", "2005-02-01", "M")

	stage, err := staging.NewStore(t.TempDir(), 1<<20)
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	app := application.New(&application.ApplicationOptions{Logger: logger})
	repos := services.Repositories{
		Clubs:      store.Clubs(),
		Licensees:  store.Licensees(),
		Aliases:    store.Aliases(),
		Documents:  store.Documents(),
		Meta:       store.Meta(),
		Batches:    store.Batches(),
		ImportLogs: store.ImportLogs(),
		Tx:         store.Transactor(),
	}
	app.RegisterServices(
		services.NewImportService(repos, stage, previewstate.NewFileStore(stage), app.EventPublisher()),
		services.NewReviewService(repos, app.EventPublisher()),
	)
	settings := services.Settings{
		DefaultSeasonEndYear: 2025,
		AutoApproveThreshold: 100,
		RollbackEnabled:      true,
		PreviewMinRows:       1,
		PreviewMaxRows:       200,
		PreviewDefaultRows:   50,
	}
	ctrl := NewAspttAPIController(app, func() services.Settings { return settings })

	r := mux.NewRouter()
	r.Use(middleware.WithLogger(logger, middleware.DefaultLoggerOptions()))
	ctrl.Register(r)
	return &apiEnv{store: store, router: r}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Operator", "alice")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) upload(t *testing.T, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(uploadFormField, name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/asptt/api/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) stage(t *testing.T) string {
	t.Helper()
	rec := e.upload(t, "licences.csv", licencesCSV)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res services.StageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Upload.Handle)
	return res.Upload.Handle
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireAPIError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	env := decode[httpapi.ErrorEnvelope](t, rec)
	assert.Equal(t, code, env.Code)
	assert.NotEmpty(t, env.Meta["request_id"])
}

func TestAPI_UploadPreviewCommit(t *testing.T) {
	env := newAPIEnv(t)
	handle := env.stage(t)
	base := "/asptt/api/uploads/" + handle

	rec := env.do(t, http.MethodGet, base+"/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decode[services.PreviewResult](t, rec)
	assert.Equal(t, 2, preview.Counters.Total)
	assert.Equal(t, 1, preview.Counters.LicencesLinked)
	assert.Len(t, preview.Rows, 2)

	rec = env.do(t, http.MethodGet, base+"/preview?rows=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	preview = decode[services.PreviewResult](t, rec)
	assert.Len(t, preview.Rows, 1)
	assert.True(t, preview.More)

	rec = env.do(t, http.MethodGet, base+"/preview?rows=abc", nil)
	requireAPIError(t, rec, http.StatusBadRequest, services.CodeInvalidParams)

	rec = env.do(t, http.MethodPost, base+"/commit", map[string]bool{"dry_run": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Zero(t, env.store.DocCount(), "dry run writes nothing")

	rec = env.do(t, http.MethodPost, base+"/commit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decode[services.CommitSummary](t, rec)
	assert.Equal(t, 1, sum.SuccessRows)
	assert.Equal(t, 1, sum.ErrorRows)
	assert.Equal(t, 1, env.store.DocCount())

	rec = env.do(t, http.MethodGet, "/asptt/api/imports/logs?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs struct {
		Logs []map[string]any `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs.Logs, 2)
	assert.Equal(t, "import", logs.Logs[0]["mode"])
	assert.Equal(t, "alice", logs.Logs[0]["operator"])
}

func TestAPI_UploadRejections(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.upload(t, "licences.pdf", licencesCSV)
	requireAPIError(t, rec, http.StatusUnsupportedMediaType, services.CodeFileType)

	rec = env.do(t, http.MethodPost, "/asptt/api/uploads", nil)
	requireAPIError(t, rec, http.StatusBadRequest, services.CodeInvalidParams)

	rec = env.do(t, http.MethodGet, "/asptt/api/uploads/"+strings.Repeat("0", 32)+"/preview", nil)
	requireAPIError(t, rec, http.StatusNotFound, services.CodeFileNotFound)

	rec = env.do(t, http.MethodGet, "/asptt/api/uploads/nope/preview", nil)
	requireAPIError(t, rec, http.StatusNotFound, services.CodeFileNotFound)
}

func TestAPI_StateAndDiscard(t *testing.T) {
	env := newAPIEnv(t)
	handle := env.stage(t)
	base := "/asptt/api/uploads/" + handle

	rec := env.do(t, http.MethodGet, base+"/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[map[string]any](t, rec)
	require.Contains(t, state, "mapping")

	state["force_club_id"] = 1
	rec = env.do(t, http.MethodPut, base+"/state", state)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, base+"/state", map[string]any{"bogus": true})
	requireAPIError(t, rec, http.StatusBadRequest, services.CodeInvalidParams)

	rec = env.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, base+"/preview", nil)
	requireAPIError(t, rec, http.StatusNotFound, services.CodeFileNotFound)
}

func TestAPI_ExportErrors(t *testing.T) {
	env := newAPIEnv(t)
	handle := env.stage(t)
	base := "/asptt/api/uploads/" + handle + "/errors"

	rec := env.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, services.FormatCSV.ContentType(), rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "licences_errors.csv")
	assert.Equal(t, "1", rec.Header().Get("X-Error-Rows"))
	assert.Contains(t, rec.Body.String(), "INCONNU")
	assert.Contains(t, rec.Body.String(), "licence_not_found")
	assert.NotContains(t, rec.Body.String(), "A1001")

	rec = env.do(t, http.MethodGet, base+"?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.FormatXLSX.ContentType(), rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip container")

	rec = env.do(t, http.MethodGet, base+"?format=ods", nil)
	requireAPIError(t, rec, http.StatusBadRequest, services.CodeInvalidParams)
}

func TestAPI_Rollback(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/asptt/api/imports/rollback", nil)
	requireAPIError(t, rec, http.StatusConflict, services.CodeNoBatch)

	handle := env.stage(t)
	rec = env.do(t, http.MethodPost, "/asptt/api/uploads/"+handle+"/commit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/asptt/api/imports/rollback", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[services.RollbackResult](t, rec)
	assert.Equal(t, int64(1), res.DocumentsDeleted)
	assert.Zero(t, env.store.DocCount())
}

func TestAPI_ReviewActions(t *testing.T) {
	env := newAPIEnv(t)
	handle := env.stage(t)
	rec := env.do(t, http.MethodPost, "/asptt/api/uploads/"+handle+"/commit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc, ok := env.store.DocByLicence("A1001")
	require.True(t, ok)
	docPath := "/asptt/api/documents/" + itoa(doc.ID)

	rec = env.do(t, http.MethodPost, docPath+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tr := decode[services.TransitionResult](t, rec)
	assert.Equal(t, "pending", string(tr.From))
	assert.Equal(t, "approved", string(tr.To))
	assert.Equal(t, "manual", string(tr.LinkMode))

	rec = env.do(t, http.MethodPost, docPath+"/restore", nil)
	requireAPIError(t, rec, http.StatusConflict, services.CodeInvalidTransition)

	rec = env.do(t, http.MethodPost, docPath+"/explode", nil)
	requireAPIError(t, rec, http.StatusBadRequest, services.CodeInvalidParams)

	rec = env.do(t, http.MethodPost, "/asptt/api/documents:bulk", map[string]any{"action": "trash", "ids": []int64{doc.ID, 999}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bulk := decode[services.BulkResult](t, rec)
	assert.Equal(t, 1, bulk.Updated)
	assert.Equal(t, 1, bulk.Failed)
	assert.Equal(t, services.CodeNotFound, bulk.Errors[999])

	rec = env.do(t, http.MethodPost, "/asptt/api/documents/999/approve", nil)
	requireAPIError(t, rec, http.StatusNotFound, services.CodeNotFound)
}

func TestAPI_DeleteNeedsConfirmation(t *testing.T) {
	env := newAPIEnv(t)
	handle := env.stage(t)
	env.do(t, http.MethodPost, "/asptt/api/uploads/"+handle+"/commit", nil)
	doc, _ := env.store.DocByLicence("A1001")
	docPath := "/asptt/api/documents/" + itoa(doc.ID)

	rec := env.do(t, http.MethodDelete, docPath, nil)
	requireAPIError(t, rec, http.StatusPreconditionRequired, services.CodeConfirmationRequired)
	assert.Equal(t, 1, env.store.DocCount())

	rec = env.do(t, http.MethodDelete, docPath+"?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Zero(t, env.store.DocCount())
	assert.Zero(t, env.store.MetaCount())
}

func TestAPI_SetClubAndAliases(t *testing.T) {
	env := newAPIEnv(t)
	handle := env.stage(t)
	env.do(t, http.MethodPost, "/asptt/api/uploads/"+handle+"/commit", nil)
	doc, _ := env.store.DocByLicence("A1001")
	docPath := "/asptt/api/documents/" + itoa(doc.ID) + "/club"

	rec := env.do(t, http.MethodPost, docPath, map[string]any{"club_id": 0})
	requireAPIError(t, rec, http.StatusBadRequest, services.CodeInvalidParams)

	rec = env.do(t, http.MethodPost, docPath, map[string]any{"club_id": 3, "save_alias": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	relink := decode[services.RelinkResult](t, rec)
	assert.Equal(t, int64(102), relink.LicenseeID)
	assert.Equal(t, int64(101), relink.PreviousLicenseeID)
	require.NotNil(t, relink.Alias)

	rec = env.do(t, http.MethodPost, "/asptt/api/aliases", map[string]any{"club_id": 1, "alias": "Ville Athletic"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodPost, "/asptt/api/aliases", map[string]any{"club_id": 3, "alias": "ville athletic"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	alias := decode[services.AliasResult](t, rec)
	assert.False(t, alias.Created)
	assert.Equal(t, int64(1), alias.Alias.ClubID, "first writer wins")

	rec = env.do(t, http.MethodPost, "/asptt/api/aliases", map[string]any{"club_id": 42, "alias": "x"})
	requireAPIError(t, rec, http.StatusNotFound, services.CodeNotFound)
}

func TestExportName(t *testing.T) {
	assert.Equal(t, "licences_errors.xlsx", exportName("licences.csv", services.FormatXLSX))
	assert.Equal(t, "asptt_errors.csv", exportName("", services.FormatCSV))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
