package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/ratecon-tracker/constants"
	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
	"github.com/joseph-ayodele/ratecon-tracker/internal/merge"
	"github.com/joseph-ayodele/ratecon-tracker/internal/pipeline"
	"github.com/joseph-ayodele/ratecon-tracker/internal/storage"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n0000")

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	docs  []entity.UploadedDocument
	forms []entity.FormState
	err   error
}

func (f *fakeExtractor) Run(_ context.Context, doc entity.UploadedDocument, form entity.FormState) (pipeline.Result, error) {
	f.mu.Lock()
	f.calls++
	f.docs = append(f.docs, doc)
	f.forms = append(f.forms, form)
	f.mu.Unlock()
	if f.err != nil {
		return pipeline.Result{State: constants.RunFailed, Form: form}, f.err
	}
	out := form.Clone()
	out.PickupCity = "Hollister"
	return pipeline.Result{
		JobID:   uuid.New(),
		State:   constants.RunSucceeded,
		Form:    out,
		Changes: []merge.Change{{Field: "pickup_city", Source: "origin", New: "Hollister"}},
		Pages:   2,
		Model:   "fake:vision",
	}, nil
}

type fakeStore struct {
	mu    sync.Mutex
	loads map[uuid.UUID]entity.Load
	err   error
}

func newFakeStore() *fakeStore { return &fakeStore{loads: map[uuid.UUID]entity.Load{}} }

func (f *fakeStore) Create(_ context.Context, form entity.FormState, sha string) (*entity.Load, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l := entity.Load{ID: uuid.New(), Form: form, SourceSHA: sha, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.loads[l.ID] = l
	return &l, nil
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, form entity.FormState) (*entity.Load, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.loads[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	l.Form = form
	f.loads[id] = l
	return &l, nil
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (*entity.Load, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.loads[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &l, nil
}

func (f *fakeStore) List(context.Context, int) ([]entity.Load, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.Load, 0, len(f.loads))
	for _, l := range f.loads {
		out = append(out, l)
	}
	return out, nil
}

type fakeExporter struct{}

func (fakeExporter) ExportLoadsXLSX(context.Context) ([]byte, error) { return []byte("PK"), nil }

type fakeArchive struct {
	mu   sync.Mutex
	shas []string
	err  error
}

func (f *fakeArchive) Save(_ context.Context, _ entity.UploadedDocument, sha string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shas = append(f.shas, sha)
	return "ratecons/" + sha + ".png", f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(ex Extractor, store LoadStore, archive *fakeArchive) http.Handler {
	var a storage.DocumentStore
	if archive != nil {
		a = archive
	}
	s := New(Config{MaxUploadBytes: 1 << 20}, ex, store, fakeExporter{}, a, testLogger())
	return s.Handler()
}

func multipartBody(t *testing.T, filename string, data []byte, form string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	if form != "" {
		require.NoError(t, mw.WriteField("form", form))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postExtract(t *testing.T, h http.Handler, filename string, data []byte, form string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, filename, data, form)
	req := httptest.NewRequest(http.MethodPost, "/v1/ratecons/extract", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h := newTestServer(&fakeExtractor{}, nil, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestExtract_OK(t *testing.T) {
	ex := &fakeExtractor{}
	archive := &fakeArchive{}
	h := newTestServer(ex, nil, archive)

	rec := postExtract(t, h, "conf.png", pngMagic, `{"reference":"LD-9"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got extractResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Hollister", got.Form.PickupCity)
	assert.Equal(t, "LD-9", got.Form.Reference)
	assert.Equal(t, []string{"pickup_city"}, got.UpdatedFields)
	assert.Equal(t, 2, got.Pages)

	require.Len(t, ex.docs, 1)
	assert.Equal(t, "image/png", ex.docs[0].MediaType)
	assert.Equal(t, "LD-9", ex.forms[0].Reference)
	require.Len(t, archive.shas, 1)
	assert.Len(t, archive.shas[0], 64)
}

func TestExtract_ArchiveFailureDoesNotBlock(t *testing.T) {
	h := newTestServer(&fakeExtractor{}, nil, &fakeArchive{err: errors.New("bucket gone")})
	rec := postExtract(t, h, "conf.png", pngMagic, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtract_InputErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		form     string
		field    string
	}{
		{"missing file", "", nil, "", "file"},
		{"empty file", "conf.png", []byte{}, "", "file"},
		{"unsupported type", "notes.txt", []byte("hello there"), "", "media_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &fakeExtractor{}
			rec := postExtract(t, newTestServer(ex, nil, nil), tt.filename, tt.data, tt.form)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "input", body.Kind)
			require.NotEmpty(t, body.Details)
			assert.Equal(t, tt.field, body.Details[0].Field)
			assert.Zero(t, ex.calls)
		})
	}
}

func TestExtract_BadFormJSON(t *testing.T) {
	rec := postExtract(t, newTestServer(&fakeExtractor{}, nil, nil), "conf.png", pngMagic, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtract_TooLarge(t *testing.T) {
	big := append(append([]byte{}, pngMagic...), make([]byte, 3<<20)...)
	rec := postExtract(t, newTestServer(&fakeExtractor{}, nil, nil), "conf.png", big, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtract_PipelineFailures(t *testing.T) {
	tests := []struct {
		kind   common.ErrorKind
		status int
	}{
		{common.KindExtraction, http.StatusBadGateway},
		{common.KindParse, http.StatusUnprocessableEntity},
		{common.KindValidation, http.StatusUnprocessableEntity},
		{common.KindRender, http.StatusUnprocessableEntity},
		{common.KindInput, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			ex := &fakeExtractor{err: &pipeline.Error{Stage: "extract", Kind: tt.kind, Err: errors.New("boom")}}
			rec := postExtract(t, newTestServer(ex, nil, nil), "conf.png", pngMagic, `{"pickup_city":"Joliet"}`)
			require.Equal(t, tt.status, rec.Code)

			var body struct {
				Error string           `json:"error"`
				Kind  string           `json:"kind"`
				Form  entity.FormState `json:"form"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, common.UserMessage, body.Error)
			assert.Equal(t, string(tt.kind), body.Kind)
			assert.Equal(t, "Joliet", body.Form.PickupCity)
			assert.NotContains(t, rec.Body.String(), "boom")
		})
	}
}

func TestExtract_RateLimited(t *testing.T) {
	s := New(Config{MaxUploadBytes: 1 << 20, RateLimitRPS: 0.001, RateLimitBurst: 1}, &fakeExtractor{}, nil, nil, nil, testLogger())
	h := s.Handler()

	assert.Equal(t, http.StatusOK, postExtract(t, h, "conf.png", pngMagic, "").Code)
	rec := postExtract(t, h, "conf.png", pngMagic, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestFlightKey(t *testing.T) {
	a, err := flightKey("abc", entity.FormState{})
	require.NoError(t, err)
	b, err := flightKey("abc", entity.FormState{PickupCity: "Reno"})
	require.NoError(t, err)
	c, err := flightKey("abc", entity.FormState{})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)
}

func doJSON(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoads_CreateGetUpdateList(t *testing.T) {
	store := newFakeStore()
	h := newTestServer(&fakeExtractor{}, store, nil)

	rec := doJSON(h, http.MethodPost, "/v1/loads", `{"form":{"reference":"LD-1","pickup_state":"CA","rate":"2450.00"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(h, http.MethodGet, "/v1/loads/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var load entity.Load
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &load))
	assert.Equal(t, "LD-1", load.Form.Reference)

	rec = doJSON(h, http.MethodPut, "/v1/loads/"+created.ID.String(), `{"form":{"reference":"LD-2"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "LD-2", store.loads[created.ID].Form.Reference)

	rec = doJSON(h, http.MethodGet, "/v1/loads?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "LD-2")
}

func TestLoads_Errors(t *testing.T) {
	h := newTestServer(&fakeExtractor{}, newFakeStore(), nil)

	assert.Equal(t, http.StatusBadRequest, doJSON(h, http.MethodGet, "/v1/loads/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(h, http.MethodGet, "/v1/loads/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(h, http.MethodPut, "/v1/loads/"+uuid.NewString(), `{"form":{}}`).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(h, http.MethodPost, "/v1/loads", `{"form":`).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(h, http.MethodGet, "/v1/loads?limit=-1", "").Code)

	rec := doJSON(h, http.MethodPost, "/v1/loads", `{"form":{"pickup_state":"ZZ","rate":"$12"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Details, 2)
	assert.Equal(t, "pickup_state", body.Details[0].Field)
	assert.Equal(t, "rate", body.Details[1].Field)
}

func TestLoads_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.err = common.ErrDatabase
	h := newTestServer(&fakeExtractor{}, store, nil)
	rec := doJSON(h, http.MethodPost, "/v1/loads", `{"form":{}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "database")
}

func TestLoads_Unconfigured(t *testing.T) {
	s := New(Config{}, &fakeExtractor{}, nil, nil, nil, testLogger())
	h := s.Handler()
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(h, http.MethodGet, "/v1/loads/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(h, http.MethodGet, "/v1/loads/export.xlsx", "").Code)
}

func TestExport(t *testing.T) {
	h := newTestServer(&fakeExtractor{}, newFakeStore(), nil)
	rec := doJSON(h, http.MethodGet, "/v1/loads/export.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Equal(t, "PK", rec.Body.String())
}

// blockingExtractor hangs until its context ends, like a stuck converter.
type blockingExtractor struct {
	deadline chan bool
}

func (b *blockingExtractor) Run(ctx context.Context, _ entity.UploadedDocument, form entity.FormState) (pipeline.Result, error) {
	_, ok := ctx.Deadline()
	b.deadline <- ok
	<-ctx.Done()
	return pipeline.Result{State: constants.RunFailed, Form: form}, &pipeline.Error{Kind: common.KindRender, Err: ctx.Err()}
}

func TestExtract_SharedRunIsBounded(t *testing.T) {
	ex := &blockingExtractor{deadline: make(chan bool, 1)}
	s := New(Config{MaxUploadBytes: 1 << 20, RunTimeout: 50 * time.Millisecond}, ex, nil, nil, nil, testLogger())

	body, ct := multipartBody(t, "conf.png", pngMagic, "")
	req := httptest.NewRequest(http.MethodPost, "/v1/ratecons/extract", body)
	req.Header.Set("Content-Type", ct)
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		done <- rec
	}()

	assert.True(t, <-ex.deadline, "run carries a deadline")
	select {
	case rec := <-done:
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("shared run never timed out")
	}
}
