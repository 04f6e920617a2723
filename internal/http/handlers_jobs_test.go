package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/time/rate"

	"github.com/target/mediabroker/internal/adapters/extractor"
	"github.com/target/mediabroker/internal/data"
	"github.com/target/mediabroker/internal/domain/model"
	"github.com/target/mediabroker/internal/mocks"
	"github.com/target/mediabroker/internal/observability/statsd"
	"github.com/target/mediabroker/internal/service"
)

// queueRunner records jobs without executing them; tests drive transitions.
type queueRunner struct {
	reg *data.JobRegistry
}

func (q *queueRunner) Submit(ctx context.Context, p model.CreateJobParams) (*model.Job, error) {
	return q.reg.Create(ctx, p)
}

type apiFixture struct {
	handler http.Handler
	reg     *data.JobRegistry
	ext     *mocks.MockExtractor
	metrics *statsd.Recorder
}

func newAPIFixture(t *testing.T, limiter *rate.Limiter) *apiFixture {
	t.Helper()
	reg, err := data.NewJobRegistry(data.RegistryConfig{Root: t.TempDir()})
	require.NoError(t, err)

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Registry:  reg,
		Runner:    &queueRunner{reg: reg},
		Validator: extractor.NewURLValidator([]string{"youtube.com", "youtu.be"}),
	})
	require.NoError(t, err)

	ext := mocks.NewMockExtractor(gomock.NewController(t))
	health, err := service.NewHealthService(service.HealthServiceOptions{
		Extractor: ext,
		Registry:  reg,
		Limits:    service.HealthLimits{WorkDir: reg.Root(), MaxFilesize: 25_000_000, Concurrency: 2},
	})
	require.NoError(t, err)

	rec := &statsd.Recorder{}
	return &apiFixture{
		handler: NewRouter(RouterServices{Jobs: jobs, Health: health, SubmitLimiter: limiter, Metrics: rec}),
		reg:     reg,
		ext:     ext,
		metrics: rec,
	}
}

func (f *apiFixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) submit(t *testing.T, mode string) SubmitResponse {
	t.Helper()
	body := `{"url":"https://www.youtube.com/watch?v=abc","mode":"` + mode + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := f.do(t, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var got SubmitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	return got
}

func (f *apiFixture) complete(t *testing.T, id, name, content string) {
	t.Helper()
	ctx := context.Background()
	job, err := f.reg.Get(ctx, id)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(job.WorkDir, name), []byte(content), 0o600))
	_, err = f.reg.Transition(ctx, id, model.Transition{To: model.JobStateProcessing})
	require.NoError(t, err)
	_, err = f.reg.Transition(ctx, id, model.Transition{
		To: model.JobStateCompleted, ResultFilename: name, ResultSize: int64(len(content)),
	})
	require.NoError(t, err)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestSubmit_JSON(t *testing.T) {
	f := newAPIFixture(t, nil)
	got := f.submit(t, "audio")

	assert.NotEmpty(t, got.JobID)
	assert.Equal(t, model.JobStateQueued, got.State)
	assert.Equal(t, "/api/jobs/"+got.JobID, got.StatusURL)

	job, err := f.reg.Get(context.Background(), got.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.ModeAudio, job.Mode)
}

func TestSubmit_Form(t *testing.T) {
	f := newAPIFixture(t, nil)
	form := url.Values{"url": {"https://youtu.be/abc"}, "quality": {"480p"}}
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := f.do(t, req)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/api/jobs/"))
}

func TestSubmit_Errors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		category    model.ErrorCategory
	}{
		{name: "missing url", contentType: "application/json", body: `{"mode":"video"}`, category: model.CategoryMissingParameter},
		{name: "empty body", contentType: "application/json", body: ``, category: model.CategoryMissingParameter},
		{name: "bad json", contentType: "application/json", body: `{bad`, category: model.CategoryMissingParameter},
		{name: "bad mode", contentType: "application/json", body: `{"url":"https://youtu.be/x","mode":"gif"}`, category: model.CategoryInvalidMode},
		{name: "foreign url", contentType: "application/x-www-form-urlencoded", body: "url=https%3A%2F%2Fexample.com%2Fv", category: model.CategoryInvalidURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			w := f.do(t, req)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.category, decodeError(t, w).Error)
			assert.Empty(t, f.reg.Snapshot(context.Background()))
		})
	}
}

func TestSubmit_Throttled(t *testing.T) {
	f := newAPIFixture(t, rate.NewLimiter(0, 1))
	f.submit(t, "video")

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"url":"https://youtu.be/x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := f.do(t, req)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, model.CategoryTooManyRequests, decodeError(t, w).Error)
}

func TestStatus(t *testing.T) {
	f := newAPIFixture(t, nil)
	sub := f.submit(t, "video")

	w := f.do(t, httptest.NewRequest(http.MethodGet, sub.StatusURL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var st model.JobStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.Equal(t, model.JobStateQueued, st.State)
	assert.Empty(t, st.DownloadLink)

	w = f.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs/does-not-exist", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, model.CategoryUnknownJob, decodeError(t, w).Error)
}

func TestFetch_ServesOnceThenForgets(t *testing.T) {
	f := newAPIFixture(t, nil)
	sub := f.submit(t, "audio")

	w := f.do(t, httptest.NewRequest(http.MethodGet, sub.StatusURL+"/file", nil))
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, model.CategoryJobNotCompleted, decodeError(t, w).Error)

	f.complete(t, sub.JobID, "song.m4a", "audio-bytes")

	w = f.do(t, httptest.NewRequest(http.MethodGet, sub.StatusURL, nil))
	var st model.JobStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	require.Equal(t, model.JobStateCompleted, st.State)
	assert.Equal(t, sub.StatusURL+"/file", st.DownloadLink)

	job, err := f.reg.Get(context.Background(), sub.JobID)
	require.NoError(t, err)

	w = f.do(t, httptest.NewRequest(http.MethodGet, st.DownloadLink, nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(body))
	assert.Equal(t, `attachment; filename=song.m4a`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NoDirExists(t, job.WorkDir)

	w = f.do(t, httptest.NewRequest(http.MethodGet, st.DownloadLink, nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, model.CategoryUnknownJob, decodeError(t, w).Error)
}

func TestFetch_HeadKeepsJob(t *testing.T) {
	f := newAPIFixture(t, nil)
	sub := f.submit(t, "audio")
	f.complete(t, sub.JobID, "song.m4a", "audio-bytes")
	link := sub.StatusURL + "/file"

	w := f.do(t, httptest.NewRequest(http.MethodHead, link, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "11", w.Header().Get("Content-Length"))
	assert.Equal(t, `attachment; filename=song.m4a`, w.Header().Get("Content-Disposition"))

	w = f.do(t, httptest.NewRequest(http.MethodGet, link, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio-bytes", w.Body.String())
}

func TestFetch_RangeServesWholeFile(t *testing.T) {
	f := newAPIFixture(t, nil)
	sub := f.submit(t, "audio")
	f.complete(t, sub.JobID, "song.m4a", "audio-bytes")
	link := sub.StatusURL + "/file"

	req := httptest.NewRequest(http.MethodGet, link, nil)
	req.Header.Set("Range", "bytes=0-1")
	w := f.do(t, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio-bytes", w.Body.String())
	assert.Equal(t, "none", w.Header().Get("Accept-Ranges"))
	assert.Empty(t, w.Header().Get("Content-Range"))

	w = f.do(t, httptest.NewRequest(http.MethodGet, link, nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, model.CategoryUnknownJob, decodeError(t, w).Error)
}

// brokenWriter fails every body write, like a client that hung up.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (b brokenWriter) Write([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func TestFetch_InterruptedStreamKeepsJob(t *testing.T) {
	f := newAPIFixture(t, nil)
	sub := f.submit(t, "audio")
	f.complete(t, sub.JobID, "song.m4a", "audio-bytes")
	link := sub.StatusURL + "/file"

	f.handler.ServeHTTP(brokenWriter{httptest.NewRecorder()}, httptest.NewRequest(http.MethodGet, link, nil))

	w := f.do(t, httptest.NewRequest(http.MethodGet, link, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio-bytes", w.Body.String())
}

func TestDelete(t *testing.T) {
	f := newAPIFixture(t, nil)
	sub := f.submit(t, "video")

	w := f.do(t, httptest.NewRequest(http.MethodDelete, sub.StatusURL, nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, httptest.NewRequest(http.MethodDelete, sub.StatusURL, nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestList(t *testing.T) {
	f := newAPIFixture(t, nil)
	a := f.submit(t, "video")
	b := f.submit(t, "audio")
	f.complete(t, b.JobID, "b.m4a", "bytes")

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got ListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Len(t, got.Jobs, 2)
	assert.Equal(t, model.JobStats{Queued: 1, Completed: 1, Total: 2}, got.Stats)

	ids := []string{got.Jobs[0].ID, got.Jobs[1].ID}
	assert.ElementsMatch(t, []string{a.JobID, b.JobID}, ids)
}

func TestHealthEndpoints(t *testing.T) {
	f := newAPIFixture(t, nil)

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, healthResponse, w.Body.String())

	w = f.do(t, httptest.NewRequest(http.MethodHead, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	f.ext.EXPECT().Probe(gomock.Any()).Return(model.ExtractorProbe{Binary: "yt-dlp", Available: true, Version: "2025.01.01"})
	w = f.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var rep model.HealthReport
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rep))
	assert.Equal(t, model.HealthOK, rep.Status)
	assert.Equal(t, 2, rep.Concurrency)

	f.ext.EXPECT().Probe(gomock.Any()).Return(model.ExtractorProbe{Binary: "yt-dlp", Error: "not found"})
	w = f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	f := newAPIFixture(t, nil)
	w := f.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	var routes []string
	for _, s := range f.metrics.Named("http.request") {
		routes = append(routes, s.Tags["route"])
	}
	assert.Equal(t, []string{"/"}, routes)
}

func TestRequestMetricsUsePattern(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil))

	reqs := f.metrics.Named("http.request")
	require.Len(t, reqs, 1)
	assert.Equal(t, "GET /api/jobs/{id}", reqs[0].Tags["route"])
	assert.Equal(t, "404", reqs[0].Tags["status"])
}
