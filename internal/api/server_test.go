package api

import (
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/dunamismax/pixelmod/internal/domain"
	"github.com/dunamismax/pixelmod/internal/queue"
	"github.com/dunamismax/pixelmod/internal/store"
)

type fakeQueue struct {
	payloads []queue.ModifyImagePayload
	err      error
}

func (f *fakeQueue) EnqueueModifyImage(_ context.Context, payload queue.ModifyImagePayload) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, payload)
	return &asynq.TaskInfo{ID: payload.JobID, Queue: "images"}, nil
}

type fakeObjects map[string]bool

func (f fakeObjects) ObjectExists(_ context.Context, key string) (bool, error) {
	return f[key], nil
}

func writeSource(t *testing.T, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, w, h))))
	return path
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateJobEnqueuesLocalSource(t *testing.T) {
	src := writeSource(t, 100, 50)
	q := &fakeQueue{}
	jobs := store.NewMemoryJobStore()
	srv := NewServer(zaptest.NewLogger(t), q, jobs, nil, nil)

	rec := do(t, srv.Handler(), http.MethodPost, "/v1/jobs",
		`{"source_type":"local_file","source":"`+src+`","operations":["crop 1","greyscale"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp jobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.JobStatusQueued, resp.Status)
	assert.Equal(t, "images", resp.Queue)

	require.Len(t, q.payloads, 1)
	assert.Equal(t, resp.JobID, q.payloads[0].JobID)
	assert.Equal(t, []string{"crop 1", "greyscale"}, q.payloads[0].Request.Operations)

	job, ok, err := jobs.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusQueued, job.Status)

	rec = do(t, srv.Handler(), http.MethodGet, "/v1/jobs/"+resp.JobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"queued"`)
}

func TestCreateJobRejections(t *testing.T) {
	src := writeSource(t, 100, 50)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{"source_type":`, http.StatusBadRequest},
		{"unknown field", `{"source_type":"local_file","source":"a.png","extra":1}`, http.StatusBadRequest},
		{"invalid request", `{"source_type":"ftp","source":"a.png"}`, http.StatusBadRequest},
		{"missing file", `{"source_type":"local_file","source":"/nonexistent/a.png"}`, http.StatusUnprocessableEntity},
		{"bad command", `{"source_type":"local_file","source":"` + src + `","operations":["resize 1 2 3"]}`, http.StatusUnprocessableEntity},
		{"crop larger than image", `{"source_type":"local_file","source":"` + src + `","operations":["crop 200 200"]}`, http.StatusUnprocessableEntity},
		{"bad variant mime", `{"source_type":"local_file","source":"` + src + `","variants":[{"name":"a","destination":"a.webp","mime_type":"webp"}]}`, http.StatusUnprocessableEntity},
		{"destination with variants", `{"source_type":"local_file","source":"` + src + `","destination":"x.png","variants":[{"name":"a","destination":"a.png"}]}`, http.StatusBadRequest},
		{"missing object", `{"source_type":"object","source":"uploads/gone.png"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQueue{}
			srv := NewServer(zaptest.NewLogger(t), q, store.NewMemoryJobStore(), fakeObjects{}, nil)
			rec := do(t, srv.Handler(), http.MethodPost, "/v1/jobs", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Empty(t, q.payloads)
		})
	}
}

func TestCreateJobObjectSource(t *testing.T) {
	q := &fakeQueue{}
	srv := NewServer(zaptest.NewLogger(t), q, store.NewMemoryJobStore(), fakeObjects{"uploads/cat.png": true}, nil)

	rec := do(t, srv.Handler(), http.MethodPost, "/v1/jobs", `{"source_type":"object","source":"uploads/cat.png"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Len(t, q.payloads, 1)
}

func TestCreateJobEnqueueFailure(t *testing.T) {
	src := writeSource(t, 10, 10)
	q := &fakeQueue{err: errors.New("redis down")}
	srv := NewServer(zaptest.NewLogger(t), q, store.NewMemoryJobStore(), nil, nil)

	rec := do(t, srv.Handler(), http.MethodPost, "/v1/jobs", `{"source_type":"local_file","source":"`+src+`"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetJobNotFound(t *testing.T) {
	srv := NewServer(zaptest.NewLogger(t), &fakeQueue{}, store.NewMemoryJobStore(), nil, nil)
	rec := do(t, srv.Handler(), http.MethodGet, "/v1/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerTracesRequests(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))

	srv := NewServer(zaptest.NewLogger(t), &fakeQueue{}, store.NewMemoryJobStore(), nil, tp.Tracer("test"))
	do(t, srv.Handler(), http.MethodGet, "/v1/jobs/abc", "")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /v1/jobs/{id}", spans[0].Name())
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/v1/jobs/{id}", routeLabel("/v1/jobs/abc"))
	assert.Equal(t, "/v1/jobs", routeLabel("/v1/jobs"))
	assert.Equal(t, "/healthz", routeLabel("/healthz"))
	assert.Equal(t, "other", routeLabel("/admin"))
}
