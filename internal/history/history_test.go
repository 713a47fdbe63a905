package history

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/userrelay/common/middleware"
	"github.com/telhawk-systems/userrelay/internal/metrics"
	"github.com/telhawk-systems/userrelay/internal/models"
	"github.com/telhawk-systems/userrelay/internal/relay"
)

var _ relay.Observer = (*Recorder)(nil)

// fakeOpenSearch answers the handful of endpoints the recorder uses.
type fakeOpenSearch struct {
	mu          sync.Mutex
	indexExists bool
	created     string
	docs        map[string][]byte
	failIndex   bool
}

func (f *fakeOpenSearch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	path := strings.Trim(r.URL.Path, "/")
	switch {
	case path == "" && (r.Method == http.MethodGet || r.Method == http.MethodHead):
		_, _ = io.WriteString(w, `{"cluster_name":"test","version":{"distribution":"opensearch","number":"2.11.0"}}`)
	case r.Method == http.MethodHead && !strings.Contains(path, "/"):
		if !f.indexExists {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && !strings.Contains(path, "/"):
		body, _ := io.ReadAll(r.Body)
		f.created = string(body)
		f.indexExists = true
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	case strings.HasSuffix(path, "/_search"):
		hits := make([]string, 0, len(f.docs))
		for _, doc := range f.docs {
			hits = append(hits, `{"_source":`+string(doc)+`}`)
		}
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":`+itoa(len(hits))+`},"hits":[`+strings.Join(hits, ",")+`]}}`)
	case strings.Contains(path, "/_doc/"):
		if f.failIndex {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":"boom"}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.docs[path[strings.LastIndex(path, "/")+1:]] = body
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func newTestRecorder(t *testing.T) (*Recorder, *fakeOpenSearch) {
	t.Helper()
	fake := &fakeOpenSearch{docs: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	rec, err := NewRecorder(context.Background(), Config{URL: srv.URL, Index: "runs"}, nil, WithTransport(srv.Client().Transport))
	require.NoError(t, err)
	rec.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return rec, fake
}

func TestNewRecorder_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewRecorder(context.Background(), Config{URL: url}, nil)
	assert.Error(t, err)
}

func TestEnsureIndex(t *testing.T) {
	rec, fake := newTestRecorder(t)

	require.NoError(t, rec.EnsureIndex(context.Background()))
	assert.Contains(t, fake.created, `"@timestamp"`)

	fake.created = ""
	require.NoError(t, rec.EnsureIndex(context.Background()))
	assert.Empty(t, fake.created, "existing index must not be recreated")
}

func TestObserveResult_IndexesAndRecent(t *testing.T) {
	rec, fake := newTestRecorder(t)

	ctx := middleware.WithRequestID(context.Background(), "req-7")
	rec.ObserveResult(ctx, relay.Result{
		Success:   true,
		Operation: relay.OperationExecute,
		Records:   3,
		Bytes:     90,
		Duration:  12 * time.Millisecond,
	})
	rec.Close()

	fake.mu.Lock()
	require.Len(t, fake.docs, 1)
	fake.mu.Unlock()

	list, err := rec.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list.Runs, 1)
	assert.Equal(t, 1, list.Total)

	got := list.Runs[0]
	assert.Equal(t, "req-7", got.RequestID)
	assert.Equal(t, "execute", got.Operation)
	assert.Equal(t, 3, got.Records)
	assert.Equal(t, int64(12), got.DurationMS)
}

func TestObserveResult_IndexFailureIsCounted(t *testing.T) {
	rec, fake := newTestRecorder(t)
	fake.failIndex = true
	before := testutil.ToFloat64(metrics.HistoryIndexFailures)

	rec.ObserveResult(context.Background(), relay.Result{Operation: relay.OperationClear, Kind: relay.KindForward})
	rec.Close()

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.HistoryIndexFailures))
}

func TestIndex_StoresNoPayload(t *testing.T) {
	rec, fake := newTestRecorder(t)

	run := models.RunRecord{ID: "abc", Operation: "execute", Success: true, Records: 1}
	require.NoError(t, rec.Index(context.Background(), run))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	var stored map[string]any
	require.NoError(t, json.Unmarshal(fake.docs["abc"], &stored))
	assert.Equal(t, "execute", stored["operation"])
	assert.NotContains(t, stored, "data")
}
