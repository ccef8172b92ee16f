package metrics

import (
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
)

func TestRecorderCounts(t *testing.T) {
	r := New("", "")
	r.RunStarted()
	r.Attempt("LoginTest", "failed")
	r.Retry("LoginTest")
	r.Attempt("LoginTest", "passed")
	r.Scenario("LoginTest", "passed", 3*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.attempts.WithLabelValues("LoginTest", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.attempts.WithLabelValues("LoginTest", "passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.retries.WithLabelValues("LoginTest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.scenarios.WithLabelValues("LoginTest", "passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.up))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))

	r.RunFinished()
	assert.Equal(t, 0.0, testutil.ToFloat64(r.up))
}

func TestWorkerGauge(t *testing.T) {
	r := New("", "")
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.WorkerBusy(1)
			r.WorkerBusy(-1)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0.0, testutil.ToFloat64(r.workers))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RunStarted()
		r.Attempt("x", "passed")
		r.Retry("x")
		r.Scenario("x", "passed", time.Second)
		r.WorkerBusy(1)
		r.RunFinished()
	})
	assert.NoError(t, r.Push())
	assert.Nil(t, r.Registry())
}

func TestPushWithoutAddressIsNoop(t *testing.T) {
	assert.NoError(t, New("", "run").Push())
}

func TestPushToGateway(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		mu.Lock()
		path, body = req.URL.Path, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New(srv.URL, "run-1")
	r.Attempt("LoginTest", "passed")
	require.NoError(t, r.Push())

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, strings.HasPrefix(path, "/metrics/job/"+JobName), path)
	assert.Contains(t, path, "run_id/run-1")
	assert.NotEmpty(t, body)
}

func TestPushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	assert.Error(t, New(srv.URL, "").Push())
}
