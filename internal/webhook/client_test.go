package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(attempts int) *Client {
	return NewClient(Config{
		SigningSecret:  "test-secret",
		Timeout:        2 * time.Second,
		MaxAttempts:    attempts,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	})
}

func TestNotifySignsBody(t *testing.T) {
	var (
		gotSig, gotTS, gotEvt string
		gotBody               []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		gotTS = r.Header.Get(HeaderTimestamp)
		gotEvt = r.Header.Get(HeaderEvent)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := testClient(1).Notify(context.Background(), srv.URL, Event{
		Type:   EventJobSucceeded,
		JobID:  "job-1",
		Status: "succeeded",
		Outputs: []Output{
			{Name: "thumb", Target: "thumbs/cat.jpg", MimeType: "image/jpeg", Width: 60, Height: 40},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, EventJobSucceeded, gotEvt)
	assert.Equal(t, Sign("test-secret", gotTS, gotBody), gotSig)
	assert.Contains(t, string(gotBody), `"target":"thumbs/cat.jpg"`)
}

func TestNotifyRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, testClient(3).Notify(context.Background(), srv.URL, Event{Type: EventJobFailed}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNotifyGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testClient(2).Notify(context.Background(), srv.URL, Event{Type: EventJobFailed})
	assert.ErrorIs(t, err, ErrDelivery)
}

func TestNotifyEmptyEndpoint(t *testing.T) {
	assert.NoError(t, testClient(1).Notify(context.Background(), " ", Event{}))
}
