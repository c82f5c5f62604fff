package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/sitedata-sweeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sitedata-sweeper/1.0", r.Header.Get("User-Agent"))
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("example.com never\n"))
	}))
	defer srv.Close()

	f := New(models.HTTPConfig{Timeout: time.Second, Retries: 3})
	f.backoff = time.Millisecond

	data, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "example.com never\n", string(data))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(models.HTTPConfig{Retries: 2})
	f.backoff = time.Millisecond

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 retries")
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestFetchRejectsOversizedList(t *testing.T) {
	body := strings.Repeat("tracker.example.net instantly\n", 8) + "bank.example.com never\n"

	tests := []struct {
		name    string
		chunked bool
	}{
		{"content length declared", false},
		{"streamed without length", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				if tt.chunked {
					w.(http.Flusher).Flush()
				}
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			f := New(models.HTTPConfig{Retries: 3})
			f.backoff = time.Millisecond
			f.maxSize = int64(len(body) - 1)

			data, err := f.Fetch(context.Background(), srv.URL)
			require.ErrorIs(t, err, ErrListTooLarge)
			assert.Nil(t, data)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestFetchAcceptsListAtLimit(t *testing.T) {
	body := "bank.example.com never\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := New(models.HTTPConfig{})
	f.maxSize = int64(len(body))

	data, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}
