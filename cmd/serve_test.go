package main

import (
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainAndShutdown_CompletesInFlightRequest(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte("done")) //nolint:errcheck
	})
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln) //nolint:errcheck

	var wg sync.WaitGroup
	var status int
	var body []byte
	wg.Add(1)
	go func() {
		defer wg.Done()
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			return
		}
		defer resp.Body.Close()
		status = resp.StatusCode
		body, _ = io.ReadAll(resp.Body)
	}()

	// Let the request reach the handler, then shut down while it is
	// still in flight.
	time.Sleep(20 * time.Millisecond)
	drainAndShutdown(srv)
	wg.Wait()

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "done", string(body))
}
