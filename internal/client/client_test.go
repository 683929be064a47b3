package client_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harsh7800/adofly/internal/client"
	"github.com/harsh7800/adofly/internal/config"
	"github.com/harsh7800/adofly/internal/creative"
	"github.com/harsh7800/adofly/internal/logging"
	"github.com/harsh7800/adofly/internal/model"
	"github.com/harsh7800/adofly/internal/orchestrator"
	"github.com/harsh7800/adofly/internal/progress"
	"github.com/harsh7800/adofly/internal/runs"
	"github.com/harsh7800/adofly/internal/server"
	"github.com/harsh7800/adofly/internal/stage"
	"github.com/harsh7800/adofly/internal/store"
)

func testRequest() creative.AdRequest {
	return creative.AdRequest{
		ProductName:        "Trail Shoes",
		ProductDescription: "Lightweight trail running shoes.",
		ProductCategory:    "Sports",
		USPs:               []string{"grippy sole", "280g"},
		CampaignObjective:  "Shop Now",
		ImageOption:        creative.ImageGenerate,
	}
}

func newAPI(t *testing.T, m model.Model) *httptest.Server {
	t.Helper()
	reg := runs.NewRegistry(runs.WithLogger(logging.Discard()))
	p := orchestrator.NewPipeline(m, orchestrator.WithLogger(logging.Discard()))
	auth := server.NewAuth(config.AuthConfig{Tokens: map[string]string{"tok": "alice"}})
	s := server.New(p.Execute, reg, store.NewMemStore(), auth, server.WithLogger(logging.Discard()))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		reg.CancelAll()
		reg.Wait()
	})
	return ts
}

func waitState(t *testing.T, tr *client.Tracker) client.State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := tr.Wait(ctx)
	require.NoError(t, err)
	return s
}

// ---------------------------------------------------------------------------
// End to end
// ---------------------------------------------------------------------------

func TestGenerate_Success(t *testing.T) {
	ts := newAPI(t, model.Stub{})
	c := client.New(ts.URL, client.WithToken("tok"))

	s := waitState(t, c.Generate(context.Background(), testRequest()))
	require.NoError(t, s.Err)
	assert.False(t, s.Loading)
	assert.NotEmpty(t, s.RunID)
	require.NotNil(t, s.Creative)
	assert.Equal(t, "Shop Now", s.Creative.CTA)
	assert.Equal(t, []string{"grippy sole", "280g"}, s.Creative.USPs)
	for _, step := range s.Steps {
		assert.Equal(t, progress.StatusCompleted, step.Status, step.ID)
	}
}

func TestGenerate_ScenarioC_BudgetTimeout(t *testing.T) {
	m := model.Func(func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "suggestedDailyBudget") {
			return "", context.DeadlineExceeded
		}
		return model.Stub{}.Complete(ctx, prompt)
	})
	ts := newAPI(t, m)
	c := client.New(ts.URL, client.WithToken("tok"))

	s := waitState(t, c.Generate(context.Background(), testRequest()))
	assert.False(t, s.Loading)
	assert.Nil(t, s.Creative)

	var f *stage.Failure
	require.True(t, errors.As(s.Err, &f))
	assert.Equal(t, stage.Budget, f.Stage)
	assert.Equal(t, []progress.Status{
		progress.StatusCompleted,
		progress.StatusCompleted,
		progress.StatusError,
		progress.StatusPending,
	}, statuses(s.Steps))
}

func statuses(steps []progress.Step) []progress.Status {
	out := make([]progress.Status, len(steps))
	for i, s := range steps {
		out[i] = s.Status
	}
	return out
}

func TestGenerate_InvalidRequest(t *testing.T) {
	ts := newAPI(t, model.Stub{})
	c := client.New(ts.URL, client.WithToken("tok"))

	req := testRequest()
	req.USPs = nil
	s := waitState(t, c.Generate(context.Background(), req))

	var apiErr *client.APIError
	require.True(t, errors.As(s.Err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Violations, "usps: required")
	assert.False(t, s.Loading)
}

func TestSubmit_Unauthorized(t *testing.T) {
	ts := newAPI(t, model.Stub{})
	c := client.New(ts.URL)

	_, err := c.Submit(context.Background(), testRequest())
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestTrackAndSnapshot(t *testing.T) {
	ts := newAPI(t, model.Stub{})
	c := client.New(ts.URL, client.WithToken("tok"))
	ctx := context.Background()

	id, err := c.Submit(ctx, testRequest())
	require.NoError(t, err)

	s := waitState(t, c.Track(ctx, id))
	require.NoError(t, s.Err)
	assert.Equal(t, id, s.RunID)

	snap, err := c.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.True(t, snap.Done)
	assert.Equal(t, s.Steps, snap.Steps)

	// A second subscription replays the same projection.
	again := waitState(t, c.Track(ctx, id))
	assert.Equal(t, s.Steps, again.Steps)
	assert.Equal(t, s.Creative, again.Creative)
}

func TestStream_UnknownRun(t *testing.T) {
	ts := newAPI(t, model.Stub{})
	c := client.New(ts.URL, client.WithToken("tok"))

	_, err := c.Stream(context.Background(), "missing")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

// ---------------------------------------------------------------------------
// Dropped streams
// ---------------------------------------------------------------------------

func TestTracker_StreamDropKeepsActiveStep(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"phase\":\"generating-copy\"}\n\n")
		fmt.Fprint(w, "data: {\"adCopy\":{\"title\":\"t\",\"shortCopy\":\"s\",\"longCopy\":\"l\",\"callToActions\":[\"Go\"]}}\n\n")
		fmt.Fprint(w, "data: {\"phase\":\"generating-audience\"}\n\n")
	}))
	t.Cleanup(ts.Close)

	c := client.New(ts.URL)
	s := waitState(t, c.Track(context.Background(), "run-1"))

	assert.ErrorIs(t, s.Err, client.ErrStreamClosed)
	assert.False(t, s.Loading)
	assert.Nil(t, s.Creative)
	assert.Equal(t, progress.StatusCompleted, s.Steps[0].Status)
	assert.Equal(t, progress.StatusActive, s.Steps[1].Status)
}

func TestTracker_ChangesCloseWhenDone(t *testing.T) {
	ts := newAPI(t, model.Stub{})
	c := client.New(ts.URL, client.WithToken("tok"))

	tr := c.Generate(context.Background(), testRequest())
	var last client.State
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case s, ok := <-tr.Changes():
			if !ok {
				done = true
				break
			}
			last = s
		case <-timeout:
			t.Fatal("changes channel did not close")
		}
	}
	assert.False(t, last.Loading)
	assert.NotNil(t, last.Creative)
}

// ---------------------------------------------------------------------------
// SSE reader
// ---------------------------------------------------------------------------

func readAll(t *testing.T, ch <-chan client.Update) []client.Update {
	t.Helper()
	var out []client.Update
	for u := range ch {
		out = append(out, u)
	}
	return out
}

func TestReadEvents(t *testing.T) {
	raw := ": keep-alive\n\n" +
		"data: {\"phase\":\"generating-copy\"}\n\n" +
		"event: ignored\n" +
		"data:{\"phase\":\"finalizing\"}\n\n" +
		"data: not json\n\n" +
		"data: {\"phase\":\n" +
		"data: \"complete\"}"

	updates := readAll(t, client.ReadEvents(context.Background(), io.NopCloser(strings.NewReader(raw))))
	require.Len(t, updates, 4)
	assert.Equal(t, "generating-copy", updates[0].Event.Phase)
	assert.Equal(t, "finalizing", updates[1].Event.Phase)
	assert.Error(t, updates[2].Err)
	require.NoError(t, updates[3].Err)
	assert.Equal(t, "complete", updates[3].Event.Phase)
}

func TestReadEvents_StopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	ch := client.ReadEvents(ctx, pr)

	go func() {
		fmt.Fprint(pw, "data: {\"phase\":\"generating-copy\"}\n\n")
	}()
	u := <-ch
	assert.Equal(t, "generating-copy", u.Event.Phase)

	cancel()
	// Unblock the scanner so the reader notices cancellation.
	go func() {
		fmt.Fprint(pw, "data: {\"phase\":\"finalizing\"}\n\n")
		pw.Close()
	}()

	select {
	case _, ok := <-ch:
		if ok {
			// At most the in-flight frame may still arrive.
			_, ok = <-ch
		}
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not stop")
	}
}

func TestAPIError_Message(t *testing.T) {
	err := &client.APIError{Status: 400, Message: "invalid ad request", Violations: []string{"usps: required"}}
	assert.Equal(t, "client: HTTP 400: invalid ad request (usps: required)", err.Error())
}
