package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamService(t *testing.T, handler http.HandlerFunc, timeoutSeconds int) Service {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewService(&Config{
		Model:   "test-model",
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
		Timeout: timeoutSeconds,
	})
	require.NoError(t, err)
	return svc
}

func TestChatStreamDeliversTokens(t *testing.T) {
	svc := newStreamService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, token := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", token)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}, 30)

	contentCh, errCh := svc.ChatStream(context.Background(), []Message{UserMessage("hi")})

	var got string
	for token := range contentCh {
		got += token
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, "Hello", got)
}

func TestChatStreamTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	svc := newStreamService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		// Hold the stream open past the configured deadline.
		<-release
	}, 1)

	contentCh, errCh := svc.ChatStream(context.Background(), []Message{UserMessage("hi")})

	for range contentCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	var genErr *GenerationError
	assert.ErrorAs(t, err, &genErr)
}

func TestChatTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	svc := newStreamService(t, func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	}, 1)

	_, err := svc.Chat(context.Background(), []Message{UserMessage("hi")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestChatStreamConsumerCancellationIsSilent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newStreamService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}, 30)

	contentCh, errCh := svc.ChatStream(ctx, []Message{UserMessage("hi")})

	for range contentCh {
	}
	// Caller-initiated cancellation is not reported as a failure.
	err := <-errCh
	if err != nil {
		assert.NotErrorIs(t, err, ErrTimeout)
	}
}
