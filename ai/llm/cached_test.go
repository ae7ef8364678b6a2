package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService counts Chat calls and replies with a canned answer.
type stubService struct {
	calls  int
	answer string
	err    error
}

func (s *stubService) Chat(_ context.Context, _ []Message) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func (s *stubService) ChatStream(_ context.Context, _ []Message) (<-chan string, <-chan error) {
	contentCh := make(chan string, 1)
	errCh := make(chan error, 1)
	contentCh <- s.answer
	close(contentCh)
	close(errCh)
	return contentCh, errCh
}

func (s *stubService) Model() string { return "stub-model" }

func TestCachedChatHit(t *testing.T) {
	ctx := context.Background()
	stub := &stubService{answer: "forty-two"}
	cached := NewCached(stub, nil, nil)

	messages := []Message{SystemPrompt("be brief"), UserMessage("the answer?")}

	first, err := cached.Chat(ctx, messages)
	require.NoError(t, err)
	assert.Equal(t, "forty-two", first)
	assert.Equal(t, 1, stub.calls)

	second, err := cached.Chat(ctx, messages)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, stub.calls, "identical conversation must be served from cache")
}

func TestCachedChatDistinctConversations(t *testing.T) {
	ctx := context.Background()
	stub := &stubService{answer: "ok"}
	cached := NewCached(stub, nil, nil)

	_, err := cached.Chat(ctx, []Message{UserMessage("one")})
	require.NoError(t, err)
	_, err = cached.Chat(ctx, []Message{UserMessage("two")})
	require.NoError(t, err)

	assert.Equal(t, 2, stub.calls)
}

func TestCachedChatFailureNotCached(t *testing.T) {
	ctx := context.Background()
	stub := &stubService{err: errors.New("backend down")}
	cached := NewCached(stub, nil, nil)

	_, err := cached.Chat(ctx, []Message{UserMessage("hi")})
	require.Error(t, err)

	stub.err = nil
	stub.answer = "recovered"
	answer, err := cached.Chat(ctx, []Message{UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "recovered", answer)
	assert.Equal(t, 2, stub.calls)
}

func TestCachedChatStreamBypassesCache(t *testing.T) {
	ctx := context.Background()
	stub := &stubService{answer: "token"}
	cached := NewCached(stub, nil, nil)

	contentCh, errCh := cached.ChatStream(ctx, []Message{UserMessage("hi")})

	var got string
	for token := range contentCh {
		got += token
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, "token", got)
}
