package evidence

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callbrief-cli/pkg/anthropic"
)

// stubClient returns a canned response or error.
type stubClient struct {
	text    string
	err     error
	lastReq anthropic.MessageRequest
}

func (s *stubClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &anthropic.MessageResponse{
		Text:  s.text,
		Usage: anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

func TestExtractParsesFencedJSON(t *testing.T) {
	stub := &stubClient{text: "```json\n" + `{
		"quotes": [{"text": "We saved two hundred thousand dollars last quarter.", "speaker": "Jane", "timestamp_ms": 12000, "topic": "savings", "confidence": 0.95}],
		"claims": [{"claim": "Saved $200k last quarter", "value": "$200k", "quote": "We saved two hundred thousand dollars last quarter.", "confidence": 0.9}]
	}` + "\n```"}

	e := NewExtractor(stub, "claude-haiku-4-5-20251001")
	quotes, claims, usage, err := e.Extract(context.Background(), testCall())
	require.NoError(t, err)

	require.Len(t, quotes, 1)
	assert.Equal(t, "Jane", quotes[0].Speaker)
	assert.Equal(t, "call-1", quotes[0].SourceCallID)
	require.NotNil(t, quotes[0].SourceTimestampMs)
	assert.Equal(t, int64(12000), *quotes[0].SourceTimestampMs)

	require.Len(t, claims, 1)
	assert.Equal(t, "$200k", claims[0].Value)
	assert.Equal(t, "Acme QBR", claims[0].SourceCallTitle)

	assert.Equal(t, int64(100), usage.InputTokens)
}

func TestExtractPromptUsesSpeakerPrefixedSegments(t *testing.T) {
	stub := &stubClient{text: `{"quotes": [], "claims": []}`}
	e := NewExtractor(stub, "claude-haiku-4-5-20251001")

	_, _, _, err := e.Extract(context.Background(), testCall())
	require.NoError(t, err)
	assert.Contains(t, stub.lastReq.Messages[0].Content, "Jane: We saved two hundred thousand dollars last quarter.")
}

func TestExtractConfidenceClamped(t *testing.T) {
	stub := &stubClient{text: `{"quotes": [{"text": "clamped quote text here", "confidence": 1.7}], "claims": []}`}
	e := NewExtractor(stub, "claude-haiku-4-5-20251001")

	quotes, _, _, err := e.Extract(context.Background(), testCall())
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, 1.0, quotes[0].Confidence)
}

func TestExtractPropagatesClientError(t *testing.T) {
	stub := &stubClient{err: eris.New("rate limited")}
	e := NewExtractor(stub, "claude-haiku-4-5-20251001")

	_, _, _, err := e.Extract(context.Background(), testCall())
	require.Error(t, err)
}

func TestExtractMalformedJSON(t *testing.T) {
	stub := &stubClient{text: "I could not produce JSON, sorry."}
	e := NewExtractor(stub, "claude-haiku-4-5-20251001")

	_, _, _, err := e.Extract(context.Background(), testCall())
	require.Error(t, err)
}
