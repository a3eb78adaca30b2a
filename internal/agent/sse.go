package agent

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// sseChoice is one choice inside a streamed chunk. The agent server speaks
// an OpenAI-flavored chat envelope over SSE.
type sseChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type sseChunk struct {
	Choices []sseChoice `json:"choices"`

	// AwaitingConfirmation is the structured pause signal. Older servers
	// omit it, in which case the client falls back to sniffing the text.
	AwaitingConfirmation bool `json:"awaiting_confirmation"`
}

// sseResult is the accumulated content of one SSE stream.
type sseResult struct {
	Content              string
	AwaitingConfirmation bool
}

// parseSSE accumulates the content chunks of a Server-Sent Events stream.
// Malformed data lines are skipped rather than failing the stream; the
// terminal chunk (finish_reason "[DONE]") carries no content.
func parseSSE(r io.Reader) (sseResult, error) {
	var result sseResult
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var parts []string
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var chunk sseChunk
		if err := json.Unmarshal([]byte(line[len("data: "):]), &chunk); err != nil {
			continue
		}

		if chunk.AwaitingConfirmation {
			result.AwaitingConfirmation = true
		}
		for _, choice := range chunk.Choices {
			if choice.FinishReason == "[DONE]" {
				continue
			}
			if choice.Message.Content != "" {
				parts = append(parts, choice.Message.Content)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return result, err
	}

	result.Content = strings.Join(parts, "")
	return result, nil
}

// looksLikeConfirmationPrompt is the keyword fallback for servers that do
// not emit the structured awaiting_confirmation signal.
func looksLikeConfirmationPrompt(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "approve") && strings.Contains(lower, "return")
}
