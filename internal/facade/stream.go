package facade

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
)

// AnswerChunk is one incremental piece of a streamed assistant answer.
type AnswerChunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
	Error   string `json:"error,omitempty"`
}

// StreamAnswer opens a websocket to the answer stream of a conversation and
// delivers chunks until the server marks the answer done, the stream
// breaks, or ctx is cancelled. The channel is closed in all three cases; a
// broken stream is surfaced as a final chunk with Error set and the caller
// decides whether to re-dial.
//
// The bearer token is attached at dial time the same way the HTTP
// interceptor attaches it; there is no refresh-and-retry for an upgrade,
// since replaying one is not meaningful.
func (r *Rag) StreamAnswer(ctx context.Context, conversationID string) (<-chan AnswerChunk, error) {
	target, err := websocketURL(r.api.BaseURL(), "/ws/conversations/"+conversationID+"/answer")
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if r.tokens != nil {
		if tok := r.tokens.AccessToken(); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial answer stream (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial answer stream: %w", err)
	}

	out := make(chan AnswerChunk)

	// Cancellation closes the connection, which unblocks the read loop.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()
		for {
			var chunk AnswerChunk
			if err := conn.ReadJSON(&chunk); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					r.logger.Warn("answer stream broken",
						slog.String("conversation_id", conversationID),
						slog.String("error", err.Error()),
					)
					select {
					case out <- AnswerChunk{Error: err.Error()}:
					case <-ctx.Done():
					}
				}
				return
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
			if chunk.Done {
				return
			}
		}
	}()

	return out, nil
}

// websocketURL rewrites the service base URL scheme for a websocket path.
func websocketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = path
	return u.String(), nil
}
