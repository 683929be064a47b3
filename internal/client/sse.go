package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/harsh7800/adofly/internal/orchestrator"
)

// Update is one frame read from an event stream. Err is set instead of
// Event when the frame could not be decoded.
type Update struct {
	Event orchestrator.Event
	Err   error
}

// ReadEvents reads Server-Sent Events from body and delivers them on the
// returned channel. The channel is closed when the body is exhausted, a read
// error occurs, or ctx is canceled. The body is closed when reading finishes.
//
// Lines starting with ":" are comments. Consecutive "data:" lines are joined
// with newlines and an empty line ends the event. A malformed payload yields
// an Update with Err set and reading continues.
func ReadEvents(ctx context.Context, body io.ReadCloser) <-chan Update {
	ch := make(chan Update)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		var data strings.Builder

		flush := func() bool {
			if data.Len() == 0 {
				return true
			}
			raw := data.String()
			data.Reset()
			return send(ctx, ch, raw)
		}

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if !scanner.Scan() {
				flush()
				return
			}
			line := scanner.Text()

			switch {
			case line == "":
				if !flush() {
					return
				}
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "data:"):
				payload := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(payload)
			}
		}
	}()
	return ch
}

func send(ctx context.Context, ch chan<- Update, raw string) bool {
	var u Update
	if err := json.Unmarshal([]byte(raw), &u.Event); err != nil {
		u = Update{Err: fmt.Errorf("client: decode event: %w", err)}
	}
	select {
	case ch <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
