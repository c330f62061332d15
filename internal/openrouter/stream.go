package openrouter

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"hopper/internal/models"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// DecodeStream consumes a newline-delimited `data: <json>` event stream and
// invokes onDelta once per non-empty content delta, in arrival order. Lines
// without the data prefix are ignored; `data: [DONE]` ends the logical
// stream ahead of the physical EOF. A malformed JSON line is skipped, never
// fatal.
//
// The returned usage is taken from the last chunk that carried one, or the
// zero value if none did. Exactly one read pass is made; no retries.
//
// Cancellation: ctx is observed between reads. When it fires, the returned
// error satisfies errors.Is(err, context.Canceled) so callers can tell
// "stopped" from "broke".
func DecodeStream(ctx context.Context, r io.Reader, onDelta func(string)) (models.Usage, error) {
	var usage models.Usage

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return usage, err
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		data := line[len(dataPrefix):]
		if data == doneSentinel {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.Debug().Err(err).Str("line", data).Msg("skipping malformed stream event")
			continue
		}

		if chunk.Usage != nil {
			usage = chunk.Usage.toModel()
		}
		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				onDelta(delta)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		// Aborting the request closes the body mid-read; report that as
		// cancellation, not as a broken stream.
		if ctx.Err() != nil {
			return usage, ctx.Err()
		}
		return usage, errors.Wrap(err, "reading response stream")
	}
	if err := ctx.Err(); err != nil {
		return usage, err
	}

	return usage, nil
}
