// Package relay turns the upstream event stream into live client writes and
// one accumulated answer. It owns nothing durable: the caller hands it a
// response body and a sink, and gets back the final buffer and status.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"inkwell.app/assistant/common/logger"
	"inkwell.app/assistant/internal/model"
)

const (
	eventPrefix    = "data: "
	terminalMarker = "[DONE]"

	defaultMaxParseFailures = 3
	defaultReadBufferSize   = 4096
)

// Sink receives everything the client sees, in order. The terminal marker is
// always the last write for a turn; the engine only ever writes fragments,
// the caller owns the error frame and the marker so the answer can be
// committed before the stream is sealed.
type Sink interface {
	// Data writes one content fragment as a client event.
	Data(payload string) error
	// Done writes the terminal marker.
	Done() error
	// Error writes an error frame.
	Error(code int, message string) error
}

// Result is the outcome of one relayed stream. Err is set when the caller
// must report a failure to the client; the answer and status are valid
// either way and must be committed.
type Result struct {
	Answer []byte
	Status model.RoundStatus
	Err    error
}

// chunk is the JSON delta object carried by non-terminal events.
type chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type Engine struct {
	maxParseFailures int
	readBufferSize   int
}

func NewEngine() *Engine {
	return &Engine{
		maxParseFailures: defaultMaxParseFailures,
		readBufferSize:   defaultReadBufferSize,
	}
}

// Run consumes the upstream body until the terminal marker, cancellation, or
// failure, relaying each fragment to the sink as it is parsed. Cancellation
// is observed between reads, so an abort can take up to one chunk-read
// latency to land. Run never commits anything; the caller persists Result.
func (e *Engine) Run(ctx context.Context, body io.Reader, sink Sink) Result {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "assistant.relay.engine"})

	var answer bytes.Buffer

	if body == nil {
		return Result{Status: model.RoundStatusFailed, Err: ErrNoResponseBody}
	}

	var (
		pending       []byte
		parseFailures int
		sawBytes      bool
	)
	buf := make([]byte, e.readBufferSize)

	for {
		// Cooperative abort check before each read.
		select {
		case <-ctx.Done():
			return stopped(ctx, &answer)
		default:
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			sawBytes = true
			pending = append(pending, buf[:n]...)

			lines, rest := splitLines(pending)
			pending = rest

			for _, line := range lines {
				payload, ok := strings.CutPrefix(line, eventPrefix)
				if !ok {
					continue // blank separators and unknown fields
				}

				if payload == terminalMarker {
					// Single success exit. Anything after the first
					// marker is ignored.
					return completed(&answer)
				}

				frag, err := extractContent(payload)
				if err != nil {
					parseFailures++
					slog.WarnContext(ctx, "malformed event payload",
						"error", err,
						"failures", parseFailures,
						"payload", logger.Truncate(payload, 200))
					if parseFailures >= e.maxParseFailures {
						return Result{
							Answer: answer.Bytes(),
							Status: model.RoundStatusFailed,
							Err:    &ParseError{Failures: parseFailures, LastErr: err},
						}
					}
					continue
				}

				if frag == "" {
					continue
				}
				answer.WriteString(frag)

				// The wire protocol is newline-delimited, so fragments
				// are flattened before they are written out.
				if err := sink.Data(strings.ReplaceAll(frag, "\n", "")); err != nil {
					return e.interrupted(ctx, &answer, "writing to the client failed", err)
				}
			}
		}

		if readErr != nil {
			if ctx.Err() != nil {
				// The abort signal surfaced through the read.
				return stopped(ctx, &answer)
			}
			if readErr == io.EOF {
				if !sawBytes {
					return Result{Status: model.RoundStatusFailed, Err: ErrNoResponseBody}
				}
				// Stream ended without a terminal marker; what arrived
				// stands as the answer.
				return completed(&answer)
			}
			return e.interrupted(ctx, &answer, "the upstream connection was interrupted", readErr)
		}
	}
}

// completed is the success exit: terminal marker seen, or a clean EOF.
func completed(answer *bytes.Buffer) Result {
	return Result{Answer: answer.Bytes(), Status: model.RoundStatusCompleted}
}

// stopped is the graceful cancellation exit: the partial answer is kept,
// never discarded.
func stopped(ctx context.Context, answer *bytes.Buffer) Result {
	slog.InfoContext(ctx, "relay cancelled, keeping partial answer", "answer_bytes", answer.Len())
	return Result{Answer: answer.Bytes(), Status: model.RoundStatusStopped}
}

// interrupted handles mid-stream failures: the partial answer is committed
// with a rendered error block appended, the error itself is surfaced to the
// caller for the client-facing frame.
func (e *Engine) interrupted(ctx context.Context, answer *bytes.Buffer, reason string, cause error) Result {
	slog.ErrorContext(ctx, "relay interrupted", "reason", reason, "error", cause, "answer_bytes", answer.Len())
	answer.WriteString(renderErrorBlock(reason))
	return Result{
		Answer: answer.Bytes(),
		Status: model.RoundStatusCompleted,
		Err:    cause,
	}
}

func renderErrorBlock(reason string) string {
	return "\n\n> **Error**: " + reason + ". The answer above may be incomplete.\n"
}

// splitLines cuts the buffer into complete lines, returning the trailing
// partial line for the next chunk. Lines may span chunk boundaries.
func splitLines(data []byte) ([]string, []byte) {
	var lines []string
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return lines, data
		}
		lines = append(lines, strings.TrimRight(string(data[:i]), "\r"))
		data = data[i+1:]
	}
}

// extractContent pulls the content fragment out of a delta payload.
func extractContent(payload string) (string, error) {
	var c chunk
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return "", err
	}
	if len(c.Choices) == 0 {
		return "", nil
	}
	return c.Choices[0].Delta.Content, nil
}
