package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// maxLineBytes bounds a single event-stream line.
const maxLineBytes = 1 << 20

// ErrLineTooLong is returned when the provider sends a line longer than maxLineBytes.
var ErrLineTooLong = errors.New("llm: event stream line too long")

// errStreamDone stops reading once the [DONE] sentinel was seen.
var errStreamDone = errors.New("llm: stream done")

type parserState int

const (
	stateLine parserState = iota // collecting the bytes of a line
	stateCR                      // saw '\r', a following '\n' belongs to it
	stateDone                    // saw [DONE], input is ignored
)

// streamChunk is one data payload of a streamed chat completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiErrorBody `json:"error,omitempty"`
}

// Parser is an incremental decoder for the provider's server-sent events.
// Input may be split anywhere, including inside a line or between '\r' and
// '\n'. Only "data:" lines are interpreted. Payloads that are not valid JSON
// are skipped and counted.
type Parser struct {
	state   parserState
	line    []byte
	skipped int
	emit    func(string) error
}

// NewParser returns a parser that calls emit with every non-empty delta, in
// stream order. An error from emit aborts parsing and is returned by Feed.
func NewParser(emit func(string) error) *Parser {
	return &Parser{emit: emit}
}

// Done reports whether the [DONE] sentinel was seen.
func (p *Parser) Done() bool {
	return p.state == stateDone
}

// Skipped returns the number of malformed data lines ignored so far.
func (p *Parser) Skipped() int {
	return p.skipped
}

// Feed consumes the next piece of the stream.
func (p *Parser) Feed(data []byte) error {
	for _, b := range data {
		switch p.state {
		case stateDone:
			return nil

		case stateCR:
			p.state = stateLine
			if b == '\n' {
				continue
			}
			fallthrough

		case stateLine:
			switch b {
			case '\n':
				if err := p.endLine(); err != nil {
					return err
				}
			case '\r':
				if err := p.endLine(); err != nil {
					return err
				}
				if p.state == stateLine {
					p.state = stateCR
				}
			default:
				if len(p.line) >= maxLineBytes {
					return ErrLineTooLong
				}
				p.line = append(p.line, b)
			}
		}
	}
	return nil
}

// Close handles a final line that was not newline-terminated.
func (p *Parser) Close() error {
	if p.state == stateDone || len(p.line) == 0 {
		return nil
	}
	return p.endLine()
}

func (p *Parser) endLine() error {
	line := bytes.TrimSpace(p.line)
	p.line = p.line[:0]

	err := p.dispatch(line)
	if errors.Is(err, errStreamDone) {
		p.state = stateDone
		return nil
	}
	return err
}

func (p *Parser) dispatch(line []byte) error {
	if len(line) == 0 || line[0] == ':' {
		return nil
	}

	value, ok := bytes.CutPrefix(line, []byte("data:"))
	if !ok {
		// event:, id: and retry: carry nothing we use.
		return nil
	}
	value = bytes.TrimPrefix(value, []byte(" "))

	if string(value) == "[DONE]" {
		return errStreamDone
	}

	var chunk streamChunk
	if err := json.Unmarshal(value, &chunk); err != nil {
		p.skipped++
		return nil
	}
	if chunk.Error != nil {
		return fmt.Errorf("llm: stream error: %s", chunk.Error.Message)
	}
	if len(chunk.Choices) == 0 {
		return nil
	}
	if content := chunk.Choices[0].Delta.Content; content != "" {
		return p.emit(content)
	}
	return nil
}
