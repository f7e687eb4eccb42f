package progress

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const dataPrefix = "data:"

// MalformedFrameError is returned for a frame whose payload cannot be turned
// into an Event. Raw holds the payload exactly as received.
type MalformedFrameError struct {
	Raw string
	Err error
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed progress frame: %v (raw=%q)", e.Err, e.Raw)
}

func (e *MalformedFrameError) Unwrap() error { return e.Err }

// Marshal encodes evt as a JSON object with its "type" discriminator.
func Marshal(evt Event) ([]byte, error) {
	switch e := evt.(type) {
	case Started:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			Started
		}{e.Type(), e})
	case CategoryProgress:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			CategoryProgress
		}{e.Type(), e})
	case CategoryDone:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			CategoryDone
		}{e.Type(), e})
	case CategoryFailed:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			CategoryFailed
		}{e.Type(), e})
	case JobDone:
		if e.Outcomes == nil {
			e.Outcomes = []Outcome{}
		}
		return json.Marshal(struct {
			Type EventType `json:"type"`
			JobDone
		}{e.Type(), e})
	case JobFailed:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			JobFailed
		}{e.Type(), e})
	default:
		return nil, fmt.Errorf("progress: unsupported event %T", evt)
	}
}

// Unmarshal decodes one JSON payload. Any failure is a *MalformedFrameError.
func Unmarshal(payload []byte) (Event, error) {
	malformed := func(err error) error {
		return &MalformedFrameError{Raw: string(payload), Err: err}
	}

	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return nil, malformed(err)
	}

	var (
		evt Event
		err error
	)
	switch head.Type {
	case TypeStarted:
		evt, err = decodeAs[Started](payload)
	case TypeCategoryProgress:
		evt, err = decodeAs[CategoryProgress](payload)
	case TypeCategoryDone:
		evt, err = decodeAs[CategoryDone](payload)
	case TypeCategoryFailed:
		evt, err = decodeAs[CategoryFailed](payload)
	case TypeJobDone:
		evt, err = decodeAs[JobDone](payload)
	case TypeJobFailed:
		evt, err = decodeAs[JobFailed](payload)
	case "":
		return nil, malformed(errors.New("missing type"))
	default:
		return nil, malformed(fmt.Errorf("unknown type %q", head.Type))
	}
	if err != nil {
		return nil, malformed(err)
	}
	return evt, nil
}

func decodeAs[T Event](payload []byte) (Event, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteFrame writes evt as a single "data: <json>\n\n" frame.
func WriteFrame(w io.Writer, evt Event) error {
	payload, err := Marshal(evt)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.Grow(len(payload) + len(dataPrefix) + 3)
	buf.WriteString(dataPrefix)
	buf.WriteByte(' ')
	buf.Write(payload)
	buf.WriteString("\n\n")
	_, err = w.Write(buf.Bytes())
	return err
}

// Decoder reads frames from an event stream.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next event. It returns io.EOF when the stream ends
// cleanly between frames and io.ErrUnexpectedEOF when it ends mid-frame.
// Comment-only frames (":" prefix) are skipped and fields other than data
// are ignored, but a frame with content and no data line is malformed.
func (d *Decoder) Next() (Event, error) {
	var (
		data    []string
		raw     []string
		content bool
	)
	for {
		line, err := d.r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) && len(raw) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			switch {
			case len(data) > 0:
				return Unmarshal([]byte(strings.Join(data, "\n")))
			case content:
				return nil, &MalformedFrameError{
					Raw: strings.Join(raw, "\n"),
					Err: errors.New("frame has no data line"),
				}
			}
			raw = raw[:0]
			continue
		}
		raw = append(raw, line)
		if !strings.HasPrefix(line, ":") {
			content = true
		}
		if value, ok := strings.CutPrefix(line, dataPrefix); ok {
			data = append(data, strings.TrimPrefix(value, " "))
		}
		if err != nil {
			// Final line had no newline terminator.
			return nil, io.ErrUnexpectedEOF
		}
	}
}
