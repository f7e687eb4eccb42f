package progress_test

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"cartographer/internal/progress"
	"cartographer/internal/services"
)

func sampleEvents() []progress.Event {
	return []progress.Event{
		progress.Started{JobID: "job-1", Categories: []string{"general", "faq"}},
		progress.CategoryProgress{Category: "general", Index: 0, Total: 2},
		progress.CategoryDone{Category: "general", Index: 0, Total: 2, InputTokens: 2100, OutputTokens: 300},
		progress.CategoryProgress{Category: "faq", Index: 1, Total: 2},
		progress.CategoryFailed{Category: "faq", Index: 1, Total: 2, Reason: "rate limited", Kind: services.KindRateLimit},
		progress.JobDone{
			Outcomes: []progress.Outcome{{Category: "general", PrimaryArtifact: "rules", SecondaryArtifact: "guide", InputTokens: 2100, OutputTokens: 300}},
			Totals:   progress.Totals{InputTokens: 2100, OutputTokens: 300, EstimatedCost: 0.018, Model: "m"},
		},
	}
}

func TestFramesDecodeInOrder(t *testing.T) {
	var buf bytes.Buffer
	events := append(sampleEvents(), progress.JobFailed{Reason: "boom", Kind: services.KindUnclassified})
	for _, evt := range events {
		if err := progress.WriteFrame(&buf, evt); err != nil {
			t.Fatalf("WriteFrame(%T): %v", evt, err)
		}
	}

	dec := progress.NewDecoder(&buf)
	for i, want := range events {
		got, err := dec.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("frame %d = %#v, want %#v", i, got, want)
		}
	}
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after last frame, got %v", err)
	}
}

func TestWriteFrameFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := progress.WriteFrame(&buf, progress.CategoryProgress{Category: "general", Index: 0, Total: 1}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	want := `data: {"type":"category_progress","category":"general","index":0,"total":1}` + "\n\n"
	if buf.String() != want {
		t.Fatalf("frame = %q, want %q", buf.String(), want)
	}
}

func TestJobDoneEncodesEmptyOutcomesAsArray(t *testing.T) {
	payload, err := progress.Marshal(progress.JobDone{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(payload), `"outcomes":[]`) {
		t.Fatalf("expected empty array, got %s", payload)
	}
}

func TestDecoderSkipsCommentsAndOtherFields(t *testing.T) {
	stream := ": keepalive\n\nevent: message\nid: 7\ndata: {\"type\":\"job_failed\",\"reason\":\"x\",\"kind\":\"internal\"}\r\n\r\n"
	evt, err := progress.NewDecoder(strings.NewReader(stream)).Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	failed, ok := evt.(progress.JobFailed)
	if !ok || failed.Reason != "x" || failed.Kind != services.KindInternal {
		t.Fatalf("unexpected event %#v", evt)
	}
}

func TestDecoderMalformedFrameCarriesRawPayload(t *testing.T) {
	cases := map[string]string{
		"bad json":     "{not json",
		"missing type": `{"category":"x"}`,
		"unknown type": `{"type":"teleport"}`,
		"wrong shape":  `{"type":"category_progress","index":"zero"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := progress.NewDecoder(strings.NewReader("data: " + raw + "\n\n")).Next()
			var malformed *progress.MalformedFrameError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedFrameError, got %v", err)
			}
			if malformed.Raw != raw {
				t.Fatalf("raw = %q, want %q", malformed.Raw, raw)
			}
		})
	}
}

func TestDecoderFrameWithoutDataIsMalformed(t *testing.T) {
	stream := "this is not a frame\nevent: message\n\ndata: {\"type\":\"job_failed\",\"reason\":\"x\",\"kind\":\"internal\"}\n\n"
	dec := progress.NewDecoder(strings.NewReader(stream))
	_, err := dec.Next()
	var malformed *progress.MalformedFrameError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedFrameError, got %v", err)
	}
	if malformed.Raw != "this is not a frame\nevent: message" {
		t.Fatalf("raw = %q", malformed.Raw)
	}
	evt, err := dec.Next()
	if err != nil {
		t.Fatalf("next frame: %v", err)
	}
	if _, ok := evt.(progress.JobFailed); !ok {
		t.Fatalf("unexpected event %#v", evt)
	}
}

func TestDecoderTruncatedFrame(t *testing.T) {
	_, err := progress.NewDecoder(strings.NewReader(`data: {"type":"started"`)).Next()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestTerminal(t *testing.T) {
	if !progress.Terminal(progress.JobDone{}) || !progress.Terminal(progress.JobFailed{}) {
		t.Fatal("job events must be terminal")
	}
	if progress.Terminal(progress.CategoryDone{}) {
		t.Fatal("category events must not be terminal")
	}
}
