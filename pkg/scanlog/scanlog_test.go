package scanlog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/haivivi/deepscan/pkg/classify"
	"github.com/haivivi/deepscan/pkg/tensor"
)

// newTestLog creates an in-memory scan log for testing.
func newTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t)

	raw, _ := tensor.New(tensor.Shape{1, 2}, []float32{0.1, 0.9})
	s := &Scan{
		MediaType: MediaAudio,
		Source:    "clip.wav",
		MediaKey:  "input_media/abc.wav",
		Status:    StatusCompleted,
		Verdict:   &classify.Verdict{Label: classify.LabelFake, Probability: 0.9, Raw: raw},
	}
	if err := l.Put(ctx, s); err != nil {
		t.Fatal(err)
	}
	if s.ID == "" || s.CreatedAt.IsZero() {
		t.Fatalf("Put did not fill ID/CreatedAt: %+v", s)
	}

	got, err := l.Get(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != "clip.wav" || got.Status != StatusCompleted || got.MediaType != MediaAudio {
		t.Errorf("got %+v", got)
	}
	if got.Verdict == nil || got.Verdict.Label != classify.LabelFake || got.Verdict.Probability != 0.9 {
		t.Errorf("verdict = %+v", got.Verdict)
	}
	if got.Verdict.Raw == nil || !got.Verdict.Raw.Shape.Equal(tensor.Shape{1, 2}) {
		t.Errorf("raw = %+v", got.Verdict.Raw)
	}
	if !got.CreatedAt.Equal(s.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, s.CreatedAt)
	}
}

func TestGetNotFound(t *testing.T) {
	l := newTestLog(t)
	if _, err := l.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRecentOrder(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		s := &Scan{
			ID:        fmt.Sprintf("s%d", i),
			MediaType: MediaAudio,
			Status:    StatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := l.Put(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	got, err := l.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"s4", "s3", "s2"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, s := range got {
		if s.ID != want[i] {
			t.Errorf("[%d] = %s, want %s", i, s.ID, want[i])
		}
	}

	all, _ := l.Recent(ctx, 100)
	if len(all) != 5 {
		t.Errorf("Recent(100) len = %d, want 5", len(all))
	}
	if none, _ := l.Recent(ctx, 0); len(none) != 0 {
		t.Errorf("Recent(0) = %v", none)
	}
}

func TestPutReplaceMovesIndex(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t)

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.Put(ctx, &Scan{ID: "a", CreatedAt: t0, Status: StatusFailed})
	l.Put(ctx, &Scan{ID: "b", CreatedAt: t0.Add(time.Second)})
	l.Put(ctx, &Scan{ID: "a", CreatedAt: t0.Add(time.Hour), Status: StatusCompleted})

	got, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (stale index entry left behind?)", len(got))
	}
	if got[0].ID != "a" || got[0].Status != StatusCompleted {
		t.Errorf("newest = %+v", got[0])
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatal("expected error without Dir")
	}
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	l, err := Open(Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Put(ctx, &Scan{ID: "persisted", Status: StatusUnsupported, MediaType: MediaVideo}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	l, err = Open(Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	s, err := l.Get(ctx, "persisted")
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != StatusUnsupported || s.MediaType != MediaVideo {
		t.Errorf("got %+v", s)
	}
}

func TestParseMediaType(t *testing.T) {
	for _, s := range []string{"audio", "image", "video"} {
		if _, err := ParseMediaType(s); err != nil {
			t.Errorf("ParseMediaType(%q): %v", s, err)
		}
	}
	if _, err := ParseMediaType("text"); err == nil {
		t.Error("expected error for text")
	}
}
