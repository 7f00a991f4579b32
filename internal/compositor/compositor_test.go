// ABOUTME: Tests for overlay placement, channel validation, overlay fan-out, and software compositing
// ABOUTME: A recording Media fake captures the calls each overlay makes

package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/mauromedda/posoverlay/pkg/raster"
)

type recordingMedia struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error
}

func (m *recordingMedia) record(op string, ch int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := fmt.Sprintf("%s %d", op, ch)
	m.calls = append(m.calls, call)
	return m.failOn[call]
}

func (m *recordingMedia) Attach(ch int, _ Position) error     { return m.record("attach", ch) }
func (m *recordingMedia) Update(ch int, _ *raster.Frame) error { return m.record("update", ch) }
func (m *recordingMedia) Detach(ch int) error                  { return m.record("detach", ch) }
func (m *recordingMedia) Pause(ch int) error                   { return m.record("pause", ch) }
func (m *recordingMedia) Resume(ch int) error                  { return m.record("resume", ch) }

func (m *recordingMedia) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func equalCalls(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPlacement(t *testing.T) {
	t.Parallel()

	video := image.Pt(1920, 1080)
	osd := image.Pt(600, 700)
	tests := []struct {
		pos  Position
		want image.Point
	}{
		{TopRight, image.Pt(1224, 0)},
		{TopCenter, image.Pt(660, 0)},
		{TopLeft, image.Pt(0, 0)},
		{Center, image.Pt(660, 190)},
		{MiddleRight, image.Pt(1224, 190)},
		{MiddleLeft, image.Pt(0, 190)},
		{BottomRight, image.Pt(1224, 380)},
		{BottomCenter, image.Pt(660, 380)},
		{BottomLeft, image.Pt(0, 380)},
		{Position(42), image.Pt(1224, 190)},
	}
	for _, tt := range tests {
		if got := Placement(tt.pos, video, osd); got != tt.want {
			t.Errorf("Placement(%v) = %v, want %v", tt.pos, got, tt.want)
		}
	}
}

func TestPlacement_EvenCoordinates(t *testing.T) {
	t.Parallel()

	for pos := TopRight; pos <= BottomLeft; pos++ {
		p := Placement(pos, image.Pt(705, 577), image.Pt(301, 199))
		if p.X%2 != 0 || p.Y%2 != 0 {
			t.Errorf("Placement(%v) = %v, want even coordinates", pos, p)
		}
	}
}

func TestParsePosition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Position
		wantErr bool
	}{
		{in: "top-right", want: TopRight},
		{in: " Bottom-Left ", want: BottomLeft},
		{in: "4", want: MiddleRight},
		{in: "9", wantErr: true},
		{in: "nowhere", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParsePosition(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePosition(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParsePosition(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewContext_Validates(t *testing.T) {
	t.Parallel()

	if _, err := NewContext(0, &recordingMedia{}); err == nil {
		t.Error("expected error for zero channels")
	}
	if _, err := NewContext(4, nil); err == nil {
		t.Error("expected error for nil media")
	}
	c, err := NewContext(4, &recordingMedia{})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	for _, ch := range []int{-1, 4} {
		if err := c.CheckChannel(ch); !errors.Is(err, ErrChannel) {
			t.Errorf("CheckChannel(%d) = %v, want ErrChannel", ch, err)
		}
	}
	if err := c.CheckChannel(3); err != nil {
		t.Errorf("CheckChannel(3) = %v", err)
	}
}

func TestOverlay_PresentFansOut(t *testing.T) {
	t.Parallel()

	m := &recordingMedia{}
	c, _ := NewContext(4, m)
	o, err := c.NewOverlay([]int{0, 2}, TopLeft)
	if err != nil {
		t.Fatalf("NewOverlay: %v", err)
	}
	if err := o.Present(&raster.Frame{}); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if err := o.Pause(2); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if !o.Paused(2) {
		t.Error("channel 2 should be paused")
	}
	_ = o.Present(&raster.Frame{})
	_ = o.Resume(2)
	_ = o.Close()
	_ = o.Present(&raster.Frame{})

	want := []string{
		"attach 0", "attach 2",
		"update 0", "update 2",
		"pause 2",
		"update 0",
		"resume 2",
		"detach 0", "detach 2",
	}
	if got := m.Calls(); !equalCalls(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestOverlay_RejectsBadChannel(t *testing.T) {
	t.Parallel()

	m := &recordingMedia{}
	c, _ := NewContext(2, m)
	if _, err := c.NewOverlay([]int{0, 5}, TopLeft); !errors.Is(err, ErrChannel) {
		t.Fatalf("NewOverlay = %v, want ErrChannel", err)
	}
	if len(m.Calls()) != 0 {
		t.Errorf("calls = %v, want none", m.Calls())
	}

	o, _ := c.NewOverlay([]int{0}, TopLeft)
	if err := o.Pause(1); !errors.Is(err, ErrChannel) {
		t.Errorf("Pause(unbound) = %v, want ErrChannel", err)
	}
}

func TestOverlay_AttachFailureRollsBack(t *testing.T) {
	t.Parallel()

	m := &recordingMedia{failOn: map[string]error{"attach 1": errors.New("busy")}}
	c, _ := NewContext(3, m)
	if _, err := c.NewOverlay([]int{0, 1, 2}, TopLeft); err == nil {
		t.Fatal("expected attach error")
	}
	want := []string{"attach 0", "attach 1", "detach 0"}
	if got := m.Calls(); !equalCalls(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestOverlay_PresentJoinsErrors(t *testing.T) {
	t.Parallel()

	m := &recordingMedia{failOn: map[string]error{
		"update 0": errors.New("a"),
		"update 1": errors.New("b"),
	}}
	c, _ := NewContext(2, m)
	o, _ := c.NewOverlay([]int{0, 1}, TopLeft)
	err := o.Present(&raster.Frame{})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := len(m.Calls()); got != 4 {
		t.Errorf("calls = %d, want both channels updated despite failure", got)
	}
}

func whiteFrame(t *testing.T, w, h int) *raster.Frame {
	t.Helper()
	c, err := raster.NewCanvas(w, h, raster.ARGB8888)
	if err != nil {
		t.Fatalf("NewCanvas: %v", err)
	}
	c.Clear(color.White)
	f, err := c.Publish()
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return f
}

func TestSoftMedia_ComposeMainAndSub(t *testing.T) {
	t.Parallel()

	m := NewSoftMedia()
	if err := m.Attach(0, TopLeft); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if ok, _ := m.Compose(0, image.NewRGBA(image.Rect(0, 0, 10, 10))); ok {
		t.Error("Compose before Update should draw nothing")
	}
	f := whiteFrame(t, 8, 4)
	_ = m.Update(0, f)
	if m.Frame(0) != f {
		t.Error("Frame should return the last update")
	}

	main := image.NewRGBA(image.Rect(0, 0, 40, 20))
	if ok, err := m.Compose(0, main); !ok || err != nil {
		t.Fatalf("Compose(main) = %v, %v", ok, err)
	}
	if got := main.RGBAAt(7, 3); got.A != 255 {
		t.Errorf("main (7,3) = %v, want white", got)
	}
	if got := main.RGBAAt(8, 0); got.A != 0 {
		t.Errorf("main (8,0) = %v, want untouched", got)
	}

	sub := image.NewRGBA(image.Rect(0, 0, 20, 10))
	if ok, _ := m.Compose(0, sub); !ok {
		t.Fatal("Compose(sub) drew nothing")
	}
	if got := sub.RGBAAt(3, 1); got.A != 255 {
		t.Errorf("sub (3,1) = %v, want white", got)
	}
	if got := sub.RGBAAt(4, 0); got.A != 0 {
		t.Errorf("sub (4,0) = %v, want untouched (half-size frame)", got)
	}
}

func TestSoftMedia_SkipsOversizedAndPaused(t *testing.T) {
	t.Parallel()

	m := NewSoftMedia()
	_ = m.Attach(1, Center)
	_ = m.Update(1, whiteFrame(t, 16, 16))

	if ok, _ := m.Compose(1, image.NewRGBA(image.Rect(0, 0, 8, 8))); ok {
		t.Error("overlay larger than video should be skipped")
	}
	_ = m.Pause(1)
	if ok, _ := m.Compose(1, image.NewRGBA(image.Rect(0, 0, 64, 64))); ok {
		t.Error("paused channel should not compose")
	}
	_ = m.Resume(1)
	if ok, _ := m.Compose(1, image.NewRGBA(image.Rect(0, 0, 64, 64))); !ok {
		t.Error("resumed channel should compose")
	}
}

func TestSoftMedia_UnknownChannel(t *testing.T) {
	t.Parallel()

	m := NewSoftMedia()
	if err := m.Update(3, nil); !errors.Is(err, ErrChannel) {
		t.Errorf("Update = %v, want ErrChannel", err)
	}
	_ = m.Attach(3, TopLeft)
	if err := m.Attach(3, TopLeft); err == nil {
		t.Error("double Attach should fail")
	}
	_ = m.Detach(3)
	if _, err := m.Compose(3, image.NewRGBA(image.Rect(0, 0, 1, 1))); !errors.Is(err, ErrChannel) {
		t.Errorf("Compose after Detach = %v, want ErrChannel", err)
	}
}
