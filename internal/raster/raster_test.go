package raster

import (
	"testing"

	"github.com/gogpu/easel/internal/blend"
	"github.com/google/uuid"
)

func TestNewBufferValidation(t *testing.T) {
	if _, err := NewBuffer(0, 10); err != ErrInvalidDimensions {
		t.Errorf("zero width: got %v, want ErrInvalidDimensions", err)
	}
	if _, err := NewBuffer(10, -1); err != ErrInvalidDimensions {
		t.Errorf("negative height: got %v, want ErrInvalidDimensions", err)
	}
	b, err := NewBuffer(4, 3)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	if b.Width() != 4 || b.Height() != 3 || b.Stride() != 16 {
		t.Errorf("got %dx%d stride %d", b.Width(), b.Height(), b.Stride())
	}
}

func TestBufferPixelRoundTrip(t *testing.T) {
	b, _ := NewBuffer(8, 8)
	b.SetPixel(3, 5, 10, 20, 30, 40)
	r, g, bl, a := b.Pixel(3, 5)
	if r != 10 || g != 20 || bl != 30 || a != 40 {
		t.Errorf("got (%d,%d,%d,%d)", r, g, bl, a)
	}
	// Out of bounds is silent and transparent.
	b.SetPixel(-1, 0, 1, 1, 1, 1)
	if r, _, _, _ := b.Pixel(8, 0); r != 0 {
		t.Error("out-of-bounds read should be transparent")
	}
}

func TestBufferRGBASharesMemory(t *testing.T) {
	b, _ := NewBuffer(4, 4)
	img := b.RGBA()
	img.Pix[0] = 99
	if r, _, _, _ := b.Pixel(0, 0); r != 99 {
		t.Error("RGBA view does not share pixel memory")
	}
}

func TestBufferCopyFrom(t *testing.T) {
	a, _ := NewBuffer(4, 4)
	b, _ := NewBuffer(4, 4)
	a.SetPixel(1, 1, 5, 6, 7, 8)
	if err := b.CopyFrom(a); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if r, _, _, _ := b.Pixel(1, 1); r != 5 {
		t.Error("copy did not transfer pixels")
	}
	c, _ := NewBuffer(3, 4)
	if err := c.CopyFrom(a); err != ErrSizeMismatch {
		t.Errorf("size mismatch: got %v", err)
	}
}

func TestMaskMaxWins(t *testing.T) {
	m, _ := NewMask(4, 4)
	m.Accumulate(1, 1, 100)
	m.Accumulate(1, 1, 60) // lower coverage must not reduce the stored value
	if got := m.At(1, 1); got != 100 {
		t.Errorf("coverage = %d, want 100", got)
	}
	m.Accumulate(1, 1, 200)
	if got := m.At(1, 1); got != 200 {
		t.Errorf("coverage = %d, want 200", got)
	}
}

// TestApplyMaskNoDoubleDarken is the within-stroke overlap rule: applying
// a mask built from two overlapping stamps darkens a pixel exactly as much
// as the stronger stamp alone.
func TestApplyMaskNoDoubleDarken(t *testing.T) {
	single, _ := NewMask(2, 2)
	single.Accumulate(0, 0, 128)

	overlapped, _ := NewMask(2, 2)
	overlapped.Accumulate(0, 0, 128)
	overlapped.Accumulate(0, 0, 128) // second stamp on the same pixel

	b1, _ := NewBuffer(2, 2)
	b2, _ := NewBuffer(2, 2)
	if err := ApplyMask(b1, single, 0, 0, 0, 255, OpSourceOver); err != nil {
		t.Fatal(err)
	}
	if err := ApplyMask(b2, overlapped, 0, 0, 0, 255, OpSourceOver); err != nil {
		t.Fatal(err)
	}
	_, _, _, a1 := b1.Pixel(0, 0)
	_, _, _, a2 := b2.Pixel(0, 0)
	if a1 != a2 {
		t.Errorf("overlap double-darkened: %d vs %d", a1, a2)
	}
}

func TestApplyMaskDestinationOut(t *testing.T) {
	b, _ := NewBuffer(2, 2)
	b.Fill(255, 0, 0, 255)

	m, _ := NewMask(2, 2)
	m.Accumulate(0, 0, 255)
	// Color channels are ignored for erase.
	if err := ApplyMask(b, m, 9, 9, 9, 9, OpDestinationOut); err != nil {
		t.Fatal(err)
	}
	if _, _, _, a := b.Pixel(0, 0); a != 0 {
		t.Errorf("erased pixel alpha = %d, want 0", a)
	}
	if _, _, _, a := b.Pixel(1, 1); a != 255 {
		t.Errorf("uncovered pixel alpha = %d, want 255", a)
	}
}

func TestCompositeOpacity(t *testing.T) {
	dst, _ := NewBuffer(1, 1)
	src, _ := NewBuffer(1, 1)
	src.SetPixel(0, 0, 200, 200, 200, 200)

	if err := Composite(dst, src, blend.ModeNormal, 0.5); err != nil {
		t.Fatal(err)
	}
	_, _, _, a := dst.Pixel(0, 0)
	if a < 99 || a > 101 {
		t.Errorf("half-opacity composite alpha = %d, want ~100", a)
	}
}

func TestCompositeSizeMismatch(t *testing.T) {
	dst, _ := NewBuffer(2, 2)
	src, _ := NewBuffer(3, 2)
	if err := Composite(dst, src, blend.ModeNormal, 1); err != ErrSizeMismatch {
		t.Errorf("got %v, want ErrSizeMismatch", err)
	}
}

func TestStoreEnsureIdempotent(t *testing.T) {
	s := NewStore(4, 4, nil)
	id := uuid.New()
	b1, err := s.Ensure(id)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := s.Ensure(id)
	if err != nil {
		t.Fatal(err)
	}
	if b1 != b2 {
		t.Error("Ensure allocated a second buffer for the same id")
	}
}

func TestStoreSingleWriter(t *testing.T) {
	s := NewStore(4, 4, nil)
	id := uuid.New()

	_, release, err := s.AcquireWriter(id)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.AcquireWriter(id); err != ErrBufferBusy {
		t.Errorf("second writer: got %v, want ErrBufferBusy", err)
	}
	release()
	if _, release2, err := s.AcquireWriter(id); err != nil {
		t.Errorf("after release: %v", err)
	} else {
		release2()
	}
}

func TestStoreRetain(t *testing.T) {
	s := NewStore(4, 4, nil)
	keepID, dropID := uuid.New(), uuid.New()
	if _, err := s.Ensure(keepID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Ensure(dropID); err != nil {
		t.Fatal(err)
	}

	pruned := s.Retain(map[uuid.UUID]bool{keepID: true})
	if len(pruned) != 1 || pruned[0] != dropID {
		t.Errorf("pruned = %v, want [%v]", pruned, dropID)
	}
	if _, err := s.Buffer(dropID); err != ErrUnknownBuffer {
		t.Errorf("dropped buffer still present: %v", err)
	}
	if _, err := s.Buffer(keepID); err != nil {
		t.Errorf("kept buffer missing: %v", err)
	}
}

func TestResampleHalvesResolution(t *testing.T) {
	src, _ := NewBuffer(8, 8)
	src.Fill(100, 100, 100, 255)
	dst, _ := NewBuffer(4, 4)
	Resample(dst, src)

	r, _, _, a := dst.Pixel(2, 2)
	if r != 100 || a != 255 {
		t.Errorf("halved flat fill changed: r=%d a=%d", r, a)
	}

	// Same size degenerates to a copy.
	same, _ := NewBuffer(8, 8)
	Resample(same, src)
	if r, _, _, _ := same.Pixel(1, 1); r != 100 {
		t.Error("same-size resample did not copy")
	}
}

func TestResampleRoundTripBlursDetail(t *testing.T) {
	src, _ := NewBuffer(8, 8)
	src.SetPixel(3, 3, 255, 255, 255, 255)

	half, _ := NewBuffer(4, 4)
	Resample(half, src)
	Resample(src, half)

	if _, _, _, a := src.Pixel(3, 3); a == 255 {
		t.Error("single pixel survived a half-resolution round trip intact")
	}
}

func TestPoolReuse(t *testing.T) {
	p := NewPool(2)
	b := p.Get(4, 4)
	b.SetPixel(0, 0, 1, 2, 3, 4)
	p.Put(b)

	got := p.Get(4, 4)
	if got != b {
		t.Error("pool did not reuse the buffer")
	}
	if _, _, _, a := got.Pixel(0, 0); a != 0 {
		t.Error("reused buffer was not cleared")
	}
}
