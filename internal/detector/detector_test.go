package detector

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

func TestMockDetector(t *testing.T) {
	t.Run("returns configured rects", func(t *testing.T) {
		m := NewMockDetector()
		want := []image.Rectangle{image.Rect(10, 10, 50, 50), image.Rect(60, 20, 90, 70)}
		m.SetRects(want)

		got, err := m.Detect(nil)
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("len(rects) = %d, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("rects[%d] = %v, want %v", i, got[i], want[i])
			}
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		m := NewMockDetector()
		wantErr := errors.New("detector busy")
		m.SetError(wantErr)

		if _, err := m.Detect(nil); !errors.Is(err, wantErr) {
			t.Errorf("Detect() error = %v, want %v", err, wantErr)
		}
	})

	t.Run("counts calls", func(t *testing.T) {
		m := NewMockDetector()
		for i := 0; i < 3; i++ {
			m.Detect(nil)
		}
		if got := m.Calls(); got != 3 {
			t.Errorf("Calls() = %d, want 3", got)
		}
	})

	t.Run("result is a copy", func(t *testing.T) {
		m := NewMockDetector()
		m.SetRects([]image.Rectangle{image.Rect(0, 0, 5, 5)})

		got, _ := m.Detect(nil)
		got[0] = image.Rect(1, 1, 2, 2)

		again, _ := m.Detect(nil)
		if again[0] != image.Rect(0, 0, 5, 5) {
			t.Error("mutating a result changed the configured rects")
		}
	})
}

func TestCenterFace(t *testing.T) {
	r := CenterFace(90, 60)
	if r != image.Rect(30, 20, 60, 40) {
		t.Errorf("CenterFace(90, 60) = %v", r)
	}
}

func TestFindCascade(t *testing.T) {
	t.Run("existing path is returned", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "faces.xml")
		if err := os.WriteFile(path, []byte("<opencv_storage/>"), 0644); err != nil {
			t.Fatalf("failed to write cascade: %v", err)
		}

		if got := FindCascade(path); got != path {
			t.Errorf("FindCascade() = %q, want %q", got, path)
		}
	})

	t.Run("missing path with directory is not searched", func(t *testing.T) {
		if got := FindCascade(filepath.Join(t.TempDir(), "missing.xml")); got != "" {
			t.Errorf("FindCascade() = %q, want empty", got)
		}
	})
}

func TestNewCascadeDetector_Missing(t *testing.T) {
	_, err := NewCascadeDetector(filepath.Join(t.TempDir(), "missing.xml"))
	if err == nil {
		t.Fatal("NewCascadeDetector() should fail for a missing cascade")
	}
}

func TestCascadeDetector_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	d, err := NewCascadeDetector(DefaultCascade)
	if err != nil {
		t.Skipf("skipping test - cascade not available: %v", err)
	}
	defer d.Close()

	t.Run("blank frame has no faces", func(t *testing.T) {
		frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
		defer frame.Close()

		rects, err := d.Detect(&frame)
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if len(rects) != 0 {
			t.Errorf("len(rects) = %d, want 0 on a blank frame", len(rects))
		}
	})

	t.Run("empty frame is rejected", func(t *testing.T) {
		empty := gocv.NewMat()
		defer empty.Close()

		if _, err := d.Detect(&empty); !errors.Is(err, ErrEmptyFrame) {
			t.Errorf("Detect() error = %v, want ErrEmptyFrame", err)
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		if err := d.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		if err := d.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	})
}
