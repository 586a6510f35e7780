package mosaic

import (
	"errors"
	"image"
	"testing"
)

func TestRegisterBackend(t *testing.T) {
	t.Cleanup(resetBackend)
	resetBackend()

	if err := RegisterBackend(nil); err == nil {
		t.Error("RegisterBackend(nil) should fail")
	}

	first := &fakeBackend{name: "first"}
	if err := RegisterBackend(first); err != nil {
		t.Fatalf("RegisterBackend(first) = %v", err)
	}
	if CurrentBackend() != first {
		t.Fatal("CurrentBackend() is not the registered backend")
	}

	second := &fakeBackend{name: "second"}
	if err := RegisterBackend(second); err != nil {
		t.Fatalf("RegisterBackend(second) = %v", err)
	}
	if first.closed != 1 {
		t.Errorf("replaced backend closed %d times, want 1", first.closed)
	}
	if CurrentBackend() != second {
		t.Error("CurrentBackend() did not switch to the new backend")
	}

	// Registering the same backend again must not close it.
	if err := RegisterBackend(second); err != nil {
		t.Fatalf("re-register = %v", err)
	}
	if second.closed != 0 {
		t.Errorf("re-registered backend closed %d times, want 0", second.closed)
	}
}

func TestRegisterBackendInitError(t *testing.T) {
	t.Cleanup(resetBackend)
	resetBackend()

	kept := &fakeBackend{name: "kept"}
	if err := RegisterBackend(kept); err != nil {
		t.Fatal(err)
	}
	bad := &fakeBackend{initErr: ErrUnsupportedContext}
	if err := RegisterBackend(bad); !errors.Is(err, ErrUnsupportedContext) {
		t.Errorf("RegisterBackend(bad) = %v, want ErrUnsupportedContext", err)
	}
	if CurrentBackend() != kept {
		t.Error("failed registration replaced the current backend")
	}
	if kept.closed != 0 {
		t.Error("failed registration closed the current backend")
	}
}

func TestCloseBackend(t *testing.T) {
	t.Cleanup(resetBackend)
	resetBackend()

	CloseBackend() // no backend: no-op

	fb := &fakeBackend{}
	if err := RegisterBackend(fb); err != nil {
		t.Fatal(err)
	}
	CloseBackend()
	if fb.closed != 1 {
		t.Errorf("closed = %d, want 1", fb.closed)
	}
	if CurrentBackend() != nil {
		t.Error("CurrentBackend() should be nil after CloseBackend")
	}
}

func TestSetBackendDeviceProvider(t *testing.T) {
	t.Cleanup(resetBackend)
	resetBackend()

	if err := SetBackendDeviceProvider("host"); err != nil {
		t.Errorf("no backend: err = %v", err)
	}

	fb := &fakeBackend{}
	if err := RegisterBackend(fb); err != nil {
		t.Fatal(err)
	}
	if err := SetBackendDeviceProvider("host"); err != nil {
		t.Fatalf("SetBackendDeviceProvider = %v", err)
	}
	if fb.provider != "host" {
		t.Errorf("provider = %v, want host", fb.provider)
	}
}

func TestSourceFunc(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	var src Source = SourceFunc(func() image.Image { return img })
	if src.Frame() != img {
		t.Error("SourceFunc.Frame() did not return the function result")
	}
}
