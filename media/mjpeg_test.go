package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestScanJPEG(t *testing.T) {
	a := []byte{0xff, 0xd8, 1, 2, 0xff, 0xd9}
	b := []byte{0xff, 0xd8, 3, 0xff, 0xd9}

	tests := []struct {
		name   string
		stream []byte
		want   [][]byte
	}{
		{"back to back", concat(a, b), [][]byte{a, b}},
		{"multipart boundaries", concat([]byte("--frame\r\n\r\n"), a, []byte("\r\n--frame\r\n"), b), [][]byte{a, b}},
		{"trailing partial frame", concat(a, []byte{0xff, 0xd8, 9, 9}), [][]byte{a}},
		{"no frames", []byte("hello"), nil},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A one-byte reader exercises every partial-buffer path.
			sc := bufio.NewScanner(&oneByteReader{data: tt.stream})
			sc.Split(ScanJPEG)
			var got [][]byte
			for sc.Scan() {
				got = append(got, append([]byte(nil), sc.Bytes()...))
			}
			if err := sc.Err(); err != nil {
				t.Fatalf("scan error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("tokens = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if !bytes.Equal(got[i], tt.want[i]) {
					t.Errorf("token %d = %x, want %x", i, got[i], tt.want[i])
				}
			}
		})
	}
}

type oneByteReader struct {
	data []byte
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func mjpegStream(t *testing.T, n int) []byte {
	t.Helper()
	var stream []byte
	for range n {
		stream = append(stream, encodeJPEG(t, testImage(8, 4))...)
	}
	return stream
}

func TestMJPEGPlayerPlay(t *testing.T) {
	stream := concat(mjpegStream(t, 2), []byte{0xff, 0xd8, 0, 0, 0xff, 0xd9}, mjpegStream(t, 1))

	out := NewLatest()
	err := MJPEGPlayer{FPS: 200}.Play(t.Context(), bytes.NewReader(stream), out)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	// The corrupt middle frame is skipped.
	if st := out.Stats(); st.Published != 3 {
		t.Errorf("Published = %d, want 3", st.Published)
	}
	if w, h := out.Size(); w != 8 || h != 4 {
		t.Errorf("Size() = %dx%d, want 8x4", w, h)
	}
}

func TestMJPEGPlayerLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	out := NewLatest()
	done := make(chan error, 1)
	go func() {
		done <- MJPEGPlayer{FPS: 500, Loop: true}.Play(ctx, bytes.NewReader(mjpegStream(t, 2)), out)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for out.Stats().Published < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("looping stream published only %d frames", out.Stats().Published)
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Play = %v, want context.Canceled", err)
	}
}

func TestMJPEGPlayerNoLoopWithoutSeeker(t *testing.T) {
	out := NewLatest()
	r := io.MultiReader(bytes.NewReader(mjpegStream(t, 2)))
	if err := (MJPEGPlayer{FPS: 500, Loop: true}).Play(t.Context(), r, out); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if st := out.Stats(); st.Published != 2 {
		t.Errorf("Published = %d, want 2", st.Published)
	}
}
