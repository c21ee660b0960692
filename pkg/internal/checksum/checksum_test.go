package checksum

import (
	"errors"
	"strings"
	"testing"

	"github.com/yeisme/ingestvault/pkg/internal/model"
)

func TestSHA256HexKnownVector(t *testing.T) {
	got, err := SHA256Hex(strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("SHA256Hex: %v", err)
	}

	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Fatalf("digest = %s, want %s", got, want)
	}
}

func TestSHA256HexDeterministic(t *testing.T) {
	const body = "the same bytes every time"

	first, err := SHA256Hex(strings.NewReader(body))
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}

	second, err := SHA256Hex(strings.NewReader(body))
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}

	if first != second {
		t.Fatalf("digests differ: %s vs %s", first, second)
	}
}

func TestSHA256HexEmpty(t *testing.T) {
	got, err := SHA256Hex(strings.NewReader(""))
	if err != nil {
		t.Fatalf("SHA256Hex: %v", err)
	}

	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got != want {
		t.Fatalf("digest = %s, want %s", got, want)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestSHA256HexReadFailure(t *testing.T) {
	_, err := SHA256Hex(failingReader{})
	if err == nil {
		t.Fatal("expected error from failing reader")
	}

	if !errors.Is(err, model.ErrChecksum) {
		t.Fatalf("error %v not classified as checksum failure", err)
	}
}
