package checksum

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// echo -n "hello" | sha256sum
const helloSum = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestCalculateSHA256(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "hello",
			input: "hello",
			want:  helloSum,
		},
		{
			name:  "empty string",
			input: "",
			want:  "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateSHA256(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("CalculateSHA256() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CalculateSHA256(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	t.Run("read error is propagated", func(t *testing.T) {
		if _, err := CalculateSHA256(errReader{}); err == nil {
			t.Error("CalculateSHA256() expected error from failing reader, got nil")
		}
	})
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := File(path)
	if err != nil {
		t.Fatalf("File() error: %v", err)
	}
	if got != helloSum {
		t.Errorf("File() = %q, want %q", got, helloSum)
	}

	if _, err := File(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("File() expected error for missing file, got nil")
	}
}

func TestVerifySHA256(t *testing.T) {
	ok, err := VerifySHA256(strings.NewReader("hello"), helloSum)
	if err != nil {
		t.Fatalf("VerifySHA256() error: %v", err)
	}
	if !ok {
		t.Error("VerifySHA256() = false, want true for matching checksum")
	}

	ok, err = VerifySHA256(strings.NewReader("hello"), strings.Repeat("0", 64))
	if err != nil {
		t.Fatalf("VerifySHA256() error: %v", err)
	}
	if ok {
		t.Error("VerifySHA256() = true, want false for mismatched checksum")
	}
}

// errReader is an io.Reader that always returns an error.
type errReader struct{}

func (errReader) Read(_ []byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}
