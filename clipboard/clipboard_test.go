package clipboard_test

import (
	"os/exec"
	"runtime"
	"testing"

	"github.com/kvtap/kvtap/clipboard"
)

func TestCopy(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "darwin" && runtime.GOOS != "linux" {
		t.Skipf("clipboard not supported on %s", runtime.GOOS)
	}

	switch runtime.GOOS {
	case "darwin":
		if _, err := exec.LookPath("pbcopy"); err != nil {
			t.Skip("pbcopy not found")
		}
	case "linux":
		if _, err := exec.LookPath("xclip"); err != nil {
			if _, err := exec.LookPath("xsel"); err != nil {
				t.Skip("xclip/xsel not found")
			}
		}
	}

	if err := clipboard.Copy(t.Context(), "hello from test"); err != nil {
		t.Fatalf("Copy returned error: %v", err)
	}
}

func TestLocator(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		bucket, key, path string
		want           string
	}{
		{"key only", "", "user:1", "", "user:1"},
		{"bucket and key", "widgets", "user:1", "", "widgets user:1"},
		{"key and path", "", "user:1", "address.city", "user:1 address.city"},
		{"bucket key and path", "widgets", "user:1", "address.city", "widgets user:1 address.city"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := clipboard.Locator(tc.bucket, tc.key, tc.path); got != tc.want {
				t.Fatalf("Locator(%q, %q, %q) = %q, want %q", tc.bucket, tc.key, tc.path, got, tc.want)
			}
		})
	}
}
