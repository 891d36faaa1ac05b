package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Locator formats a document key, qualified by its bucket and (if the
// copied event was a sub-document operation) its path, as the single
// string callers paste elsewhere to re-identify the document: "bucket
// user:1", "user:1 address.city", or "bucket user:1 address.city".
// bucket and path are omitted when empty, so a connection that never
// selected a bucket still copies a plain key.
func Locator(bucket, key, path string) string {
	parts := make([]string, 0, 3)
	if bucket != "" {
		parts = append(parts, bucket)
	}
	parts = append(parts, key)
	if path != "" {
		parts = append(parts, path)
	}
	return strings.Join(parts, " ")
}

// CopyLocator formats bucket/key/path with Locator and writes the result
// to the system clipboard.
func CopyLocator(ctx context.Context, bucket, key, path string) error {
	return Copy(ctx, Locator(bucket, key, path))
}

// Copy writes text to the system clipboard.
// It uses pbcopy on macOS, xclip/xsel on Linux, and clip.exe on Windows.
func Copy(ctx context.Context, text string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "pbcopy")
	case "linux":
		if _, err := exec.LookPath("xclip"); err == nil {
			cmd = exec.CommandContext(ctx, "xclip", "-selection", "clipboard")
		} else if _, err := exec.LookPath("xsel"); err == nil {
			cmd = exec.CommandContext(ctx, "xsel", "--clipboard", "--input")
		} else {
			return errors.New("xclip or xsel is required on Linux")
		}
	case "windows":
		cmd = exec.CommandContext(ctx, "clip.exe")
	}

	if cmd == nil {
		return fmt.Errorf("clipboard not supported on %s", runtime.GOOS)
	}

	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("clipboard copy: %w", err)
	}
	return nil
}
