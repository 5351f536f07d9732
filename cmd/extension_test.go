package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestRunExtension(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("extensions are shell scripts in this test")
	}
	dir := t.TempDir()
	script := `#!/bin/sh
echo "` + EnvBookFile + `=$` + EnvBookFile + `"
echo "` + EnvVerbose + `=$` + EnvVerbose + `"
echo "args=$*"
exit 3
`
	if err := os.WriteFile(filepath.Join(dir, "tbk-hello"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir)

	var stdout, stderr bytes.Buffer
	found, code := runExtension("hello", []string{"a", "b"}, nil, &stdout, &stderr)
	if !found {
		t.Fatalf("runExtension(hello) not found, stderr: %s", stderr.String())
	}
	if code != 3 {
		t.Errorf("runExtension(hello) code = %d, want 3", code)
	}
	for _, want := range []string{
		EnvBookFile + "=" + *bookFile,
		EnvVerbose + "=false",
		"args=a b",
	} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("runExtension(hello) output = %q, want it to contain %q", stdout.String(), want)
		}
	}
}

func TestRunExtension_NotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	if found, code := runExtension("nope", nil, nil, nil, nil); found || code != 0 {
		t.Errorf("runExtension(nope) = %v, %d, want false, 0", found, code)
	}
}
