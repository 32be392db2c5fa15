package cmd

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

// captureStdout runs fn and returns everything it printed to stdout.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	r.Close()
	return buf.String()
}

func TestRunHelp(t *testing.T) {
	output := captureStdout(t, runHelp)

	expectedStrings := []string{
		"cdd-docs serve",
		"cdd-docs index",
		"-docs <path>",
		"-reset",
		"GEMINI_API_KEY",
		"DATABASE_URL",
		"CDD_DOCS_*",
		"DEBUG",
	}
	for _, expected := range expectedStrings {
		if !strings.Contains(output, expected) {
			t.Errorf("expected help output to contain %q\nGot: %s", expected, output)
		}
	}
}

func TestRunVersion(t *testing.T) {
	originalAppVersion := AppVersion
	originalBuildTime := BuildTime
	originalGitCommit := GitCommit
	defer func() {
		AppVersion = originalAppVersion
		BuildTime = originalBuildTime
		GitCommit = originalGitCommit
	}()

	tests := []struct {
		name            string
		apiKey          string
		appVersion      string
		buildTime       string
		gitCommit       string
		expectedStrings []string
	}{
		{
			name:       "with API key set",
			apiKey:     "test-key-1234567890",
			appVersion: "1.0.0",
			buildTime:  "2026-01-01T00:00:00Z",
			gitCommit:  "abc123",
			expectedStrings: []string{
				"cdd-docs 1.0.0",
				"Build Time: 2026-01-01T00:00:00Z",
				"Git Commit: abc123",
				"GEMINI_API_KEY: test...7890 (configured)",
			},
		},
		{
			name:       "without API key",
			apiKey:     "",
			appVersion: "development",
			buildTime:  "unknown",
			gitCommit:  "unknown",
			expectedStrings: []string{
				"cdd-docs development",
				"Build Time: unknown",
				"GEMINI_API_KEY: Not set",
				"export GEMINI_API_KEY=your-api-key",
			},
		},
		{
			name:       "short API key is not sliced",
			apiKey:     "tiny",
			appVersion: "2.0.0",
			buildTime:  "unknown",
			gitCommit:  "unknown",
			expectedStrings: []string{
				"cdd-docs 2.0.0",
				"GEMINI_API_KEY: configured",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", tt.apiKey)
			AppVersion = tt.appVersion
			BuildTime = tt.buildTime
			GitCommit = tt.gitCommit

			output := captureStdout(t, runVersion)

			for _, expected := range tt.expectedStrings {
				if !strings.Contains(output, expected) {
					t.Errorf("expected output to contain %q\nGot: %s", expected, output)
				}
			}
		})
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	os.Args = []string{"cdd-docs", "bogus"}
	err := Execute()
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command: bogus") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestExecute_HelpWithoutArgs(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	os.Args = []string{"cdd-docs"}
	output := captureStdout(t, func() {
		if err := Execute(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
	if !strings.Contains(output, "Usage:") {
		t.Errorf("expected usage output, got: %s", output)
	}
}
