package hook

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// scriptHook writes a shell script hook into a temp dir.
func scriptHook(t *testing.T, name, script string) *Hook {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell hooks are not supported on Windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, name+".sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	return &Hook{
		Manifest:   Manifest{Name: name, Executable: name + ".sh"},
		Path:       dir,
		Executable: path,
	}
}

func modeEvent() *Event {
	return &Event{
		Type:      EventModeChanged,
		Previous:  "none",
		Mode:      "face_tracking",
		Timestamp: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestExecutor_Execute(t *testing.T) {
	h := scriptHook(t, "ok", `echo '{"success":true,"data":{"message":"noted"}}'`)

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), h, modeEvent())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !resp.Success {
		t.Error("Success = false, want true")
	}

	var data map[string]string
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal data: %v", err)
	}
	if data["message"] != "noted" {
		t.Errorf("message = %q, want %q", data["message"], "noted")
	}
}

func TestExecutor_Execute_ReadsEvent(t *testing.T) {
	h := scriptHook(t, "echo", `INPUT=$(cat)
echo "{\"success\":true,\"data\":$INPUT}"
`)

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), h, modeEvent())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var got Event
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatalf("failed to unmarshal echoed event: %v", err)
	}
	if got.Type != EventModeChanged || got.Previous != "none" || got.Mode != "face_tracking" {
		t.Errorf("hook received %+v", got)
	}
	if got.Stream != nil {
		t.Errorf("mode event carried stream info: %+v", got.Stream)
	}
}

func TestExecutor_Execute_WorkingDir(t *testing.T) {
	h := scriptHook(t, "pwd", `echo "{\"success\":true,\"data\":\"$(pwd -P)\"}"`)

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), h, modeEvent())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var dir string
	if err := json.Unmarshal(resp.Data, &dir); err != nil {
		t.Fatalf("failed to unmarshal data: %v", err)
	}
	want, err := filepath.EvalSymlinks(h.Path)
	if err != nil {
		t.Fatal(err)
	}
	if dir != want {
		t.Errorf("hook ran in %q, want %q", dir, want)
	}
}

func TestExecutor_Execute_EmptyOutput(t *testing.T) {
	h := scriptHook(t, "quiet", "cat > /dev/null\n")

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), h, modeEvent())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !resp.Success {
		t.Error("silent hook should count as success")
	}
}

func TestExecutor_Execute_Errors(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantErr string
	}{
		{"invalid json", "echo 'not json'\n", "failed to parse hook response"},
		{"non-zero exit", "echo 'boom' >&2\nexit 3\n", "stderr: boom"},
		{"silent failure", "exit 1\n", "hook silent-failure failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := scriptHook(t, strings.ReplaceAll(tt.name, " ", "-"), tt.script)

			_, err := NewExecutor(5*time.Second).Execute(context.Background(), h, modeEvent())
			if err == nil {
				t.Fatal("Execute() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestExecutor_Execute_FailureResponse(t *testing.T) {
	h := scriptHook(t, "refuse", `echo '{"success":false,"error":"not today"}'`)

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), h, modeEvent())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success || resp.Error != "not today" {
		t.Errorf("response = %+v", resp)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	h := scriptHook(t, "slow", "sleep 10\n")

	start := time.Now()
	_, err := NewExecutor(100*time.Millisecond).Execute(context.Background(), h, modeEvent())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Execute() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Execute() took %v, timeout was not enforced", elapsed)
	}
}

func TestNewExecutor(t *testing.T) {
	tests := []struct {
		timeout time.Duration
		want    time.Duration
	}{
		{2 * time.Second, 2 * time.Second},
		{0, DefaultTimeout},
		{-time.Second, DefaultTimeout},
	}

	for _, tt := range tests {
		if got := NewExecutor(tt.timeout).Timeout(); got != tt.want {
			t.Errorf("NewExecutor(%v).Timeout() = %v, want %v", tt.timeout, got, tt.want)
		}
	}
}
