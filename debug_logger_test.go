package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugLoggerConsole(t *testing.T) {
	var out bytes.Buffer
	dl := NewDebugLogger(false, false, t.TempDir(), &out)
	defer dl.Close()

	dl.debugMsg("VIDEO", "Opened clip.mp4")
	dl.debugMsgVerbose("VIDEO", "hidden")

	got := out.String()
	if !strings.Contains(got, "][VIDEO] Opened clip.mp4") {
		t.Errorf("console output = %q", got)
	}
	if strings.Contains(got, "hidden") {
		t.Error("verbose message printed without verbose mode")
	}
}

func TestDebugLoggerHistoryBounded(t *testing.T) {
	var out bytes.Buffer
	dl := NewDebugLogger(false, true, t.TempDir(), &out)

	total := dl.maxHistory + 25
	for i := 0; i < total; i++ {
		dl.debugMsg("TEST", fmt.Sprintf("message %d", i))
	}

	history := dl.History()
	if len(history) != dl.maxHistory {
		t.Fatalf("history length = %d, want %d", len(history), dl.maxHistory)
	}
	if history[0].Message != "message 25" {
		t.Errorf("oldest kept = %q, want message 25", history[0].Message)
	}
}

func TestDebugLoggerSessionFile(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	dl := NewDebugLogger(true, false, dir, &out)

	dl.debugMsg("ANNOTATION", "Marked T1 at (10, 10)", "session-1")
	dl.debugMsg("PIPELINE", "no session")
	dl.Close()

	data, err := os.ReadFile(filepath.Join(dir, "session-1.txt"))
	if err != nil {
		t.Fatalf("session file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "SPEEDCAM SESSION: session-1") || !strings.Contains(content, "Marked T1 at (10, 10)") {
		t.Errorf("session file content:\n%s", content)
	}
	if strings.Contains(content, "no session") {
		t.Error("message without a session ID written to a session file")
	}
}
