package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogger provides unified debug message handling for console and session files
type DebugLogger struct {
	enabled       bool
	verbose       bool
	baseDir       string
	out           io.Writer
	mu            sync.Mutex
	sessionFiles  map[string]*os.File // sessionID -> file handle
	history       []DebugMessage
	maxHistory    int
	writeQueue    chan DebugWriteTask
	stopWorker    chan bool
	workerStopped sync.WaitGroup
}

type DebugMessage struct {
	Timestamp time.Time
	Component string
	Message   string
	SessionID string
}

type DebugWriteTask struct {
	file    *os.File
	content string
}

// NewDebugLogger creates a unified debug logger. Session files are only written when enabled.
func NewDebugLogger(enabled, verbose bool, baseDir string, out io.Writer) *DebugLogger {
	if out == nil {
		out = os.Stdout
	}
	if enabled {
		if err := os.MkdirAll(baseDir, 0755); err != nil {
			fmt.Fprintf(out, "[DEBUG_LOGGER] Failed to create debug directory: %v\n", err)
			enabled = false
		}
	}

	dl := &DebugLogger{
		enabled:      enabled,
		verbose:      verbose,
		baseDir:      baseDir,
		out:          out,
		sessionFiles: make(map[string]*os.File),
		history:      make([]DebugMessage, 0),
		maxHistory:   200, // Keep last 200 messages
		writeQueue:   make(chan DebugWriteTask, 100),
		stopWorker:   make(chan bool, 1),
	}

	// Start async file writer worker if enabled
	if enabled {
		dl.workerStopped.Add(1)
		go dl.fileWriteWorker()
	}

	return dl
}

// debugMsg is the main unified debug function
func (dl *DebugLogger) debugMsg(component, message string, sessionID ...string) {
	timestamp := time.Now()
	line := fmt.Sprintf("[%s][%s] %s", timestamp.Format("15:04:05.000"), component, message)

	currentSession := ""
	if len(sessionID) > 0 && sessionID[0] != "" {
		currentSession = sessionID[0]
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	fmt.Fprintln(dl.out, line)

	dl.history = append(dl.history, DebugMessage{
		Timestamp: timestamp,
		Component: component,
		Message:   message,
		SessionID: currentSession,
	})
	if len(dl.history) > dl.maxHistory {
		dl.history = dl.history[1:] // Remove oldest
	}

	if !dl.enabled || currentSession == "" {
		return
	}

	file := dl.getOrCreateSessionFile(currentSession)
	if file == nil {
		return
	}
	select {
	case dl.writeQueue <- DebugWriteTask{file: file, content: line + "\n"}:
	default:
		// Queue full, drop message to prevent blocking
	}
}

// debugMsgVerbose only outputs when verbose logging is on
func (dl *DebugLogger) debugMsgVerbose(component, message string, sessionID ...string) {
	if !dl.verbose {
		return
	}
	dl.debugMsg(component, message, sessionID...)
}

// getOrCreateSessionFile must be called with dl.mu held
func (dl *DebugLogger) getOrCreateSessionFile(sessionID string) *os.File {
	if file, exists := dl.sessionFiles[sessionID]; exists {
		return file
	}

	path := filepath.Join(dl.baseDir, sessionID+".txt")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(dl.out, "[DEBUG_LOGGER] Failed to open session log %s: %v\n", path, err)
		return nil
	}

	if info, err := file.Stat(); err == nil && info.Size() == 0 {
		header := fmt.Sprintf("=== SPEEDCAM SESSION: %s ===\n", sessionID)
		header += fmt.Sprintf("Started: %s\n", time.Now().Format("2006-01-02 15:04:05"))
		header += "========================================\n\n"
		file.WriteString(header)
	}

	dl.sessionFiles[sessionID] = file
	return file
}

// fileWriteWorker handles async file writing
func (dl *DebugLogger) fileWriteWorker() {
	defer dl.workerStopped.Done()

	for {
		select {
		case task := <-dl.writeQueue:
			task.file.WriteString(task.content)

		case <-dl.stopWorker:
			// Drain remaining tasks
			for len(dl.writeQueue) > 0 {
				task := <-dl.writeQueue
				task.file.WriteString(task.content)
			}
			return
		}
	}
}

// History returns a copy of the recent messages, oldest first
func (dl *DebugLogger) History() []DebugMessage {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	out := make([]DebugMessage, len(dl.history))
	copy(out, dl.history)
	return out
}

// Close flushes and closes the session files
func (dl *DebugLogger) Close() {
	if !dl.enabled {
		return
	}

	dl.stopWorker <- true
	dl.workerStopped.Wait()

	dl.mu.Lock()
	for _, file := range dl.sessionFiles {
		file.Sync()
		file.Close()
	}
	dl.sessionFiles = make(map[string]*os.File)
	dl.mu.Unlock()
}
