package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileLogger appends audit events as newline-delimited JSON to a file,
// rotating when the file exceeds the configured size.
type FileLogger struct {
	basePath string
	file     *os.File
	encoder  *json.Encoder
	maxSize  int64
	maxFiles int
	mu       sync.Mutex
}

// FileLoggerConfig configures the file logger
type FileLoggerConfig struct {
	BasePath string // Directory for audit log files
	MaxSize  int64  // Max file size in bytes before rotation
	MaxFiles int    // Max number of rotated files to keep
}

// DefaultFileLoggerConfig returns the default configuration
func DefaultFileLoggerConfig() FileLoggerConfig {
	return FileLoggerConfig{
		BasePath: "/var/log/quizdeck/audit",
		MaxSize:  100 * 1024 * 1024,
		MaxFiles: 10,
	}
}

// NewFileLogger creates a file-based audit logger
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	logger := &FileLogger{
		basePath: config.BasePath,
		maxSize:  config.MaxSize,
		maxFiles: config.MaxFiles,
	}
	if logger.maxSize == 0 {
		logger.maxSize = 100 * 1024 * 1024
	}
	if logger.maxFiles == 0 {
		logger.maxFiles = 10
	}

	if err := logger.openLogFile(); err != nil {
		return nil, err
	}
	return logger, nil
}

func (l *FileLogger) currentPath() string {
	return filepath.Join(l.basePath, "audit.log")
}

func (l *FileLogger) openLogFile() error {
	file, err := os.OpenFile(l.currentPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	l.file = file
	l.encoder = json.NewEncoder(file)
	return nil
}

func (l *FileLogger) rotateIfNeeded() error {
	info, err := l.file.Stat()
	if err != nil || info.Size() < l.maxSize {
		return err
	}

	if err := l.file.Close(); err != nil {
		return err
	}

	// Shift audit.log.N → audit.log.N+1, dropping the oldest.
	oldest := filepath.Join(l.basePath, fmt.Sprintf("audit.log.%d", l.maxFiles))
	os.Remove(oldest)
	for i := l.maxFiles - 1; i >= 1; i-- {
		from := filepath.Join(l.basePath, fmt.Sprintf("audit.log.%d", i))
		to := filepath.Join(l.basePath, fmt.Sprintf("audit.log.%d", i+1))
		os.Rename(from, to)
	}
	if err := os.Rename(l.currentPath(), filepath.Join(l.basePath, "audit.log.1")); err != nil {
		return err
	}

	return l.openLogFile()
}

// Log appends an event to the audit log file
func (l *FileLogger) Log(ctx context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeeded(); err != nil {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}
	return l.encoder.Encode(event)
}

// Close closes the underlying file
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
