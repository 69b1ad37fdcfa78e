package seclog

import (
	"bufio"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// FileConfig holds configuration for the persistent file sink
type FileConfig struct {
	LogDir        string        // Directory to store event logs
	RotationSize  int64         // Rotate log file when it exceeds this size (bytes)
	RotationTime  time.Duration // Rotate log file after this duration
	Compress      bool          // Compress rotated log files
	RetentionDays int           // Delete logs older than this many days
}

// DefaultFileConfig returns default configuration
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		LogDir:        "./data/seclog",
		RotationSize:  50 * 1024 * 1024, // 50MB
		RotationTime:  24 * time.Hour,   // Daily
		Compress:      true,
		RetentionDays: 90,
	}
}

// chainedEvent is an event with its position in the tamper-detection hash chain
type chainedEvent struct {
	*Event
	PreviousHash string `json:"previous_hash,omitempty"`
	EventHash    string `json:"event_hash"`
}

// FileSink writes security events to disk as JSON Lines with rotation
// and a hash chain for tamper detection
type FileSink struct {
	logDir        string
	currentFile   *os.File
	writer        *bufio.Writer
	lastHash      string
	eventCount    int64
	bytesWritten  int64
	rotationSize  int64
	rotationTime  time.Duration
	lastRotation  time.Time
	compress      bool
	retentionDays int
	mu            sync.Mutex
	closed        bool
}

// NewFileSink creates a persistent file sink
func NewFileSink(config *FileConfig) (*FileSink, error) {
	if config == nil {
		config = DefaultFileConfig()
	}
	if err := os.MkdirAll(config.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create security log directory: %w", err)
	}

	sink := &FileSink{
		logDir:        config.LogDir,
		rotationSize:  config.RotationSize,
		rotationTime:  config.RotationTime,
		compress:      config.Compress,
		retentionDays: config.RetentionDays,
		lastRotation:  time.Now(),
	}

	if err := sink.openLogFile(); err != nil {
		return nil, err
	}

	return sink, nil
}

// Log writes a security event to the current log file
func (s *FileSink) Log(event *Event) error {
	if event == nil {
		return ErrInvalidEvent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}

	if s.shouldRotate() {
		if err := s.rotate(); err != nil {
			return err
		}
	}

	chained := &chainedEvent{
		Event:        event,
		PreviousHash: s.lastHash,
	}

	data, err := json.Marshal(chained)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	hash := sha256.Sum256(data)
	chained.EventHash = hex.EncodeToString(hash[:])

	line, err := json.Marshal(chained)
	if err != nil {
		return fmt.Errorf("failed to marshal chained event: %w", err)
	}

	n, err := s.writer.Write(append(line, '\n'))
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}

	s.lastHash = chained.EventHash
	s.bytesWritten += int64(n)
	atomic.AddInt64(&s.eventCount, 1)

	return nil
}

// EventCount returns the number of events written
func (s *FileSink) EventCount() int64 {
	return atomic.LoadInt64(&s.eventCount)
}

// Close flushes and closes the current log file
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var flushErr error
	if s.writer != nil {
		flushErr = s.writer.Flush()
	}
	if s.currentFile != nil {
		if err := s.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
	}
	return flushErr
}

// openLogFile opens the current log file for appending
func (s *FileSink) openLogFile() error {
	filename := filepath.Join(s.logDir, fmt.Sprintf("seclog-%s.jsonl", time.Now().Format("20060102-150405.000000000")))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open security log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat security log file: %w", err)
	}

	s.currentFile = file
	s.writer = bufio.NewWriter(file)
	s.bytesWritten = info.Size()
	return nil
}

// shouldRotate checks if log rotation is needed
func (s *FileSink) shouldRotate() bool {
	if s.rotationSize > 0 && s.bytesWritten >= s.rotationSize {
		return true
	}
	if s.rotationTime > 0 && time.Since(s.lastRotation) >= s.rotationTime {
		return true
	}
	return false
}

// rotate closes the current log file and opens a new one
func (s *FileSink) rotate() error {
	var flushErr error
	if s.writer != nil {
		flushErr = s.writer.Flush()
	}

	if s.currentFile != nil {
		oldName := s.currentFile.Name()
		if err := s.currentFile.Close(); err != nil {
			if flushErr != nil {
				return fmt.Errorf("failed to flush before rotation: %w (also failed to close: %v)", flushErr, err)
			}
			return fmt.Errorf("failed to close log file: %w", err)
		}

		if s.compress {
			if err := compressFile(oldName); err != nil {
				// Rotation still succeeded; the uncompressed file remains
				fmt.Fprintf(os.Stderr, "seclog: failed to compress %s: %v\n", oldName, err)
			}
		}
	}

	s.lastRotation = time.Now()
	s.cleanupOldFiles()
	return s.openLogFile()
}

// cleanupOldFiles removes rotated logs older than the retention window
func (s *FileSink) cleanupOldFiles() {
	if s.retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	entries, err := os.ReadDir(s.logDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "seclog-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(s.logDir, entry.Name()))
		}
	}
}

// compressFile gzips a rotated log file and removes the original
func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		dst.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}

// VerifyChain re-reads a log file and verifies its hash chain.
// Returns the number of verified events, or an error at the first break.
func VerifyChain(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return 0, fmt.Errorf("failed to open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	verified := 0
	prevHash := ""
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chained chainedEvent
		if err := json.Unmarshal(line, &chained); err != nil {
			return verified, fmt.Errorf("event %d: malformed entry: %w", verified+1, err)
		}
		if chained.PreviousHash != prevHash {
			return verified, fmt.Errorf("event %d: hash chain broken", verified+1)
		}

		// Recompute the hash over the entry with its own hash cleared
		claimed := chained.EventHash
		chained.EventHash = ""
		data, err := json.Marshal(&chained)
		if err != nil {
			return verified, fmt.Errorf("event %d: %w", verified+1, err)
		}
		hash := sha256.Sum256(data)
		if hex.EncodeToString(hash[:]) != claimed {
			return verified, fmt.Errorf("event %d: hash mismatch", verified+1)
		}

		prevHash = claimed
		verified++
	}
	if err := scanner.Err(); err != nil {
		return verified, fmt.Errorf("failed to read log file: %w", err)
	}
	return verified, nil
}

// ListLogFiles returns the sink's log files, oldest first
func ListLogFiles(logDir string) ([]string, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "seclog-") {
			continue
		}
		files = append(files, filepath.Join(logDir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
