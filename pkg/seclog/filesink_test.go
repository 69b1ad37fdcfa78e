package seclog

import (
	"os"
	"strings"
	"testing"
	"time"
)

func newTestFileSink(t *testing.T, config *FileConfig) *FileSink {
	t.Helper()
	if config == nil {
		config = &FileConfig{
			LogDir:        t.TempDir(),
			RotationSize:  0,
			RotationTime:  0,
			Compress:      false,
			RetentionDays: 0,
		}
	}
	sink, err := NewFileSink(config)
	if err != nil {
		t.Fatalf("NewFileSink() error = %v", err)
	}
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestFileSinkWriteAndVerify(t *testing.T) {
	dir := t.TempDir()
	sink := newTestFileSink(t, &FileConfig{LogDir: dir})

	for i := 0; i < 5; i++ {
		err := sink.Log(&Event{
			ID:        "id-" + string(rune('a'+i)),
			Timestamp: time.Now(),
			Severity:  SeverityWarning,
			Message:   "denied",
			Device:    "plc1",
			Port:      502,
		})
		if err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	if sink.EventCount() != 5 {
		t.Errorf("EventCount() = %d, want 5", sink.EventCount())
	}

	files, err := ListLogFiles(dir)
	if err != nil {
		t.Fatalf("ListLogFiles() error = %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("ListLogFiles() returned %d files, want 1", len(files))
	}

	verified, err := VerifyChain(files[0])
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if verified != 5 {
		t.Errorf("VerifyChain() verified %d events, want 5", verified)
	}
}

func TestFileSinkDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	sink := newTestFileSink(t, &FileConfig{LogDir: dir})

	for i := 0; i < 3; i++ {
		if err := sink.Log(&Event{Message: "event", Severity: SeverityInfo}); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	files, _ := ListLogFiles(dir)
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	// Flip the recorded message of the second event
	tampered := strings.Replace(string(data), `"message":"event"`, `"message":"edited"`, 2)
	if tampered == string(data) {
		t.Fatal("tampering replacement did not apply")
	}
	if err := os.WriteFile(files[0], []byte(tampered), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := VerifyChain(files[0]); err == nil {
		t.Error("VerifyChain() accepted a tampered log")
	}
}

func TestFileSinkRotation(t *testing.T) {
	dir := t.TempDir()
	sink := newTestFileSink(t, &FileConfig{
		LogDir:       dir,
		RotationSize: 256, // Tiny, to force rotation
		Compress:     true,
	})

	for i := 0; i < 20; i++ {
		if err := sink.Log(&Event{
			Severity:      SeverityInfo,
			Message:       "session opened",
			SourceNetwork: "control_net",
			Device:        "plc1",
			Protocol:      "modbus",
			Port:          502,
		}); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}
	sink.Close()

	files, err := ListLogFiles(dir)
	if err != nil {
		t.Fatalf("ListLogFiles() error = %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("expected rotation to produce multiple files, got %d", len(files))
	}

	compressed := 0
	for _, f := range files {
		if strings.HasSuffix(f, ".gz") {
			compressed++
		}
	}
	if compressed == 0 {
		t.Error("expected at least one compressed rotated file")
	}
}

func TestFileSinkClosed(t *testing.T) {
	sink := newTestFileSink(t, nil)
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sink.Log(&Event{Message: "late"}); err != ErrSinkClosed {
		t.Errorf("Log() after Close error = %v, want ErrSinkClosed", err)
	}
	// Closing twice is a no-op
	if err := sink.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
