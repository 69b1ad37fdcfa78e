package seclog

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ExportFormat represents the format for exporting security events
type ExportFormat string

const (
	FormatJSON   ExportFormat = "json"
	FormatJSONL  ExportFormat = "jsonl" // JSON Lines (one JSON object per line)
	FormatCSV    ExportFormat = "csv"
	FormatSyslog ExportFormat = "syslog"
)

// ExportOptions holds options for exporting security events
type ExportOptions struct {
	Format ExportFormat
	Filter *Filter
	Limit  int  // Maximum number of events to export (0 = unlimited)
	Pretty bool // Pretty-print JSON output
}

// Exporter reads persisted security events and writes them in SIEM-friendly formats
type Exporter struct {
	logDir string
}

// NewExporter creates a new security event exporter
func NewExporter(logDir string) *Exporter {
	return &Exporter{logDir: logDir}
}

// Export writes filtered events to the given writer
func (e *Exporter) Export(writer io.Writer, options *ExportOptions) error {
	if options == nil {
		options = &ExportOptions{Format: FormatJSONL}
	}

	events, err := e.readEvents(options.Filter)
	if err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}

	if options.Limit > 0 && len(events) > options.Limit {
		events = events[:options.Limit]
	}

	switch options.Format {
	case FormatJSON:
		return e.exportJSON(writer, events, options.Pretty)
	case FormatJSONL:
		return e.exportJSONL(writer, events)
	case FormatCSV:
		return e.exportCSV(writer, events)
	case FormatSyslog:
		return e.exportSyslog(writer, events)
	default:
		return fmt.Errorf("unsupported export format: %s", options.Format)
	}
}

// ExportToFile writes filtered events to a file
func (e *Exporter) ExportToFile(filename string, options *ExportOptions) (retErr error) {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("failed to close export file: %w", closeErr)
		}
	}()

	retErr = e.Export(file, options)
	return retErr
}

// readEvents reads every persisted event matching the filter, oldest first
func (e *Exporter) readEvents(filter *Filter) ([]*Event, error) {
	files, err := ListLogFiles(e.logDir)
	if err != nil {
		return nil, err
	}

	events := make([]*Event, 0)
	for _, path := range files {
		fileEvents, err := readEventFile(path, filter)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		events = append(events, fileEvents...)
	}
	return events, nil
}

func readEventFile(path string, filter *Filter) ([]*Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	events := make([]*Event, 0)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var chained chainedEvent
		if err := json.Unmarshal(line, &chained); err != nil {
			// Skip malformed lines rather than failing the whole export
			continue
		}
		if chained.Event == nil {
			continue
		}
		if filter == nil || filter.Matches(chained.Event) {
			events = append(events, chained.Event)
		}
	}
	return events, scanner.Err()
}

func (e *Exporter) exportJSON(writer io.Writer, events []*Event, pretty bool) error {
	encoder := json.NewEncoder(writer)
	if pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(events)
}

func (e *Exporter) exportJSONL(writer io.Writer, events []*Event) error {
	encoder := json.NewEncoder(writer)
	for _, event := range events {
		if err := encoder.Encode(event); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) exportCSV(writer io.Writer, events []*Event) error {
	w := csv.NewWriter(writer)
	header := []string{"id", "timestamp", "severity", "type", "message", "source_network", "source_address", "device", "protocol", "port", "session_id"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, event := range events {
		record := []string{
			event.ID,
			event.Timestamp.Format(time.RFC3339),
			string(event.Severity),
			string(event.Type),
			event.Message,
			event.SourceNetwork,
			event.SourceAddress,
			event.Device,
			event.Protocol,
			strconv.Itoa(event.Port),
			event.SessionID,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// exportSyslog writes events as RFC 5424-style lines
func (e *Exporter) exportSyslog(writer io.Writer, events []*Event) error {
	for _, event := range events {
		severity := 6 // informational
		switch event.Severity {
		case SeverityWarning:
			severity = 4
		case SeverityCritical:
			severity = 2
		}
		// facility 13 (log audit) << 3 | severity
		pri := 13*8 + severity
		_, err := fmt.Fprintf(writer, "<%d>1 %s netsim seclog - %s [event source_network=%q device=%q protocol=%q port=%q] %s\n",
			pri,
			event.Timestamp.Format(time.RFC3339),
			event.ID,
			event.SourceNetwork,
			event.Device,
			event.Protocol,
			strconv.Itoa(event.Port),
			event.Message,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
