package capture

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/snappy"
)

// Direction indicates which way a captured payload was flowing
type Direction byte

const (
	// DirectionInbound is traffic from the external peer to the device
	DirectionInbound Direction = iota
	// DirectionOutbound is traffic from the device to the external peer
	DirectionOutbound
)

// String returns the string representation of a direction
func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "inbound"
	case DirectionOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// Record is one captured traffic payload
type Record struct {
	Seq       uint64
	Direction Direction
	SessionID string
	Data      []byte
	Checksum  uint32
	Timestamp int64
}

// Recorder is an append-only capture log of proxied session traffic with
// snappy compression. Trainees replay captures to study attack traffic,
// so writes are durable and every payload is checksummed.
type Recorder struct {
	file       *os.File
	writer     *bufio.Writer
	currentSeq uint64
	dataDir    string
	mu         sync.Mutex

	// Statistics
	totalWrites       uint64
	bytesUncompressed uint64
	bytesCompressed   uint64
}

// Stats holds capture volume and compression statistics
type Stats struct {
	TotalWrites       uint64
	BytesUncompressed uint64
	BytesCompressed   uint64
	CompressionRatio  float64
}

const captureFileName = "traffic.cap"

// NewRecorder creates a capture recorder writing under dataDir
func NewRecorder(dataDir string) (*Recorder, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}

	capturePath := filepath.Join(dataDir, captureFileName)
	file, err := os.OpenFile(capturePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}

	r := &Recorder{
		file:    file,
		writer:  bufio.NewWriter(file),
		dataDir: dataDir,
	}

	if err := r.recoverSeq(); err != nil {
		return nil, fmt.Errorf("failed to recover capture sequence: %w", err)
	}
	return r, nil
}

// Record appends one payload to the capture log and returns its sequence number
func (r *Recorder) Record(sessionID string, direction Direction, payload []byte) (uint64, error) {
	if len(sessionID) > 0xFFFF {
		return 0, fmt.Errorf("session id too long: %d bytes", len(sessionID))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.currentSeq++
	seq := r.currentSeq

	compressed := snappy.Encode(nil, payload)

	record := Record{
		Seq:       seq,
		Direction: direction,
		SessionID: sessionID,
		Data:      compressed,
		Checksum:  crc32.ChecksumIEEE(compressed),
		Timestamp: time.Now().Unix(),
	}

	r.totalWrites++
	r.bytesUncompressed += uint64(len(payload))
	r.bytesCompressed += uint64(len(compressed))

	if err := r.writeRecord(&record); err != nil {
		r.currentSeq--
		return 0, fmt.Errorf("failed to write capture record: %w", err)
	}
	if err := r.writer.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush capture: %w", err)
	}
	return seq, nil
}

// writeRecord writes one record to disk.
// Format: [Seq:8][Dir:1][IDLen:2][ID:N][DataLen:4][Data:M][Checksum:4][Timestamp:8]
func (r *Recorder) writeRecord(record *Record) error {
	if err := binary.Write(r.writer, binary.BigEndian, record.Seq); err != nil {
		return err
	}
	if err := r.writer.WriteByte(byte(record.Direction)); err != nil {
		return err
	}
	if err := binary.Write(r.writer, binary.BigEndian, uint16(len(record.SessionID))); err != nil {
		return err
	}
	if _, err := r.writer.WriteString(record.SessionID); err != nil {
		return err
	}
	if err := binary.Write(r.writer, binary.BigEndian, uint32(len(record.Data))); err != nil {
		return err
	}
	if _, err := r.writer.Write(record.Data); err != nil {
		return err
	}
	if err := binary.Write(r.writer, binary.BigEndian, record.Checksum); err != nil {
		return err
	}
	return binary.Write(r.writer, binary.BigEndian, record.Timestamp)
}

// ReadAll reads every record from the capture log, decompressing payloads
func (r *Recorder) ReadAll() ([]*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readAllLocked()
}

func (r *Recorder) readAllLocked() ([]*Record, error) {
	if err := r.writer.Flush(); err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(r.dataDir, captureFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	records := make([]*Record, 0)

	for {
		record := &Record{}

		if err := binary.Read(reader, binary.BigEndian, &record.Seq); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		dirByte, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		record.Direction = Direction(dirByte)

		var idLen uint16
		if err := binary.Read(reader, binary.BigEndian, &idLen); err != nil {
			return nil, err
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(reader, idBytes); err != nil {
			return nil, err
		}
		record.SessionID = string(idBytes)

		var dataLen uint32
		if err := binary.Read(reader, binary.BigEndian, &dataLen); err != nil {
			return nil, err
		}
		compressed := make([]byte, dataLen)
		if _, err := io.ReadFull(reader, compressed); err != nil {
			return nil, err
		}

		if err := binary.Read(reader, binary.BigEndian, &record.Checksum); err != nil {
			return nil, err
		}
		if crc32.ChecksumIEEE(compressed) != record.Checksum {
			return nil, fmt.Errorf("checksum mismatch for capture record %d", record.Seq)
		}

		decompressed, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress capture record: %w", err)
		}
		record.Data = decompressed

		if err := binary.Read(reader, binary.BigEndian, &record.Timestamp); err != nil {
			return nil, err
		}

		records = append(records, record)
	}
	return records, nil
}

// SessionRecords reads the records of a single session in capture order
func (r *Recorder) SessionRecords(sessionID string) ([]*Record, error) {
	all, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	records := make([]*Record, 0)
	for _, record := range all {
		if record.SessionID == sessionID {
			records = append(records, record)
		}
	}
	return records, nil
}

// Replay iterates through all capture records and calls the handler for each
func (r *Recorder) Replay(handler func(*Record) error) error {
	records, err := r.ReadAll()
	if err != nil {
		return err
	}
	for _, record := range records {
		if err := handler(record); err != nil {
			return err
		}
	}
	return nil
}

// Capture adapts the recorder to the gateway traffic tap. Write errors
// are swallowed, capture must never break a live session.
func (r *Recorder) Capture(sessionID, direction string, data []byte) {
	dir := DirectionInbound
	if direction == DirectionOutbound.String() {
		dir = DirectionOutbound
	}
	r.Record(sessionID, dir, data)
}

// Truncate discards all captured records (used when a training scenario resets)
func (r *Recorder) Truncate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.writer.Flush()
	r.file.Close()

	capturePath := filepath.Join(r.dataDir, captureFileName)
	if err := os.Remove(capturePath); err != nil && !os.IsNotExist(err) {
		return err
	}

	file, err := os.OpenFile(capturePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	r.file = file
	r.writer = bufio.NewWriter(file)
	r.currentSeq = 0
	return nil
}

// Flush flushes buffered records to disk
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writer.Flush(); err != nil {
		return err
	}
	return r.file.Sync()
}

// Close flushes and closes the capture file
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writer.Flush(); err != nil {
		return err
	}
	if err := r.file.Sync(); err != nil {
		return err
	}
	return r.file.Close()
}

// Stats returns capture volume and compression statistics
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	ratio := 0.0
	if r.bytesUncompressed > 0 {
		ratio = 1.0 - (float64(r.bytesCompressed) / float64(r.bytesUncompressed))
	}
	return Stats{
		TotalWrites:       r.totalWrites,
		BytesUncompressed: r.bytesUncompressed,
		BytesCompressed:   r.bytesCompressed,
		CompressionRatio:  ratio,
	}
}

func (r *Recorder) recoverSeq() error {
	records, err := r.readAllLocked()
	if err != nil {
		return err
	}
	if len(records) > 0 {
		r.currentSeq = records[len(records)-1].Seq
	}
	return nil
}
