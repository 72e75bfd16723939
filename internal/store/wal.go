package store

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"durakv/internal/log"
)

// The WAL (write-ahead log) is an append-only file where every mutation is
// durably recorded BEFORE it is applied to the in-memory table.
//
// Every entry carries a monotonic seq and a wall-clock timestamp. seq is a
// process-local counter rather than a microsecond timestamp: two writes
// landing in the same microsecond would otherwise collide and violate the
// "strictly increasing seq" contract.
//
// append returns only after the entry is fsynced — that's the durability
// contract the rest of the store is built on. A crash between Write and
// Sync can lose the most recent append; it can never lose one that
// returned successfully.

const (
	opSet     = "SET"
	opDelete  = "DELETE"
	opBulkSet = "BULK_SET"
)

// Item is one (key, value) pair inside a bulk write.
type Item struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Entry is a single WAL record. Only the fields relevant to Op are set.
type Entry struct {
	Seq   uint64  `json:"seq"`
	Op    string  `json:"op"`
	Key   string  `json:"key,omitempty"`
	Value string  `json:"value,omitempty"`
	Items []Item  `json:"items,omitempty"`
	Ts    float64 `json:"ts"`
}

// WAL is a single append-only log backed by one file.
// Each entry is a newline-delimited JSON object (NDJSON), which makes it
// trivial to read back line-by-line and to skip a corrupted one.
type WAL struct {
	mu   sync.Mutex
	file *os.File
	path string
	seq  atomic.Uint64
}

func newWAL(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	// Exclusive, non-blocking flock defends against a second process
	// accidentally sharing this data directory. It does not coordinate
	// goroutines within this process — the mutex does that — it only
	// catches the "two processes, one data dir" error state.
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, err
	}

	w := &WAL{file: f, path: path}

	// Seed the sequence counter from whatever is already on disk so a
	// restart continues after the highest seq still in the log. clear()
	// empties the log, so after a truncation the next open starts the
	// counter again from zero.
	entries, err := w.readAllLocked()
	if err != nil {
		f.Close()
		return nil, err
	}
	var maxSeq uint64
	for _, e := range entries {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}
	w.seq.Store(maxSeq)

	return w, nil
}

// append serializes one SET/DELETE entry as JSON and fsync-writes it.
func (w *WAL) append(op, key, value string) (uint64, error) {
	entry := Entry{
		Seq:   w.seq.Add(1),
		Op:    op,
		Key:   key,
		Value: value,
		Ts:    float64(time.Now().UnixNano()) / 1e9,
	}
	return entry.Seq, w.writeLocked(entry)
}

// appendBulk serializes the entire ordered item list as a single entry —
// atomicity for the caller falls directly out of it being one write+fsync.
func (w *WAL) appendBulk(items []Item) (uint64, error) {
	entry := Entry{
		Seq:   w.seq.Add(1),
		Op:    opBulkSet,
		Items: items,
		Ts:    float64(time.Now().UnixNano()) / 1e9,
	}
	return entry.Seq, w.writeLocked(entry)
}

func (w *WAL) writeLocked(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Write(data); err != nil {
		return err
	}
	return w.file.Sync() // force to stable storage — the "D" in ACID
}

// readAll scans the WAL from the beginning, tolerating and skipping any
// corrupted (unparseable) line, and returns the rest in file order.
func (w *WAL) readAll() ([]Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.readAllLocked()
}

func (w *WAL) readAllLocked() ([]Entry, error) {
	if _, err := w.file.Seek(0, 0); err != nil {
		return nil, err
	}

	var entries []Entry
	scanner := bufio.NewScanner(w.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			log.Component("wal").Warn().Msg("skipping corrupt WAL entry")
			continue
		}
		switch e.Op {
		case opSet, opDelete, opBulkSet:
			entries = append(entries, e)
		default:
			log.Component("wal").Warn().Str("op", e.Op).Msg("skipping unknown WAL op on replay")
		}
	}
	if err := scanner.Err(); err != nil {
		return entries, err
	}

	// Restore the append position for subsequent writes.
	if _, err := w.file.Seek(0, 2); err != nil {
		return entries, err
	}
	return entries, nil
}

// clear truncates the log to zero length once its effects are captured in
// a snapshot.
func (w *WAL) clear() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Truncate(0); err != nil {
		return err
	}
	if _, err := w.file.Seek(0, 0); err != nil {
		return err
	}
	return w.file.Sync()
}

// size reports the WAL file size in bytes.
func (w *WAL) size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	info, err := w.file.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (w *WAL) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = unix.Flock(int(w.file.Fd()), unix.LOCK_UN)
	return w.file.Close()
}
