package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Writer appends one JSON object per line to a metrics file.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// OpenWriter opens path for appending, creating it if needed.
func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open metrics file: %w", err)
	}
	return &Writer{f: f, enc: json.NewEncoder(f)}, nil
}

// Write records values for step under split ("train", "val", "test").
func (w *Writer) Write(step int, split string, values map[string]float64) error {
	record := make(map[string]interface{}, len(values)+2)
	for k, v := range values {
		record[k] = v
	}
	record["step"] = step
	record["split"] = split

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(record); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
