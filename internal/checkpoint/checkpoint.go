package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"zapbench-train/internal/model"
)

// ErrNotFound is returned by Latest when no checkpoint exists yet.
var ErrNotFound = errors.New("checkpoint: not found")

var checkpointRegexp = regexp.MustCompile(`^ckpt-([0-9]{8,})\.json$`)

// Checkpoint is the on-disk training state.
type Checkpoint struct {
	Step    int         `json:"step"`
	SavedAt time.Time   `json:"saved_at"`
	Model   model.State `json:"model"`
}

// Manager saves and restores checkpoints in Dir, keeping at most MaxToKeep.
type Manager struct {
	Dir       string
	MaxToKeep int
}

// NewManager returns a manager rooted at dir, creating it if needed.
func NewManager(dir string, maxToKeep int) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint dir: %w", err)
	}
	if maxToKeep <= 0 {
		maxToKeep = 1
	}
	return &Manager{Dir: dir, MaxToKeep: maxToKeep}, nil
}

func (m *Manager) path(step int) string {
	return filepath.Join(m.Dir, fmt.Sprintf("ckpt-%08d.json", step))
}

// Save atomically writes the checkpoint for step, then prunes old ones.
func (m *Manager) Save(step int, state model.State) error {
	data, err := json.Marshal(Checkpoint{Step: step, SavedAt: time.Now().UTC(), Model: state})
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}
	tmp, err := os.CreateTemp(m.Dir, ".ckpt-*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("checkpoint: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path(step)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return m.prune()
}

// Steps lists the steps that have a checkpoint, ascending.
func (m *Manager) Steps() ([]int, error) {
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	var steps []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := checkpointRegexp.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		step, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		steps = append(steps, step)
	}
	sort.Ints(steps)
	return steps, nil
}

// Latest loads the highest-step checkpoint.
func (m *Manager) Latest() (*Checkpoint, error) {
	steps, err := m.Steps()
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, ErrNotFound
	}
	return m.Load(steps[len(steps)-1])
}

// Load reads the checkpoint for step.
func (m *Manager) Load(step int) (*Checkpoint, error) {
	data, err := os.ReadFile(m.path(step))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read: %w", err)
	}
	var ckpt Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, fmt.Errorf("checkpoint: decode step %d: %w", step, err)
	}
	return &ckpt, nil
}

func (m *Manager) prune() error {
	steps, err := m.Steps()
	if err != nil {
		return err
	}
	for len(steps) > m.MaxToKeep {
		if err := os.Remove(m.path(steps[0])); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checkpoint: prune: %w", err)
		}
		steps = steps[1:]
	}
	return nil
}
