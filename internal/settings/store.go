package settings

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
)

// FileName is the settings file inside the base directory.
const FileName = "settings.json"

// TaskRecorder records changes of the active task.
type TaskRecorder interface {
	Append(ctx context.Context, l activity.TaskLog) error
}

// Store is the persistent settings record. Writes are serialized and the
// file is replaced atomically; observers run after the lock is released.
type Store struct {
	path  string
	tasks TaskRecorder
	now   func() time.Time

	mu  sync.Mutex
	cur Settings

	obsMu     sync.Mutex
	observers map[int]func(Change)
	nextObs   int
}

// Open loads baseDir/settings.json, falling back to Defaults when the file
// does not exist. Keys missing from the file keep their default values.
func Open(baseDir string, tasks TaskRecorder) (*Store, error) {
	s := &Store{
		path:      filepath.Join(baseDir, FileName),
		tasks:     tasks,
		now:       time.Now,
		observers: make(map[int]func(Change)),
	}
	cur, err := s.read()
	if err != nil {
		return nil, err
	}
	s.cur = cur
	return s, nil
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns a copy of the current record.
func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Update validates and applies p, persists the result and notifies
// observers of every key that changed. A changed currentTask is also
// appended to the task log; an unchanged one is not.
func (s *Store) Update(ctx context.Context, p Patch) (Settings, error) {
	if err := p.Validate(); err != nil {
		return Settings{}, err
	}

	s.mu.Lock()
	before := s.cur
	after := p.Apply(before)
	changes := Diff(before, after)
	if len(changes) == 0 {
		s.mu.Unlock()
		return after, nil
	}

	if after.CurrentTask != before.CurrentTask && s.tasks != nil {
		entry := activity.TaskLog{Timestamp: activity.FormatTime(s.now()), Task: after.CurrentTask}
		if err := s.tasks.Append(ctx, entry); err != nil {
			s.mu.Unlock()
			return Settings{}, errors.Wrap(err, "record task change", map[string]any{"task": after.CurrentTask})
		}
	}

	if err := s.write(after); err != nil {
		s.mu.Unlock()
		return Settings{}, err
	}
	s.cur = after
	s.mu.Unlock()

	s.notify(changes)
	return after, nil
}

// SetTask sets the active task. It reports whether the value changed.
func (s *Store) SetTask(ctx context.Context, task string) (bool, error) {
	before := s.Get().CurrentTask
	after, err := s.Update(ctx, Patch{CurrentTask: &task})
	if err != nil {
		return false, err
	}
	return after.CurrentTask != before, nil
}

// SetPause stores p as the pause state.
func (s *Store) SetPause(ctx context.Context, p PauseState) error {
	_, err := s.Update(ctx, Patch{PauseState: &p})
	return err
}

// IsPaused reports whether judgements are paused right now. An expired
// pause is cleared back to unset on a best-effort basis.
func (s *Store) IsPaused(ctx context.Context) bool {
	p := s.Get().PauseState
	if !p.IsSet() {
		return false
	}
	if p.Active(s.now()) {
		return true
	}
	if err := s.SetPause(ctx, PauseState{}); err != nil {
		log.Debug().Err(err).Msg("failed to clear expired pause")
	}
	return false
}

// Subscribe registers fn for change events and returns a function that
// removes it.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

// Reload re-reads the file and notifies observers of external edits. An
// externally changed currentTask is appended to the task log like Update
// does; if that fails the edit is not adopted and the next reload retries.
func (s *Store) Reload(ctx context.Context) error {
	next, err := s.read()
	if err != nil {
		return err
	}

	s.mu.Lock()
	before := s.cur
	if next.CurrentTask != before.CurrentTask && s.tasks != nil {
		entry := activity.TaskLog{Timestamp: activity.FormatTime(s.now()), Task: next.CurrentTask}
		if err := s.tasks.Append(ctx, entry); err != nil {
			s.mu.Unlock()
			return errors.Wrap(err, "record task change", map[string]any{"task": next.CurrentTask})
		}
	}
	changes := Diff(before, next)
	s.cur = next
	s.mu.Unlock()

	s.notify(changes)
	return nil
}

func (s *Store) notify(changes []Change) {
	if len(changes) == 0 {
		return
	}

	s.obsMu.Lock()
	observers := make([]func(Change), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.obsMu.Unlock()

	for _, c := range changes {
		log.Debug().Str("component", "settings").Str("key", c.Key).Msg("setting changed")
		for _, fn := range observers {
			fn(c)
		}
	}
}

func (s *Store) read() (Settings, error) {
	cur := Defaults()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return cur, nil
		}
		return Settings{}, errors.NewStorage("read settings", err)
	}
	if err := json.Unmarshal(data, &cur); err != nil {
		return Settings{}, errors.NewConfig("invalid settings file " + s.path + ": " + err.Error())
	}
	return cur, nil
}

// write replaces the settings file via a temp file and rename.
func (s *Store) write(v Settings) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.NewInternal(err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.NewStorage("write settings", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return errors.NewStorage("write settings", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.NewStorage("write settings", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewStorage("write settings", err)
	}
	_ = os.Chmod(tmpName, 0600)

	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.NewStorage("write settings", err)
	}
	return nil
}
