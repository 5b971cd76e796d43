package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"meshdash/internal/labels"
)

// Fixed keys for persisted client state.
const (
	KeyWatchList = "meshWatchList"
	KeyMapTheme  = "meshMapTheme"
)

// Backend names accepted by Open.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// State is the operator's persisted client state.
type State struct {
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
	WatchList []string  `yaml:"meshWatchList"`
	MapTheme  string    `yaml:"meshMapTheme"`
}

// Backend loads and saves State. Load never fails on unreadable contents;
// those yield the default state.
type Backend interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, st State) error
}

// Normalize drops empty and duplicate watch-list entries, keeping first
// occurrence order, and replaces an unknown theme with the default.
func Normalize(st State) State {
	seen := make(map[string]struct{}, len(st.WatchList))
	list := make([]string, 0, len(st.WatchList))
	for _, id := range st.WatchList {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		list = append(list, id)
	}
	st.WatchList = list
	if !labels.ValidTheme(st.MapTheme) {
		st.MapTheme = labels.DefaultTheme
	}
	return st
}

// Options selects and configures a backend.
type Options struct {
	Backend  string
	Path     string
	RedisURL string
	Logger   *zap.Logger
}

// Open returns the configured backend.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case "", BackendFile:
		if opts.Path == "" {
			return nil, errors.New("state path is required")
		}
		return NewFile(opts.Path, opts.Logger), nil
	case BackendRedis:
		return NewRedis(ctx, opts.RedisURL, opts.Logger)
	default:
		return nil, fmt.Errorf("unknown state backend %q", opts.Backend)
	}
}

// File persists State as YAML on disk.
type File struct {
	path string
	log  *zap.Logger
}

// NewFile returns a file backend at path.
func NewFile(path string, log *zap.Logger) *File {
	if log == nil {
		log = zap.NewNop()
	}
	return &File{path: path, log: log}
}

// Load reads the state file. A missing file yields the default state.
func (f *File) Load(_ context.Context) (State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Normalize(State{}), nil
		}
		return State{}, err
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		f.log.Warn("state file unreadable, using defaults", zap.String("path", f.path), zap.Error(err))
		return Normalize(State{}), nil
	}
	return Normalize(st), nil
}

// Save writes the state file.
func (f *File) Save(_ context.Context, st State) error {
	st = Normalize(st)
	st.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(st)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(f.path, data, 0o600)
}
