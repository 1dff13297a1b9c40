package config

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Store gives access to bots.yaml. The file is read and parsed on first use and
// the result, including a load error, is kept for the lifetime of the Store.
// Create one Store at startup and pass it to whatever needs it.
type Store struct {
	path string

	once  sync.Once
	file  *File
	err   error
	reads atomic.Int32
}

// NewStore returns a Store backed by the YAML file at path. Nothing is read
// until the first lookup.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Reads returns how many times the backing file has been read.
func (s *Store) Reads() int {
	return int(s.reads.Load())
}

// File returns the whole parsed configuration.
func (s *Store) File() (*File, error) {
	s.once.Do(func() {
		s.file, s.err = s.read()
	})
	return s.file, s.err
}

// BotConfig returns the configuration for botType.
func (s *Store) BotConfig(botType string) (*BotConfig, error) {
	f, err := s.File()
	if err != nil {
		return nil, err
	}

	cfg, ok := f.Bots[botType]
	if !ok {
		return nil, &ConfigurationError{
			Kind:      KindUnknownBotType,
			BotType:   botType,
			Available: sortedKeys(f.Bots),
		}
	}
	return cfg, nil
}

// Defaults returns the top-level defaults block.
func (s *Store) Defaults() (Defaults, error) {
	f, err := s.File()
	if err != nil {
		return Defaults{}, err
	}
	return f.Defaults, nil
}

// BotTypes returns the configured bot types in sorted order.
func (s *Store) BotTypes() ([]string, error) {
	f, err := s.File()
	if err != nil {
		return nil, err
	}
	return sortedKeys(f.Bots), nil
}

func (s *Store) read() (*File, error) {
	s.reads.Add(1)

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &ConfigurationError{Kind: KindInvalidFile, Path: s.path, Err: err}
	}

	return parse(s.path, data)
}

func parse(path string, data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &ConfigurationError{Kind: KindInvalidFile, Path: path, Err: err}
	}
	if f.Bots == nil {
		return nil, &ConfigurationError{
			Kind: KindInvalidFile,
			Path: path,
			Err:  fmt.Errorf("no bots defined"),
		}
	}

	for name, bot := range f.Bots {
		// A key with no body still names a bot.
		if bot == nil {
			bot = &BotConfig{}
			f.Bots[name] = bot
		}
		for i := range bot.Questions {
			bot.Questions[i].Position = i + 1
		}
	}
	return &f, nil
}

func sortedKeys(m map[string]*BotConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
