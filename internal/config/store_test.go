package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/matryer/is"
)

const testYAML = `
defaults:
  bot_type: home_renovation
  llm:
    model: gpt-4o-mini
    temperature: 0.2
bots:
  home_renovation:
    company_name: BrightBuild
    greeting: "  Hi there!  "
    questions:
      - text: Do you own your home?
      - text: Is your budget over $10,000?
      - text: Are you looking to start within 3 months?
  loan_qualifier:
    company_name: QuickRupee
    questions:
      - text: Are you a salaried employee?
      - Is your monthly in-hand salary above 25,000?
      - text: Do you reside in a metro city?
    stt:
      language: en-IN
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bots.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestStore_BotConfig(t *testing.T) {
	is := is.New(t)
	store := NewStore(writeConfig(t, testYAML))

	for _, botType := range []string{"home_renovation", "loan_qualifier"} {
		t.Run(botType, func(t *testing.T) {
			is := is.New(t)
			cfg, err := store.BotConfig(botType)
			is.NoErr(err)
			is.True(len(cfg.Questions) > 0) // every bot has questions

			for i, q := range cfg.Questions {
				is.Equal(q.Position, i+1) // positions start at 1 with no gaps
				is.True(q.Text != "")
			}
		})
	}

	loan, err := store.BotConfig("loan_qualifier")
	is.NoErr(err)
	is.Equal(len(loan.Questions), 3)
	is.Equal(loan.Questions[1].Text, "Is your monthly in-hand salary above 25,000?") // scalar item accepted
}

func TestStore_UnknownBotType(t *testing.T) {
	is := is.New(t)
	store := NewStore(writeConfig(t, testYAML))

	tests := []string{"solar_panels", "", "HOME_RENOVATION"}
	for _, botType := range tests {
		_, err := store.BotConfig(botType)
		is.True(err != nil)

		var ce *ConfigurationError
		is.True(errors.As(err, &ce))
		is.Equal(ce.Kind, KindUnknownBotType)
		is.Equal(ce.Available, []string{"home_renovation", "loan_qualifier"})
		is.True(strings.Contains(err.Error(), "home_renovation")) // message lists every key
		is.True(strings.Contains(err.Error(), "loan_qualifier"))
	}
}

func TestStore_ReadsFileOnce(t *testing.T) {
	is := is.New(t)
	path := writeConfig(t, testYAML)
	store := NewStore(path)

	first, err := store.BotConfig("home_renovation")
	is.NoErr(err)

	// Rewrite the file; the store must keep serving the cached structure.
	if err := os.WriteFile(path, []byte("bots:\n  other: {}\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	second, err := store.BotConfig("home_renovation")
	is.NoErr(err)
	is.True(first == second) // same cached pointer
	is.Equal(store.Reads(), 1)

	types, err := store.BotTypes()
	is.NoErr(err)
	is.Equal(types, []string{"home_renovation", "loan_qualifier"})
}

func TestStore_ConcurrentFirstAccess(t *testing.T) {
	is := is.New(t)
	store := NewStore(writeConfig(t, testYAML))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.BotConfig("loan_qualifier"); err != nil {
				t.Errorf("BotConfig: %v", err)
			}
		}()
	}
	wg.Wait()

	is.Equal(store.Reads(), 1)
}

func TestStore_Defaults(t *testing.T) {
	is := is.New(t)
	store := NewStore(writeConfig(t, testYAML))

	d, err := store.Defaults()
	is.NoErr(err)
	is.Equal(d.BotType, "home_renovation")
	is.Equal(d.LLM.Model, "gpt-4o-mini")
	is.True(d.LLM.Temperature != nil)
	is.Equal(*d.LLM.Temperature, 0.2)
}

func TestStore_InvalidFile(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") },
		},
		{
			name: "malformed yaml",
			path: func(t *testing.T) string { return writeConfig(t, "bots: [unterminated") },
		},
		{
			name: "no bots",
			path: func(t *testing.T) string { return writeConfig(t, "defaults: {}\n") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			store := NewStore(tt.path(t))

			_, err := store.BotConfig("home_renovation")
			is.True(IsConfigurationError(err))

			// The failure is cached too.
			_, err = store.Defaults()
			is.True(err != nil)
			is.Equal(store.Reads(), 1)
		})
	}
}

func TestStore_RepositoryConfig(t *testing.T) {
	is := is.New(t)
	store := NewStore(filepath.Join("..", "..", "config", "bots.yaml"))

	loan, err := store.BotConfig("loan_qualifier")
	is.NoErr(err)
	is.Equal(len(loan.Questions), 3)

	home, err := store.BotConfig("home_renovation")
	is.NoErr(err)
	is.Equal(len(home.Questions), 3)
}
