package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// GameSettings are the per-process rules every new session starts with.
// Chaos is chosen per session by the start command.
type GameSettings struct {
	MinPlayers      int    `json:"min_players"`
	JoinSeconds     int    `json:"join_seconds"`
	DisabledRoles   uint64 `json:"disabled_roles"` // bit n disables the role with Bit n
	BurningOverkill bool   `json:"burning_overkill"`
	ThiefFull       bool   `json:"thief_full"`
	NightSeconds    int    `json:"night_seconds"`
	DaySeconds      int    `json:"day_seconds"`
	ShotSeconds     int    `json:"shot_seconds"`
	IdleVotes       int    `json:"idle_votes"` // missed lynch votes in a row before a player is removed, 0 disables
}

func defaultGameSettings() GameSettings {
	return GameSettings{
		MinPlayers:      8,
		JoinSeconds:     120,
		BurningOverkill: true,
		NightSeconds:    90,
		DaySeconds:      120,
		ShotSeconds:     30,
		IdleVotes:       2,
	}
}

// IsDisabled reports whether the role is switched off by the disable mask
func (g GameSettings) IsDisabled(r *Role) bool {
	return g.DisabledRoles&(1<<r.Bit) != 0
}

// AppConfig holds all server configuration.
// Priority (lowest → highest): defaults < .env < env vars < JSON config file < CLI flags.
type AppConfig struct {
	// Server
	DB   string `json:"db"`   // ledger connection string
	Dev  bool   `json:"dev"`  // dev mode: verbose logging, db dumps on errors
	Addr string `json:"addr"` // HTTP listen address

	// Logging (extended diagnostics, off by default)
	LogOutputDir string `json:"log_output_dir"`
	LogRequests  bool   `json:"log_requests"`
	LogDB        bool   `json:"log_db"`
	LogWS        bool   `json:"log_ws"`
	LogDebug     bool   `json:"log_debug"`

	// Game rules
	Game GameSettings `json:"-"`

	// AI Storyteller
	StorytellerProvider    string `json:"storyteller_provider"`    // ollama | openai | claude | gemini | groq | openai-compatible
	StorytellerModel       string `json:"storyteller_model"`       // model name
	StorytellerOllamaURL   string `json:"storyteller_ollama_url"`  // Ollama server URL
	StorytellerURL         string `json:"storyteller_url"`         // base URL for openai-compatible
	StorytellerAPIKey      string `json:"storyteller_api_key"`     // API key for openai-compatible
	StorytellerTemperature string `json:"storyteller_temperature"` // float 0-1 as string
	StorytellerThinking    string `json:"storyteller_thinking"`    // none | low | medium | high | auto
	GroqAPIKey             string `json:"groq_api_key"`            // API key for groq provider
}

func (cfg AppConfig) toLogConfig() LogConfig {
	return LogConfig{
		OutputDir:   cfg.LogOutputDir,
		LogRequests: cfg.LogRequests,
		LogDB:       cfg.LogDB,
		LogWS:       cfg.LogWS,
		Debug:       cfg.LogDebug,
	}
}

func defaultConfig() AppConfig {
	return AppConfig{
		DB:                   "file::memory:?cache=shared",
		Addr:                 ":8080",
		Game:                 defaultGameSettings(),
		StorytellerOllamaURL: "http://localhost:11434",
	}
}

// option binds one setting to its flag. The env var and the JSON key are
// derived from the flag name: min-players is MIN_PLAYERS and "min_players".
type option struct {
	name  string
	usage string
	ptr   any // *string, *bool, *int or *uint64
}

func (o option) envKey() string  { return strings.ToUpper(o.jsonKey()) }
func (o option) jsonKey() string { return strings.ReplaceAll(o.name, "-", "_") }

// options lists every configurable field of cfg
func (cfg *AppConfig) options() []option {
	g := &cfg.Game
	return []option{
		{"db", "ledger connection string", &cfg.DB},
		{"dev", "enable development mode (verbose logging, db dumps on error)", &cfg.Dev},
		{"addr", "HTTP listen address (e.g. :8080)", &cfg.Addr},
		{"log-output-dir", "directory for extended log files", &cfg.LogOutputDir},
		{"log-requests", "log HTTP requests and responses", &cfg.LogRequests},
		{"log-db", "log ledger dumps", &cfg.LogDB},
		{"log-ws", "log WebSocket messages", &cfg.LogWS},
		{"log-debug", "enable debug logging", &cfg.LogDebug},
		{"min-players", "players needed to start a game", &g.MinPlayers},
		{"join-seconds", "join countdown in seconds", &g.JoinSeconds},
		{"night-seconds", "answer window for night prompts", &g.NightSeconds},
		{"day-seconds", "answer window for day prompts and the lynch vote", &g.DaySeconds},
		{"shot-seconds", "answer window for the hunter's final shot", &g.ShotSeconds},
		{"idle-votes", "missed lynch votes in a row before a player idles away (0 disables)", &g.IdleVotes},
		{"disabled-roles", "bitmask of disabled roles", &g.DisabledRoles},
		{"burning-overkill", "allow Arsonist and Serial Killer in the same game", &g.BurningOverkill},
		{"thief-full", "let the thief steal every night", &g.ThiefFull},
		{"storyteller-provider", "AI storyteller provider (ollama|openai|claude|gemini|groq|openai-compatible)", &cfg.StorytellerProvider},
		{"storyteller-model", "AI storyteller model name", &cfg.StorytellerModel},
		{"storyteller-ollama-url", "Ollama server URL", &cfg.StorytellerOllamaURL},
		{"storyteller-url", "base URL for openai-compatible provider", &cfg.StorytellerURL},
		{"storyteller-api-key", "API key for storyteller provider", &cfg.StorytellerAPIKey},
		{"storyteller-temperature", "sampling temperature 0-1", &cfg.StorytellerTemperature},
		{"storyteller-thinking", "thinking mode: none|low|medium|high|auto", &cfg.StorytellerThinking},
		{"groq-api-key", "Groq API key", &cfg.GroqAPIKey},
	}
}

// parseEnv sets o from a non-empty env value. Unparseable values are logged
// and leave the previous layer in place.
func (o option) parseEnv(v string) {
	var err error
	switch p := o.ptr.(type) {
	case *string:
		*p = v
	case *bool:
		*p = v == "1" || v == "true" || v == "yes"
	case *int:
		var n int
		if n, err = strconv.Atoi(v); err == nil {
			*p = n
		}
	case *uint64:
		var n uint64
		if n, err = strconv.ParseUint(v, 0, 64); err == nil {
			*p = n
		}
	}
	if err != nil {
		log.Printf("Config: ignoring %s=%q: %v", o.envKey(), v, err)
	}
}

// loadConfig builds a config by layering: defaults → .env → env vars → JSON config file.
// CLI flag overrides are applied separately by flagValues.applyTo after flag.Parse.
func loadConfig(configPath string) AppConfig {
	cfg := defaultConfig()

	// Layer 0: .env never overrides variables already set in the process
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Config: failed to read .env: %v", err)
	}

	// Layer 1: env vars
	for _, o := range cfg.options() {
		if v := os.Getenv(o.envKey()); v != "" {
			o.parseEnv(v)
		}
	}

	// Layer 2: JSON config file; only fields present in the file override env vars
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		log.Printf("Config: failed to read %s: %v", configPath, err)
	default:
		var overlay map[string]json.RawMessage
		if err := json.Unmarshal(data, &overlay); err != nil {
			log.Printf("Config: failed to parse %s: %v", configPath, err)
			break
		}
		for _, o := range cfg.options() {
			raw, ok := overlay[o.jsonKey()]
			if !ok {
				continue
			}
			if err := json.Unmarshal(raw, o.ptr); err != nil {
				log.Printf("Config: ignoring %s: %v", o.jsonKey(), err)
			}
		}
		log.Printf("Config: loaded from %s", configPath)
	}

	return cfg
}

// flagValues holds the parsed CLI flags. They are bound to a staged copy
// of the defaults so -help shows real defaults.
type flagValues struct {
	configPath *string
	staged     *AppConfig
}

// registerFlags registers all CLI flags on fs.
// Call fs.Parse after this, then applyTo to layer them over the loaded config.
func registerFlags(fs *flag.FlagSet) flagValues {
	staged := defaultConfig()
	fv := flagValues{
		configPath: fs.String("config", "config.json", "path to JSON config file"),
		staged:     &staged,
	}
	for _, o := range staged.options() {
		switch p := o.ptr.(type) {
		case *string:
			fs.StringVar(p, o.name, *p, o.usage)
		case *bool:
			fs.BoolVar(p, o.name, *p, o.usage)
		case *int:
			fs.IntVar(p, o.name, *p, o.usage)
		case *uint64:
			fs.Uint64Var(p, o.name, *p, o.usage)
		}
	}
	return fv
}

// applyTo overlays any CLI flags that were explicitly set onto cfg.
// Flags that were not passed on the command line are ignored (env/JSON values win).
func (fv flagValues) applyTo(fs *flag.FlagSet, cfg *AppConfig) {
	passed := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { passed[f.Name] = true })

	dst := cfg.options()
	for i, o := range fv.staged.options() {
		if !passed[o.name] {
			continue
		}
		switch p := o.ptr.(type) {
		case *string:
			*dst[i].ptr.(*string) = *p
		case *bool:
			*dst[i].ptr.(*bool) = *p
		case *int:
			*dst[i].ptr.(*int) = *p
		case *uint64:
			*dst[i].ptr.(*uint64) = *p
		}
	}
}
