package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const storytellerSystemPrompt = `You are the narrator of a werewolf game played in a small village. Each morning you are told who died during the night and how. Tell the village what was found in 2-3 gothic, dramatic sentences. Never reveal anything that is not in the report.`

// storyTimeout bounds how long the morning waits for the narrator
const storyTimeout = 20 * time.Second

const groqBaseURL = "https://api.groq.com/openai/v1"

// Storyteller turns a morning report into a short story
type Storyteller interface {
	Tell(ctx context.Context, report []string) (string, error)
}

// narrator is nil when no provider is configured
var narrator Storyteller

var errNoProvider = errors.New("storyteller disabled")

type llmStoryteller struct {
	llm  llms.Model
	opts []llms.CallOption
}

func (s *llmStoryteller) Tell(ctx context.Context, report []string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, storytellerSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, "This morning's report:\n"+strings.Join(report, "\n")),
	}
	resp, err := s.llm.GenerateContent(ctx, messages, s.opts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// callOptions turns the sampling settings into call options. Invalid values
// are logged and skipped.
func callOptions(cfg AppConfig) []llms.CallOption {
	var opts []llms.CallOption
	if t := cfg.StorytellerTemperature; t != "" {
		f, err := strconv.ParseFloat(t, 64)
		if err != nil || f < 0 || f > 1 {
			log.Printf("Storyteller: ignoring temperature %q", t)
		} else {
			opts = append(opts, llms.WithTemperature(f))
		}
	}
	switch mode := llms.ThinkingMode(cfg.StorytellerThinking); mode {
	case "":
	case llms.ThinkingModeNone, llms.ThinkingModeLow, llms.ThinkingModeMedium, llms.ThinkingModeHigh, llms.ThinkingModeAuto:
		opts = append(opts, llms.WithThinkingMode(mode))
	default:
		log.Printf("Storyteller: ignoring thinking mode %q", mode)
	}
	return opts
}

// openAICompatible covers openai itself, groq and any self-hosted endpoint
func openAICompatible(model, baseURL, token string, client *http.Client) (llms.Model, error) {
	opts := []openai.Option{openai.WithModel(model), openai.WithHTTPClient(client)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	if token != "" {
		opts = append(opts, openai.WithToken(token))
	}
	return openai.New(opts...)
}

// newStorytellerModel opens the configured provider
func newStorytellerModel(cfg AppConfig) (llms.Model, error) {
	client := http.DefaultClient
	if appLogger.logsRequests() {
		client = &http.Client{Transport: &LoggingRoundTripper{Transport: http.DefaultTransport, Logger: appLogger}}
	}

	model := cfg.StorytellerModel
	switch cfg.StorytellerProvider {
	case "":
		return nil, errNoProvider
	case "ollama":
		return ollama.New(ollama.WithModel(model), ollama.WithServerURL(cfg.StorytellerOllamaURL), ollama.WithHTTPClient(client))
	case "openai":
		return openAICompatible(model, "", "", client)
	case "groq":
		return openAICompatible(model, groqBaseURL, cfg.GroqAPIKey, client)
	case "openai-compatible":
		if cfg.StorytellerURL == "" {
			return nil, errors.New("storyteller_url is required for openai-compatible provider")
		}
		return openAICompatible(model, cfg.StorytellerURL, cfg.StorytellerAPIKey, client)
	case "claude":
		return anthropic.New(anthropic.WithModel(model))
	case "gemini":
		return googleai.New(context.Background(), googleai.WithDefaultModel(model))
	}
	return nil, fmt.Errorf("unknown storyteller provider %q", cfg.StorytellerProvider)
}

// initStoryteller sets up the narrator from config. Without a provider the
// morning report is all players get.
func initStoryteller(cfg AppConfig) {
	llm, err := newStorytellerModel(cfg)
	switch {
	case errors.Is(err, errNoProvider):
		log.Printf("Storyteller: disabled (set storyteller_provider to enable)")
	case err != nil:
		log.Printf("Storyteller: failed to init %s (%s): %v", cfg.StorytellerProvider, cfg.StorytellerModel, err)
	default:
		narrator = &llmStoryteller{llm: llm, opts: callOptions(cfg)}
		log.Printf("Storyteller: %s model=%s", cfg.StorytellerProvider, cfg.StorytellerModel)
	}
}

// narrate asks the narrator for a story about the report and broadcasts
// it. Failures only cost the flavor text.
func (s *Session) narrate(ctx context.Context, report []string) {
	if narrator == nil || len(report) == 0 {
		return
	}
	tctx, cancel := context.WithTimeout(ctx, storyTimeout)
	story, err := narrator.Tell(tctx, report)
	cancel()
	if err != nil {
		log.Printf("Storyteller: session %s day %d: %v", s.ID, s.Day, err)
		return
	}
	if story != "" {
		s.announce(ctx, "📜 %s", story)
	}
}
