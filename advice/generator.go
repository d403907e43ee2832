package advice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "nomadmatch/errors"
	"nomadmatch/llmclient"
	"nomadmatch/prompts"
	"nomadmatch/recommend"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// typed fields already rendered on their own line
var renderedKeys = map[string]bool{
	"city": true, "city_name": true, "name": true, "country": true,
	"budget": true, "budget_tier": true, "internet": true, "internet_quality": true,
	"visa": true, "visa_friendly": true,
}

// ChatClient is the subset of the LLM client the generator uses.
type ChatClient interface {
	Chat(ctx context.Context, host string, messages []llmclient.Message, temperature *float64) (string, error)
}

// Settings configures the generator.
type Settings struct {
	Host             string
	Temperature      float64
	BreakerFailures  int
	BreakerOpenFor   time.Duration
	MaxDocumentChars int
}

// Generator writes premium advice with the main LLM. Calls pass through a
// circuit breaker so a failing model server is reported immediately instead
// of tying up every premium request until its deadline.
type Generator struct {
	client   ChatClient
	settings Settings
	breaker  *gobreaker.CircuitBreaker[string]
	logger   *zap.Logger
}

func NewGenerator(client ChatClient, settings Settings, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.BreakerFailures <= 0 {
		settings.BreakerFailures = 5
	}
	if settings.BreakerOpenFor <= 0 {
		settings.BreakerOpenFor = 30 * time.Second
	}
	if settings.MaxDocumentChars <= 0 {
		settings.MaxDocumentChars = 400
	}

	failures := uint32(settings.BreakerFailures)
	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "advice-llm",
		MaxRequests: 1,
		Timeout:     settings.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Advice circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// A caller giving up says nothing about the model server's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Generator{
		client:   client,
		settings: settings,
		breaker:  breaker,
		logger:   logger,
	}
}

// Generate returns Markdown advice for query given the ranked results.
func (g *Generator) Generate(ctx context.Context, query string, results []recommend.CityDocument) (string, error) {
	if len(results) == 0 {
		return prompts.NoResultsAdvice(), nil
	}

	messages := []llmclient.Message{
		{Role: "system", Content: prompts.PremiumAdvice()},
		{Role: "user", Content: g.buildUserPrompt(query, results)},
	}
	temperature := g.settings.Temperature

	start := time.Now()
	advice, err := g.breaker.Execute(func() (string, error) {
		return g.client.Chat(ctx, g.settings.Host, messages, &temperature)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: advice model: %w", apperrors.ErrServiceUnavailable, err)
		}
		return "", fmt.Errorf("generate advice: %w", err)
	}

	advice = strings.TrimSpace(advice)
	if advice == "" {
		return "", fmt.Errorf("llm returned empty advice")
	}

	g.logger.Debug("Generated premium advice",
		zap.Int("cities", len(results)),
		zap.Duration("elapsed", time.Since(start)))
	return advice, nil
}

func (g *Generator) buildUserPrompt(query string, results []recommend.CityDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n\nCandidate cities (best match first):\n", strings.TrimSpace(query))
	for _, doc := range results {
		fmt.Fprintf(&b, "\n%d. %s", doc.Rank, doc.City)
		if doc.Country != "" {
			fmt.Fprintf(&b, ", %s", doc.Country)
		}
		fmt.Fprintf(&b, " (match %.1f/100)\n", doc.PresentationScore)
		fmt.Fprintf(&b, "   budget: %s | internet: %s | visa friendly: %s\n", doc.BudgetTier, doc.InternetQuality, doc.VisaFriendly)
		for _, key := range extraKeys(doc.Metadata) {
			fmt.Fprintf(&b, "   %s: %v\n", key, doc.Metadata[key])
		}
		if details := truncate(strings.TrimSpace(doc.Document), g.settings.MaxDocumentChars); details != "" {
			fmt.Fprintf(&b, "   details: %s\n", details)
		}
	}
	return b.String()
}

func extraKeys(metadata map[string]any) []string {
	keys := make([]string, 0, len(metadata))
	for k, v := range metadata {
		if renderedKeys[k] || v == nil || fmt.Sprint(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars]) + "..."
}
