package ai

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/trend-agent/pkg/logger"
)

var (
	// ErrAccessDenied means the backend refused the credentials (HTTP 403)
	ErrAccessDenied = errors.New("access denied")
	// ErrEmptyGeneration means nothing was left after cleanup
	ErrEmptyGeneration = errors.New("empty generation")
)

// Backend is one text-generation provider
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Generation is a successful, cleaned backend output
type Generation struct {
	Text    string
	Backend string
	Tried   int
}

// Generator tries backends in a random order until one produces text
type Generator struct {
	backends []Backend
	mu       sync.Mutex
	rng      *rand.Rand
	log      *logger.Logger
}

// NewGenerator creates a generator. A nil rng is seeded from the clock.
func NewGenerator(backends []Backend, rng *rand.Rand, log *logger.Logger) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Generator{
		backends: backends,
		rng:      rng,
		log:      log.WithComponent("generator"),
	}
}

// Backends returns the configured backend names in declaration order
func (g *Generator) Backends() []string {
	names := make([]string, 0, len(g.backends))
	for _, b := range g.backends {
		names = append(names, b.Name())
	}
	return names
}

// Generate returns the first cleaned text, or false once every backend
// has failed or refused
func (g *Generator) Generate(ctx context.Context, prompt string) (string, bool) {
	gen, ok := g.GenerateDetailed(ctx, prompt)
	return gen.Text, ok
}

// GenerateDetailed is Generate plus the name of the backend that answered
func (g *Generator) GenerateDetailed(ctx context.Context, prompt string) (Generation, bool) {
	order := g.shuffled()

	for i, b := range order {
		log := g.log.WithBackend(b.Name())

		text, err := b.Generate(ctx, prompt)
		if ctx.Err() != nil {
			log.Warn().Msg("Generation cancelled")
			return Generation{}, false
		}
		if err == nil {
			if text = CleanGeneration(text, prompt); text == "" {
				err = ErrEmptyGeneration
			}
		}

		if err != nil {
			if errors.Is(err, ErrAccessDenied) {
				log.Warn().Msg("Access denied, trying next backend")
			} else {
				log.Error().Str("error", logger.Truncate(err.Error(), 100)).Msg("Generation failed")
			}
			continue
		}

		log.Info().Int("length", len([]rune(text))).Msg("Generated text")
		return Generation{Text: text, Backend: b.Name(), Tried: i + 1}, true
	}

	g.log.Warn().Int("backends", len(order)).Msg("All backends failed")
	return Generation{}, false
}

func (g *Generator) shuffled() []Backend {
	order := append([]Backend(nil), g.backends...)

	g.mu.Lock()
	g.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	g.mu.Unlock()

	return order
}
