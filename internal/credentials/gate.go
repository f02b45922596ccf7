package credentials

import (
	"fmt"
	"os"
	"strings"
)

// Environment variable names the bot cannot run without
const (
	EnvTwitterAPIKey       = "TWITTER_API_KEY"
	EnvTwitterAPISecret    = "TWITTER_API_SECRET"
	EnvTwitterAccessToken  = "TWITTER_ACCESS_TOKEN"
	EnvTwitterAccessSecret = "TWITTER_ACCESS_SECRET"
	EnvHuggingFaceToken    = "HUGGINGFACE_API_TOKEN"
)

// DefaultRequired lists the credentials checked before any network call
var DefaultRequired = []string{
	EnvTwitterAPIKey,
	EnvTwitterAPISecret,
	EnvTwitterAccessToken,
	EnvTwitterAccessSecret,
	EnvHuggingFaceToken,
}

// LookupFunc resolves a variable, same contract as os.LookupEnv
type LookupFunc func(name string) (string, bool)

// MissingError lists every absent or blank credential
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required credentials: %s", strings.Join(e.Names, ", "))
}

// Gate verifies required secrets are present
type Gate struct {
	Required []string
}

// NewGate creates a gate for the default credential set
func NewGate() *Gate {
	return &Gate{Required: append([]string(nil), DefaultRequired...)}
}

// Check returns *MissingError naming every missing value in declaration order
func (g *Gate) Check(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var missing []string
	for _, name := range g.Required {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return &MissingError{Names: missing}
	}
	return nil
}

// MapLookup adapts a map, handy for resolved config values
func MapLookup(values map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}
