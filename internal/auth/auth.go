// Package auth resolves the GitHub token ghpsync authenticates with.
// Providers are tried in order and the first token found wins.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNoToken is returned by a provider that has no token to offer.
var ErrNoToken = errors.New("no token")

// TokenProvider obtains a GitHub authentication token from one source.
type TokenProvider interface {
	Name() string
	GetToken() (string, error)
}

// StaticProvider returns a token taken from configuration or a flag.
type StaticProvider struct {
	Token string
}

func (s StaticProvider) Name() string { return "config" }

// GetToken returns the configured token, or ErrNoToken when it is blank.
func (s StaticProvider) GetToken() (string, error) {
	token := strings.TrimSpace(s.Token)
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// GhCliProvider obtains tokens by shelling out to the GitHub CLI (`gh auth token`).
// It respects the user's gh CLI authentication state.
type GhCliProvider struct {
	// Hostname defaults to github.com.
	Hostname string
	// Command defaults to "gh"; tests point it elsewhere.
	Command string
}

func (g GhCliProvider) Name() string { return "gh CLI" }

// GetToken runs `gh auth token`. It fails if gh is not installed, not
// authenticated, or prints nothing.
func (g GhCliProvider) GetToken() (string, error) {
	command := g.Command
	if command == "" {
		command = "gh"
	}
	hostname := g.Hostname
	if hostname == "" {
		hostname = "github.com"
	}

	output, err := exec.Command(command, "auth", "token", "--hostname", hostname).Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%s not found in PATH: %w", command, ErrNoToken)
		}
		return "", fmt.Errorf("gh auth token failed: %w", err)
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return "", fmt.Errorf("gh auth token returned empty token: %w", ErrNoToken)
	}
	return token, nil
}

// EnvProvider reads the first non-empty variable of Vars.
type EnvProvider struct {
	Vars []string
}

// DefaultEnvVars are the variables EnvProvider reads when Vars is empty.
var DefaultEnvVars = []string{"GITHUB_TOKEN", "GH_TOKEN"}

func (e EnvProvider) Name() string { return "environment" }

// GetToken returns the first set variable.
func (e EnvProvider) GetToken() (string, error) {
	vars := e.Vars
	if len(vars) == 0 {
		vars = DefaultEnvVars
	}
	for _, name := range vars {
		if token := strings.TrimSpace(os.Getenv(name)); token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("%s not set or empty: %w", strings.Join(vars, "/"), ErrNoToken)
}

// Chain tries each provider in order.
type Chain []TokenProvider

// GetToken returns the first token any provider yields. If all fail the
// error lists every provider's failure.
func (c Chain) GetToken() (string, error) {
	var errs []error
	for _, p := range c {
		token, err := p.GetToken()
		if err == nil {
			return token, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return "", fmt.Errorf(
		"failed to obtain GitHub token (%w).\n"+
			"Please either:\n"+
			"  1. Run 'gh auth login' to authenticate with GitHub CLI,\n"+
			"  2. Set GITHUB_TOKEN to a personal access token, or\n"+
			"  3. Set token in the ghpsync config file",
		errors.Join(errs...),
	)
}

// GetToken resolves a token, preferring configured over the gh CLI and the
// environment.
func GetToken(configured string) (string, error) {
	return Chain{
		StaticProvider{Token: configured},
		GhCliProvider{},
		EnvProvider{},
	}.GetToken()
}
