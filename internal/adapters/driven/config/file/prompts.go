package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads interpretation prompts from user-editable files,
// falling back to the embedded defaults. Nothing touches disk until the
// first Load.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts seed new prompt files and stand in for missing ones.
var defaultPrompts = map[string]string{
	driven.PromptInterpretIntent: `You map a developer's request onto one call of a documented HTTP API.
Use only the endpoints listed below. Do not invent paths.

Request: %s
API: %s

Fragments:
%s

Extra parameters (JSON): %s

Reply with exactly one JSON object and nothing else:
{"endpoint": "/path", "method": "GET", "parameters": {}, "confidence": 0.0, "reasoning": "", "fragment_ids": []}

confidence is a number between 0 and 1. Put path, query and body values in parameters.`,
}

// NewPromptStore creates a prompt store rooted at promptDir, or
// ~/.specfrag/prompts when promptDir is empty.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".specfrag", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for name. The first call creates the
// prompt directory and writes the defaults. A missing or unreadable file
// falls back to the embedded default.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		if prompt, ok := defaultPrompts[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	prompt, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return prompt, nil
	}

	prompt, err := s.loadFromFile(name)
	if err != nil {
		if def, ok := defaultPrompts[name]; ok {
			return def, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[name]; ok {
		return cached, nil
	}
	s.cache[name] = prompt
	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	path := filepath.Join(s.promptDir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# specfrag Prompts

This directory contains customisable prompts used when a language model
interprets research requests.

## Files

- ` + "`interpret_intent.txt`" + ` - Turns an intent and candidate fragments into a call plan

## Customisation

Edit any file to customise model behaviour. Changes take effect on the next
command, or after restarting ` + "`specfrag serve`" + `.

## Format Placeholders

` + "`interpret_intent.txt`" + ` takes four ` + "`%s`" + ` placeholders, in order:
the request, the API id, the fragment list and the extra parameters as JSON.

The model must answer with a single JSON object. Replies that cannot be
parsed fall back to the keyword scorer.
`
	return os.WriteFile(path, []byte(content), 0600)
}
