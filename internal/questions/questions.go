package questions

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"

	"github.com/DoyleJ11/feud-live/internal/engine"
)

//go:embed default.json
var defaultBank []byte

// Default returns the built-in bank. Each call decodes a fresh copy.
func Default() []engine.Question {
	qs, err := Parse(defaultBank)
	if err != nil {
		panic(fmt.Sprintf("questions: embedded bank is invalid: %v", err))
	}
	return qs
}

func Parse(data []byte) ([]engine.Question, error) {
	var qs []engine.Question
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if err := engine.ValidateQuestions(qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// Load reads a JSON bank from path; an empty path yields the built-in bank.
func Load(path string) ([]engine.Question, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions %s: %w", path, err)
	}
	return Parse(data)
}

// Shuffled returns a randomly ordered copy; the input is left untouched.
func Shuffled(qs []engine.Question) []engine.Question {
	out := slices.Clone(qs)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
