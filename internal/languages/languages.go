// Package languages maps a submission language to the container image and
// commands the sandbox needs. Built-in definitions cover the supported
// languages; a TOML file can override or extend them per deployment.
package languages

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language describes how one language is compiled and executed inside its
// container. A nil CompileCmd means the language is interpreted.
type Language struct {
	ID         string   `toml:"id"`
	Image      string   `toml:"image"`
	SourceFile string   `toml:"source_file"`
	CompileCmd []string `toml:"compile_cmd"`
	ExecuteCmd []string `toml:"execute_cmd"`
}

type Registry struct {
	byID map[string]Language
}

func NewRegistry() *Registry {
	r := &Registry{byID: make(map[string]Language)}
	for _, lang := range builtin() {
		r.byID[lang.ID] = lang
	}
	return r
}

func builtin() []Language {
	return []Language{
		{
			ID:         "PYTHON",
			Image:      "python:3.11-alpine",
			SourceFile: "main.py",
			ExecuteCmd: []string{"python3", "main.py"},
		},
		{
			ID:         "JAVA",
			Image:      "eclipse-temurin:17",
			SourceFile: "Main.java",
			CompileCmd: []string{"javac", "Main.java"},
			ExecuteCmd: []string{"java", "Main"},
		},
		{
			ID:         "CPP",
			Image:      "gcc:13",
			SourceFile: "main.cpp",
			CompileCmd: []string{"g++", "-O2", "-o", "main", "main.cpp"},
			ExecuteCmd: []string{"./main"},
		},
	}
}

type registryFile struct {
	Languages []Language `toml:"languages"`
}

// LoadFile merges language definitions from a TOML file into the registry,
// replacing built-ins that share an id.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read language config: %w", err)
	}
	var root registryFile
	if err := toml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse language config: %w", err)
	}
	for _, lang := range root.Languages {
		if lang.ID == "" {
			return fmt.Errorf("language entry in %s is missing an id", path)
		}
		r.byID[lang.ID] = lang
	}
	return nil
}

func (r *Registry) Get(id string) (Language, error) {
	lang, ok := r.byID[id]
	if !ok {
		return Language{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, id)
	}
	return lang, nil
}
