// Package catalog loads the read-only challenge and badge catalogs. Both ship
// embedded in the binary; a directory may override either file. Every
// document is validated against its JSON schema before it is decoded.
package catalog

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/cyberquest/cyberquest-api/internal/domain/achievement"
	"github.com/cyberquest/cyberquest-api/internal/domain/challenge"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

const (
	ChallengesFile = "challenges.json"
	BadgesFile     = "badges.json"
)

//go:embed data/*.json
var dataFS embed.FS

//go:embed schema/*.json
var schemaFS embed.FS

// Catalogs bundles the two loaded catalogs.
type Catalogs struct {
	Challenges *challenge.Catalog
	Badges     *achievement.Catalog
}

// Load reads both catalogs. When dir is non-empty, files present there
// replace the embedded defaults.
func Load(dir string) (*Catalogs, error) {
	rawChallenges, err := read(dir, ChallengesFile)
	if err != nil {
		return nil, err
	}
	challenges, err := ParseChallenges(rawChallenges)
	if err != nil {
		return nil, err
	}

	rawBadges, err := read(dir, BadgesFile)
	if err != nil {
		return nil, err
	}
	badges, err := ParseBadges(rawBadges)
	if err != nil {
		return nil, err
	}

	return &Catalogs{Challenges: challenges, Badges: badges}, nil
}

// MustLoadEmbedded returns the embedded catalogs and panics if they are
// broken. Used by tests and tooling.
func MustLoadEmbedded() *Catalogs {
	c, err := Load("")
	if err != nil {
		panic(err)
	}
	return c
}

func read(dir, name string) ([]byte, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("catalog: read %s: %w", name, err)
		}
	}
	return dataFS.ReadFile("data/" + name)
}

// ParseChallenges validates and decodes a challenge document keyed by game type.
func ParseChallenges(raw []byte) (*challenge.Catalog, error) {
	if err := validate(ChallengesFile, raw); err != nil {
		return nil, err
	}
	var doc map[shared.GameType][]challenge.Challenge
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", ChallengesFile, err)
	}
	c, err := challenge.NewCatalog(doc)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", ChallengesFile, err)
	}
	return c, nil
}

// ParseBadges validates and decodes a badge list.
func ParseBadges(raw []byte) (*achievement.Catalog, error) {
	if err := validate(BadgesFile, raw); err != nil {
		return nil, err
	}
	var defs []achievement.BadgeDefinition
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", BadgesFile, err)
	}
	c, err := achievement.NewCatalog(defs)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", BadgesFile, err)
	}
	return c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEMA VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// ValidationError reports a document that does not match its schema.
type ValidationError struct {
	File string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("catalog: %s does not match schema: %v", e.File, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

var compiled sync.Map // file name -> *jsonschema.Schema

func validate(file string, raw []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return &ValidationError{File: file, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	sch, err := schemaFor(file)
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		return &ValidationError{File: file, Err: err}
	}
	return nil
}

func schemaFor(file string) (*jsonschema.Schema, error) {
	if cached, ok := compiled.Load(file); ok {
		return cached.(*jsonschema.Schema), nil
	}

	name := file[:len(file)-len(filepath.Ext(file))] + ".schema.json"
	raw, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		return nil, fmt.Errorf("catalog: schema for %s: %w", file, err)
	}
	def, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("catalog: parse schema %s: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	url := "schema://" + name
	if err := c.AddResource(url, def); err != nil {
		return nil, fmt.Errorf("catalog: add schema %s: %w", name, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("catalog: compile schema %s: %w", name, err)
	}

	compiled.Store(file, sch)
	return sch, nil
}
