// pkg/registry/registry.go
package registry

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

var (
	ErrUnknownField = errors.New("UNKNOWN_FIELD")
	ErrAliasExists  = errors.New("ALIAS_EXISTS")
	ErrInvalidRules = errors.New("INVALID_RULES")
)

// LoadDefault parses the rules shipped with the binary.
func LoadDefault() (*RulesRegistry, error) {
	return decode(defaultRules, ".yaml")
}

// Load reads a rules file, or the embedded defaults when path is empty.
func Load(path string) (*RulesRegistry, error) {
	if path == "" {
		return LoadDefault()
	}
	return LoadRegistry(path)
}

// LoadRegistry reads a YAML or JSON rules file and validates it.
func LoadRegistry(path string) (*RulesRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decode(data, filepath.Ext(path))
}

func decode(data []byte, ext string) (*RulesRegistry, error) {
	var reg RulesRegistry
	var err error
	if strings.EqualFold(ext, ".json") {
		err = json.Unmarshal(data, &reg)
	} else {
		err = yaml.Unmarshal(data, &reg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidRules, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks alias coverage, currency codes and every schedule regex.
func (r *RulesRegistry) Validate() error {
	if strings.TrimSpace(r.Version) == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidRules)
	}
	for _, field := range KnownFields {
		if len(r.Fields[field]) == 0 {
			return fmt.Errorf("%w: field %q has no aliases", ErrInvalidRules, field)
		}
	}
	for _, c := range r.Currencies {
		if !isSupportedCurrency(c.Code) {
			return fmt.Errorf("%w: unsupported currency code %q", ErrInvalidRules, c.Code)
		}
	}
	if _, err := r.SchedulePatterns(); err != nil {
		return err
	}
	return nil
}

// Aliases returns the candidate keys for a field in priority order.
func (r *RulesRegistry) Aliases(field string) []string {
	return r.Fields[field]
}

// SchedulePatterns compiles the schedule regexes and checks their capture groups.
func (r *RulesRegistry) SchedulePatterns() (*SchedulePatterns, error) {
	compile := func(name, expr string, groups int) (*regexp.Regexp, error) {
		if expr == "" {
			return nil, fmt.Errorf("%w: schedule.%s is empty", ErrInvalidRules, name)
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: schedule.%s: %v", ErrInvalidRules, name, err)
		}
		if re.NumSubexp() != groups {
			return nil, fmt.Errorf("%w: schedule.%s must have %d capture groups, has %d",
				ErrInvalidRules, name, groups, re.NumSubexp())
		}
		return re, nil
	}

	primary, err := compile("primary", r.Schedule.Primary, 3)
	if err != nil {
		return nil, err
	}
	labeled, err := compile("labeled", r.Schedule.Labeled, 3)
	if err != nil {
		return nil, err
	}
	permissive, err := compile("permissive", r.Schedule.Permissive, 3)
	if err != nil {
		return nil, err
	}
	first, err := compile("firstInstallment", r.Schedule.FirstInstallment, 2)
	if err != nil {
		return nil, err
	}

	return &SchedulePatterns{
		CandidateTokens:  r.Schedule.CandidateTokens,
		Primary:          primary,
		Labeled:          labeled,
		Permissive:       permissive,
		FirstInstallment: first,
	}, nil
}

// AddAlias appends an alias at the lowest priority and bumps LastUpdated.
func (r *RulesRegistry) AddAlias(field, alias string) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return fmt.Errorf("%w: empty alias", ErrInvalidRules)
	}
	if !isKnownField(field) {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	for _, existing := range r.Fields[field] {
		if strings.EqualFold(existing, alias) {
			return fmt.Errorf("%w: %s already maps to %s", ErrAliasExists, alias, field)
		}
	}
	if r.Fields == nil {
		r.Fields = map[string][]string{}
	}
	r.Fields[field] = append(r.Fields[field], alias)
	r.LastUpdated = time.Now().UTC().Format("2006-01-02")
	return nil
}

// Save writes the registry as YAML, or JSON when the path ends in .json.
func (r *RulesRegistry) Save(path string) error {
	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".json") {
		out, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		data = out
	} else {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	return os.WriteFile(path, data, 0o644)
}

func isKnownField(field string) bool {
	for _, f := range KnownFields {
		if f == field {
			return true
		}
	}
	return false
}

func isSupportedCurrency(code string) bool {
	for _, c := range SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}
