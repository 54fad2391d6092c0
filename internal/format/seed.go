package format

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type seedDocument struct {
	Formats []seedFormat `toml:"formats" yaml:"formats"`
}

type seedFormat struct {
	ID          string      `toml:"id" yaml:"id"`
	Name        string      `toml:"name" yaml:"name"`
	Description string      `toml:"description" yaml:"description"`
	Priority    int         `toml:"priority" yaml:"priority"`
	Patterns    []string    `toml:"patterns" yaml:"patterns"`
	Validate    string      `toml:"validate" yaml:"validate"`
	Fields      []seedField `toml:"fields" yaml:"fields"`
}

type seedField struct {
	Name        string   `toml:"name" yaml:"name"`
	Description string   `toml:"description" yaml:"description"`
	Type        string   `toml:"type" yaml:"type"`
	Optional    bool     `toml:"optional" yaml:"optional"`
	Enum        []string `toml:"enum" yaml:"enum"`
}

// LoadDefinitions reads format definitions from a TOML (.toml) or YAML
// (.yaml, .yml) file.
func LoadDefinitions(path string) (defs []Definition, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "failed to read from %s", path)
		return
	}
	defs, err = ParseDefinitions(data, filepath.Ext(path))
	err = errors.Wrapf(err, "failed to load formats from %s", path)
	return
}

// ParseDefinitions decodes definitions from data. syntax is a file
// extension or name: "toml", "yaml" or "yml", with or without a leading dot.
func ParseDefinitions(data []byte, syntax string) ([]Definition, error) {
	var doc seedDocument
	switch strings.ToLower(strings.TrimPrefix(syntax, ".")) {
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal toml")
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && err != io.EOF {
			return nil, errors.Wrapf(err, "failed to unmarshal yaml")
		}
	default:
		return nil, errors.Errorf("unsupported format file syntax %q", syntax)
	}

	defs := make([]Definition, 0, len(doc.Formats))
	for i, sf := range doc.Formats {
		def, err := sf.definition()
		if err != nil {
			return nil, errors.Wrapf(err, "format %d (%s)", i, sf.ID)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (sf seedFormat) definition() (Definition, error) {
	if strings.TrimSpace(sf.ID) == "" {
		return Definition{}, errors.New("id is required")
	}
	if len(sf.Patterns) == 0 {
		return Definition{}, errors.New("at least one pattern is required")
	}
	def := Definition{
		ID:          sf.ID,
		Name:        sf.Name,
		Description: sf.Description,
		Priority:    sf.Priority,
		Patterns:    sf.Patterns,
	}
	for _, f := range sf.Fields {
		typ := Type(strings.ToLower(strings.TrimSpace(f.Type)))
		if typ == "" {
			typ = TypeString
		}
		switch typ {
		case TypeString, TypeNumber, TypeDateTime, TypeDate, TypeTime, TypeDuration:
		default:
			return Definition{}, errors.Errorf("field %s: unknown type %q", f.Name, f.Type)
		}
		def.Fields = append(def.Fields, Field{
			Name:        f.Name,
			Description: f.Description,
			Type:        typ,
			Optional:    f.Optional,
			Enum:        f.Enum,
		})
	}
	if sf.Validate != "" {
		re, err := regexp.Compile(sf.Validate)
		if err != nil {
			return Definition{}, &PatternError{FormatID: sf.ID, Pattern: sf.Validate, Err: err}
		}
		def.Validate = PreviewValidator(re, DefaultPreviewLines)
	}
	return def, nil
}
