// Package config loads the TOML configuration of a tagging run.
package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/segment"
	"github.com/FocuswithJustin/standoff/core/viewexpr"
	"github.com/FocuswithJustin/standoff/internal/logging"
)

// TEINamespace is the TEI P5 namespace URI.
const TEINamespace = "http://www.tei-c.org/ns/1.0"

// Config is the full run configuration.
type Config struct {
	Log       LogConfig      `toml:"log"`
	Input     InputConfig    `toml:"input"`
	View      ViewConfig     `toml:"view"`
	Sentences SentenceConfig `toml:"sentences"`
	Markers   MarkerConfig   `toml:"markers"`
	Meta      []MetaField    `toml:"meta"`
	Output    OutputConfig   `toml:"output"`
	Workers   int            `toml:"workers"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// InputConfig controls parsing and table building.
type InputConfig struct {
	// Namespaces adds prefix → URI bindings to the ones the document declares.
	Namespaces    map[string]string `toml:"namespaces"`
	StripComments bool              `toml:"strip_comments"`
}

// ViewConfig holds the filter chain applied before segmentation.
type ViewConfig struct {
	Filters string `toml:"filters"`
}

// SentenceConfig controls how sentences become markup.
type SentenceConfig struct {
	Tag       string            `toml:"tag"`
	IDPrefix  string            `toml:"id_prefix"`
	Depth     int               `toml:"depth"` // -1 for innermost
	Segmenter string            `toml:"segmenter"`
	Widen     bool              `toml:"widen"`
	Attrib    map[string]string `toml:"attributes"`
}

// MarkerConfig names the marker-pair vocabulary.
type MarkerConfig struct {
	IDAttr    string `toml:"id_attr"`
	LinkAttr  string `toml:"link_attr"`
	EndTag    string `toml:"end_tag"`
	EndSuffix string `toml:"end_suffix"`
}

// MetaField copies an attribute of the nearest enclosing Element into the
// meta object of each exported sentence.
type MetaField struct {
	Name    string `toml:"name"`
	Element string `toml:"element"`
	Attr    string `toml:"attr"`
}

// OutputConfig selects the outputs written per document.
type OutputConfig struct {
	Dir       string `toml:"dir"`
	Pretty    bool   `toml:"pretty"`
	Indent    string `toml:"indent"`
	XZ        bool   `toml:"xz"`
	JSONL     bool   `toml:"jsonl"`
	SQLite    string `toml:"sqlite"`
	TableDump bool   `toml:"table_dump"`
	CAS       string `toml:"cas"`
	Manifest  bool   `toml:"manifest"`
}

// Default returns the configuration used when no file is given: TEI input,
// sentences inside div1 tagged as tei:s.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Input: InputConfig{
			Namespaces: map[string]string{"tei": TEINamespace},
		},
		View: ViewConfig{
			Filters: `exclude_outside("tei:div1") | remove_comments | shrink_whitespace`,
		},
		Sentences: SentenceConfig{
			Tag:       "tei:s",
			IDPrefix:  "s",
			Depth:     -1,
			Segmenter: "uax29",
			Widen:     true,
		},
		Meta: []MetaField{
			{Name: "chapter", Element: "tei:div1", Attr: "n"},
		},
		Output: OutputConfig{
			Dir:      "out",
			Indent:   "  ",
			JSONL:    true,
			Manifest: true,
		},
		Workers: 4,
	}
}

// Load reads path over the defaults. Keys the file sets replace the default
// values; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, &errors.ParseError{Format: "TOML", Path: path, Message: err.Error(), Err: err}
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, errors.NewParse("TOML", path, "unknown keys: "+strings.Join(keys, ", "))
	}
	return cfg, nil
}

var ncName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)

// Validate checks the configuration before any document is touched.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.NewValidation("log.level", err.Error())
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return errors.NewValidation("log.format", err.Error())
	}
	if _, err := viewexpr.Parse(c.View.Filters); err != nil {
		return &errors.ValidationError{Field: "view.filters", Value: c.View.Filters, Message: err.Error(), Err: err}
	}
	if c.Sentences.Tag == "" {
		return errors.NewValidation("sentences.tag", "must not be empty")
	}
	if !ncName.MatchString(c.Sentences.IDPrefix) {
		return &errors.ValidationError{
			Field:   "sentences.id_prefix",
			Value:   c.Sentences.IDPrefix,
			Message: "must start an XML name (letter or underscore)",
		}
	}
	if c.Sentences.Depth < -1 {
		return errors.NewValidation("sentences.depth", fmt.Sprintf("%d is below -1", c.Sentences.Depth))
	}
	if _, err := segment.New(c.Sentences.Segmenter); err != nil {
		return &errors.ValidationError{Field: "sentences.segmenter", Value: c.Sentences.Segmenter, Message: err.Error(), Err: err}
	}
	for i, m := range c.Meta {
		if m.Name == "" || m.Element == "" || m.Attr == "" {
			return errors.NewValidation(fmt.Sprintf("meta[%d]", i), "name, element and attr are required")
		}
		if m.Name == "sentenceId" || m.Name == "xmlId" || m.Name == "markers" {
			return errors.NewValidation(fmt.Sprintf("meta[%d].name", i), fmt.Sprintf("%q is reserved", m.Name))
		}
	}
	if c.Output.Dir == "" {
		return errors.NewValidation("output.dir", "must not be empty")
	}
	if c.Workers < 0 {
		return errors.NewValidation("workers", "must not be negative")
	}
	return nil
}
