// Package viewexpr parses filter chains such as
//
//	exclude_outside("tei:div1") | exclude_inside("tei:note") | remove_comments | shrink_whitespace
//
// and applies them to a standoff.View.
package viewexpr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/standoff"
)

// Filter names.
const (
	ExcludeOutside   = "exclude_outside"
	ExcludeInside    = "exclude_inside"
	ExcludeXPath     = "exclude_xpath"
	RemoveComments   = "remove_comments"
	ShrinkWhitespace = "shrink_whitespace"
)

// takesArg records whether each filter needs its string argument.
var takesArg = map[string]bool{
	ExcludeOutside:   true,
	ExcludeInside:    true,
	ExcludeXPath:     true,
	RemoveComments:   false,
	ShrinkWhitespace: false,
}

//nolint:govet // participle grammar tags are not standard struct tags
type chainGrammar struct {
	Steps []*stepGrammar `parser:"@@ ( \"|\" @@ )*"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type stepGrammar struct {
	Pos  lexer.Position
	Name string  `parser:"@Ident"`
	Arg  *string `parser:"( \"(\" @String \")\" )?"`
}

var chainLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[a-z_]+`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Punct", Pattern: `[|()]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var chainParser = participle.MustBuild[chainGrammar](
	participle.Lexer(chainLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
)

// Filter is one step of a chain.
type Filter struct {
	Name string
	Arg  string
}

func (f Filter) String() string {
	if !takesArg[f.Name] {
		return f.Name
	}
	return f.Name + "(" + strconv.Quote(f.Arg) + ")"
}

// Chain is an ordered list of filters.
type Chain []Filter

// Parse parses a filter chain. An empty or blank expression yields an empty
// chain, which leaves a View untouched.
func Parse(expr string) (Chain, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	parsed, err := chainParser.ParseString("", expr)
	if err != nil {
		return nil, &errors.ParseError{Format: "filter chain", Message: err.Error(), Err: err}
	}

	chain := make(Chain, 0, len(parsed.Steps))
	for _, s := range parsed.Steps {
		needsArg, known := takesArg[s.Name]
		switch {
		case !known:
			return nil, &errors.ParseError{
				Format:  "filter chain",
				Message: fmt.Sprintf("%s: unknown filter %q", s.Pos, s.Name),
			}
		case needsArg && s.Arg == nil:
			return nil, &errors.ParseError{
				Format:  "filter chain",
				Message: fmt.Sprintf("%s: %s needs an argument", s.Pos, s.Name),
			}
		case !needsArg && s.Arg != nil:
			return nil, &errors.ParseError{
				Format:  "filter chain",
				Message: fmt.Sprintf("%s: %s takes no argument", s.Pos, s.Name),
			}
		}
		f := Filter{Name: s.Name}
		if s.Arg != nil {
			f.Arg = *s.Arg
		}
		chain = append(chain, f)
	}
	return chain, nil
}

// Apply runs the chain against v in order.
func (c Chain) Apply(v *standoff.View) (*standoff.View, error) {
	for _, f := range c {
		switch f.Name {
		case ExcludeOutside:
			v = v.ExcludeOutside(f.Arg)
		case ExcludeInside:
			v = v.ExcludeInside(f.Arg)
		case ExcludeXPath:
			var err error
			if v, err = v.ExcludeOutsideXPath(f.Arg); err != nil {
				return v, errors.Wrap(err, f.String())
			}
		case RemoveComments:
			v = v.RemoveComments()
		case ShrinkWhitespace:
			v = v.ShrinkWhitespace()
		default:
			return v, errors.NewUnsupported("filter "+f.Name, "not a view filter")
		}
	}
	return v, nil
}

// String renders the chain in the syntax accepted by Parse.
func (c Chain) String() string {
	parts := make([]string, len(c))
	for i, f := range c {
		parts[i] = f.String()
	}
	return strings.Join(parts, " | ")
}
