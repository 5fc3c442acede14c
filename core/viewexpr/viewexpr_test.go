package viewexpr

import (
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/standoff"
)

func TestParse(t *testing.T) {
	tests := []struct {
		expr string
		want Chain
	}{
		{"", nil},
		{"   ", nil},
		{"shrink_whitespace", Chain{{Name: ShrinkWhitespace}}},
		{
			`exclude_outside("tei:div1") | remove_comments | shrink_whitespace`,
			Chain{{Name: ExcludeOutside, Arg: "tei:div1"}, {Name: RemoveComments}, {Name: ShrinkWhitespace}},
		},
		{
			`exclude_xpath("//p[@n=\"2\"]")|exclude_inside( "note" )`,
			Chain{{Name: ExcludeXPath, Arg: `//p[@n="2"]`}, {Name: ExcludeInside, Arg: "note"}},
		},
	}
	for _, tt := range tests {
		got, err := Parse(tt.expr)
		if err != nil {
			t.Errorf("Parse(%q) error = %v", tt.expr, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.expr, diff)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
		msg  string
	}{
		{"unknown filter", `lowercase`, "unknown filter"},
		{"missing argument", `exclude_outside`, "needs an argument"},
		{"unexpected argument", `remove_comments("x")`, "takes no argument"},
		{"dangling pipe", `remove_comments |`, ""},
		{"unquoted argument", `exclude_outside(div1)`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.expr)
			var perr *errors.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse(%q) error = %v, want ParseError", tt.expr, err)
			}
			if !strings.Contains(perr.Error(), tt.msg) {
				t.Errorf("error %q does not mention %q", perr.Error(), tt.msg)
			}
		})
	}
}

func mustParse(t *testing.T, expr string) Chain {
	t.Helper()
	c, err := Parse(expr)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", expr, err)
	}
	return c
}

func TestStringRoundTrip(t *testing.T) {
	expr := `exclude_outside("tei:div1") | exclude_inside("note") | remove_comments | shrink_whitespace`
	c := mustParse(t, expr)
	if c.String() != expr {
		t.Errorf("String() = %q, want %q", c.String(), expr)
	}
}

func TestApply(t *testing.T) {
	doc, err := xmlquery.Parse(strings.NewReader(
		`<r>head <div1 n="1">Alpha   beta<!--x--><note>skip</note></div1> tail</r>`))
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := standoff.Build(doc, standoff.BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		expr string
		want string
	}{
		{"", "head Alpha   betaxskip tail"},
		{`exclude_outside("div1")`, "Alpha   betaxskip"},
		{`exclude_outside("div1") | exclude_inside("note") | remove_comments | shrink_whitespace`, "Alpha beta"},
		{`exclude_xpath("//div1[@n='1']") | remove_comments`, "Alpha   betaskip"},
	}
	for _, tt := range tests {
		v, err := mustParse(t, tt.expr).Apply(standoff.NewView(tbl))
		if err != nil {
			t.Errorf("Apply(%q) error = %v", tt.expr, err)
			continue
		}
		if got := v.PlainText(); got != tt.want {
			t.Errorf("Apply(%q) = %q, want %q", tt.expr, got, tt.want)
		}
	}

	if _, err := mustParse(t, `exclude_xpath("//[")`).Apply(standoff.NewView(tbl)); err == nil {
		t.Error("Apply() with a broken XPath succeeded")
	}
}
