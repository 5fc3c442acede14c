// Command standoff tags sentences in XML documents without disturbing their
// markup. It also prints the filtered plain text of a document and lists its
// standoff table.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/FocuswithJustin/standoff/core/sqlite"
	"github.com/FocuswithJustin/standoff/core/standoff"
	"github.com/FocuswithJustin/standoff/internal/config"
	"github.com/FocuswithJustin/standoff/internal/export"
	"github.com/FocuswithJustin/standoff/internal/loader"
	"github.com/FocuswithJustin/standoff/internal/logging"
	"github.com/FocuswithJustin/standoff/internal/pipeline"
)

const version = "0.1.0"

// Globals holds the flags shared by every command.
type Globals struct {
	Config    string `name:"config" short:"c" help:"TOML configuration file" type:"existingfile"`
	LogLevel  string `name:"log-level" help:"Override log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Override log format (text, json)"`

	Stdout io.Writer `kong:"-"`
}

// CLI defines the command-line interface for standoff.
var CLI struct {
	Globals

	Tag     TagCmd     `cmd:"" help:"Tag sentences in XML documents"`
	Text    TextCmd    `cmd:"" help:"Print the filtered plain text of a document"`
	Inspect InspectCmd `cmd:"" help:"List the standoff table of a document"`
	Verify  VerifyCmd  `cmd:"" help:"Check a run's outputs against its manifest"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

func (g *Globals) out() io.Writer {
	if g.Stdout != nil {
		return g.Stdout
	}
	return os.Stdout
}

// load reads the configuration file, applies the logging flags and
// initializes the logger.
func (g *Globals) load() (config.Config, error) {
	cfg := config.Default()
	if g.Config != "" {
		var err error
		if cfg, err = config.Load(g.Config); err != nil {
			return cfg, err
		}
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return cfg, err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return cfg, err
	}
	logging.InitLogger(level, format)
	return cfg, nil
}

// ViewFlags override the filter chain.
type ViewFlags struct {
	Filters string `help:"Filter chain, replaces view.filters"`
	Raw     bool   `help:"Ignore the filter chain and use every Position"`
}

func (f ViewFlags) apply(cfg *config.Config) {
	switch {
	case f.Raw:
		cfg.View.Filters = ""
	case f.Filters != "":
		cfg.View.Filters = f.Filters
	}
}

// TagCmd tags every sentence of the input documents.
type TagCmd struct {
	ViewFlags

	Inputs    []string `arg:"" help:"XML files (.xml, .xml.xz, .xml.gz), tar bundles or directories" type:"existingpath"`
	Out       string   `short:"o" help:"Output directory" type:"path"`
	Pretty    bool     `help:"Pretty-print the tagged XML (elements holding text are kept as they are; others are re-indented)"`
	XZ        bool     `name:"xz" help:"Compress the tagged XML with xz"`
	SQLite    string   `name:"sqlite" help:"Also write sentences to this SQLite database" type:"path"`
	CAS       string   `name:"cas" help:"Also copy outputs into this content-addressed store" type:"path"`
	TableDump bool     `help:"Write a msgpack dump of each standoff table"`
	Segmenter string   `help:"Sentence segmenter (uax29, punct)"`
	Tag       string   `help:"Sentence element name"`
	NoWiden   bool     `help:"Fall back to markers without widening unbalanced spans"`
	Workers   int      `short:"j" help:"Documents processed in parallel"`
}

func (c *TagCmd) apply(cfg *config.Config) {
	c.ViewFlags.apply(cfg)
	if c.Out != "" {
		cfg.Output.Dir = c.Out
	}
	cfg.Output.Pretty = cfg.Output.Pretty || c.Pretty
	cfg.Output.XZ = cfg.Output.XZ || c.XZ
	cfg.Output.TableDump = cfg.Output.TableDump || c.TableDump
	if c.SQLite != "" {
		cfg.Output.SQLite = c.SQLite
	}
	if c.CAS != "" {
		cfg.Output.CAS = c.CAS
	}
	if c.Segmenter != "" {
		cfg.Sentences.Segmenter = c.Segmenter
	}
	if c.Tag != "" {
		cfg.Sentences.Tag = c.Tag
	}
	if c.NoWiden {
		cfg.Sentences.Widen = false
	}
	if c.Workers > 0 {
		cfg.Workers = c.Workers
	}
}

func (c *TagCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	c.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	sources, err := loader.Load(c.Inputs)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no XML documents found in %v", c.Inputs)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	w, err := export.NewWriter(ctx, pipeline.WriterOptions(cfg, version))
	if err != nil {
		return err
	}
	p, err := pipeline.New(cfg, w)
	if err != nil {
		_ = w.Close()
		return err
	}
	results, runErr := p.Run(ctx, sources)
	if err := w.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return runErr
	}

	failed := pipeline.Failed(results)
	out := g.out()
	fmt.Fprintf(out, "Tagged %d of %d documents into %s (run %s)\n",
		len(results)-len(failed), len(results), cfg.Output.Dir, w.RunID())
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		e := r.Entry
		fmt.Fprintf(out, "  %s: %d sentences (%d inline, %d widened, %d markers)\n",
			e.Name, e.Sentences, e.Inline, e.Widened, e.Markers)
	}
	if len(failed) > 0 {
		for _, r := range failed {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", r.Name, r.Err)
		}
		return fmt.Errorf("%d of %d documents failed", len(failed), len(results))
	}
	return nil
}

// prepare loads one input through the pipeline front end.
func prepare(g *Globals, input string, flags ViewFlags) ([]*pipeline.Prepared, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	flags.apply(&cfg)
	p, err := pipeline.New(cfg, nil)
	if err != nil {
		return nil, err
	}
	sources, err := loader.Open(input)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	prepared := make([]*pipeline.Prepared, 0, len(sources))
	for _, src := range sources {
		pr, err := p.Prepare(logging.WithDocument(ctx, src.Name), src)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, pr)
	}
	return prepared, nil
}

// TextCmd prints the plain text a run would segment.
type TextCmd struct {
	ViewFlags

	Input   string `arg:"" help:"XML document or bundle" type:"existingfile"`
	Offsets bool   `help:"Print one line per character: offset, Position and rune"`
}

func (c *TextCmd) Run(g *Globals) error {
	prepared, err := prepare(g, c.Input, c.ViewFlags)
	if err != nil {
		return err
	}
	out := g.out()
	for _, pr := range prepared {
		if len(prepared) > 1 {
			fmt.Fprintf(out, "== %s\n", pr.Source.Name)
		}
		if !c.Offsets {
			fmt.Fprintln(out, pr.View.PlainText())
			continue
		}
		for i, r := range []rune(pr.View.PlainText()) {
			pos, err := pr.View.TranslateOffset(i)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d\t%d\t%s\n", i, pos, strconv.QuoteRune(r))
		}
	}
	return nil
}

var (
	boundaryColor = color.New(color.FgCyan)
	commentColor  = color.New(color.FgHiBlack)
	visibleColor  = color.New(color.FgGreen, color.Bold)
)

// InspectCmd lists the collapsed standoff table.
type InspectCmd struct {
	ViewFlags

	Input string `arg:"" help:"XML document or bundle" type:"existingfile"`
	From  int    `help:"First Position to list"`
	To    int    `help:"Stop before this Position (0 lists to the end)"`
}

func (c *InspectCmd) Run(g *Globals) error {
	prepared, err := prepare(g, c.Input, c.ViewFlags)
	if err != nil {
		return err
	}
	out := g.out()
	for _, pr := range prepared {
		fmt.Fprintf(out, "== %s: %d positions, %d visible\n", pr.Source.Name, pr.Table.Len(), pr.View.Len())
		visible := make(map[standoff.Position]bool, pr.View.Len())
		for _, p := range pr.View.Positions() {
			visible[p] = true
		}

		units := pr.Table.CollapsedView()
		end := len(units)
		if c.To > 0 && c.To < end {
			end = c.To
		}
		for i := max(c.From, 0); i < end; i++ {
			fmt.Fprintln(out, inspectLine(units[i], visible[units[i].Position]))
		}
	}
	return nil
}

func inspectLine(u standoff.Context, visible bool) string {
	kind := fmt.Sprintf("%-5s", u.Kind)
	char := ""
	if u.HasChar() {
		char = strconv.QuoteRune(u.Char)
	}
	char = fmt.Sprintf("%-8s", char)

	switch {
	case !u.HasChar():
		kind = boundaryColor.Sprint(kind)
	case u.Comment:
		char = commentColor.Sprint(char)
	case visible:
		char = visibleColor.Sprint(char)
	}
	mark := " "
	if visible {
		mark = "*"
	}
	return fmt.Sprintf("%6d %s %s %s %s", u.Position, mark, kind, char, u.Path())
}

// VerifyCmd re-hashes the outputs listed in a manifest.
type VerifyCmd struct {
	Dir    string `arg:"" help:"Output directory holding manifest.json" type:"existingdir"`
	CAS    string `name:"cas" help:"Also check blobs in this content-addressed store" type:"existingdir"`
	SQLite string `name:"sqlite" help:"Also check sentence counts in this SQLite database" type:"existingfile"`
}

func (c *VerifyCmd) Run(g *Globals) error {
	if _, err := g.load(); err != nil {
		return err
	}
	m, problems, err := export.Verify(context.Background(), c.Dir,
		export.VerifyOptions{CAS: c.CAS, SQLite: c.SQLite})
	if err != nil {
		return err
	}
	outputs := 0
	for _, d := range m.Documents {
		outputs += len(d.Outputs)
	}
	fmt.Fprintf(g.out(), "Checked %d outputs of %d documents in %s (run %s)\n",
		outputs, len(m.Documents), c.Dir, m.RunID)
	for _, p := range problems {
		fmt.Fprintf(os.Stderr, "  %s\n", p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d problems found", len(problems))
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Fprintf(g.out(), "standoff version %s\nsqlite driver: %s\n", version, sqlite.GetInfo())
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("standoff"),
		kong.Description("Sentence tagging for XML documents via a standoff character table"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&CLI.Globals)
	ctx.FatalIfErrorf(err)
}
