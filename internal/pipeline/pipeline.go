// Package pipeline tags the sentences of a batch of XML documents.
//
// Each document is parsed, projected through the configured filter chain,
// segmented, tagged in place and handed to an export.Writer. Documents run
// concurrently; a failing document is reported and the others continue.
package pipeline

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/antchfx/xmlquery"
	"golang.org/x/sync/errgroup"

	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/segment"
	"github.com/FocuswithJustin/standoff/core/standoff"
	"github.com/FocuswithJustin/standoff/core/viewexpr"
	"github.com/FocuswithJustin/standoff/core/xml"
	"github.com/FocuswithJustin/standoff/internal/config"
	"github.com/FocuswithJustin/standoff/internal/export"
	"github.com/FocuswithJustin/standoff/internal/loader"
	"github.com/FocuswithJustin/standoff/internal/logging"
)

// Pipeline runs one configuration over many documents.
type Pipeline struct {
	cfg    config.Config
	chain  viewexpr.Chain
	seg    segment.Segmenter
	writer *export.Writer
}

// New validates cfg. w may be nil when only Prepare and Tag are used.
func New(cfg config.Config, w *export.Writer) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	chain, err := viewexpr.Parse(cfg.View.Filters)
	if err != nil {
		return nil, err
	}
	seg, err := segment.New(cfg.Sentences.Segmenter)
	if err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, chain: chain, seg: seg, writer: w}, nil
}

// WriterOptions maps the output section of cfg onto export.Options.
func WriterOptions(cfg config.Config, version string) export.Options {
	o := cfg.Output
	return export.Options{
		Dir:       o.Dir,
		Pretty:    o.Pretty,
		Indent:    o.Indent,
		XZ:        o.XZ,
		JSONL:     o.JSONL,
		TableDump: o.TableDump,
		SQLite:    o.SQLite,
		CAS:       o.CAS,
		Manifest:  o.Manifest,
		Version:   version,
	}
}

// Prepared is a parsed document with its table and filtered view.
type Prepared struct {
	Source loader.Source
	Tree   *xml.Document
	Table  *standoff.Table
	View   *standoff.View
}

// Prepare parses src and applies the filter chain.
func (p *Pipeline) Prepare(ctx context.Context, src loader.Source) (*Prepared, error) {
	doc, err := src.Parse()
	if err != nil {
		return nil, err
	}
	tbl, err := standoff.Build(doc.Tree(), standoff.BuildOptions{
		StripComments: p.cfg.Input.StripComments,
		Namespaces:    p.cfg.Input.Namespaces,
		Markers: standoff.MarkerOptions{
			IDAttr:    p.cfg.Markers.IDAttr,
			LinkAttr:  p.cfg.Markers.LinkAttr,
			EndTag:    p.cfg.Markers.EndTag,
			EndSuffix: p.cfg.Markers.EndSuffix,
		},
	})
	if err != nil {
		return nil, err
	}
	view, err := p.chain.Apply(standoff.NewView(tbl))
	if err != nil {
		return nil, err
	}
	logging.DocumentLoaded(ctx, tbl.Len(), view.Len())
	return &Prepared{Source: src, Tree: doc, Table: tbl, View: view}, nil
}

// Tag segments the view text and inserts one element per sentence. The
// table is mutated; pr.View stays valid because Positions never move.
func (p *Pipeline) Tag(ctx context.Context, pr *Prepared) ([]export.Sentence, error) {
	text := pr.View.PlainText()
	found := p.seg.Segment(text)
	texts := segment.Texts(text, found)
	if len(found) == 0 {
		logging.WarnContext(ctx, "no_sentences", "visible", pr.View.Len())
	}

	spans := make([]standoff.Span, len(found))
	for i, s := range found {
		begin, end, err := pr.View.TranslateSpan(s.Start, s.End)
		if err != nil {
			return nil, errors.Wrapf(err, "sentence %d", i+1)
		}
		spans[i] = standoff.Span{
			Begin:  begin,
			End:    end,
			Tag:    p.cfg.Sentences.Tag,
			Depth:  p.cfg.Sentences.Depth,
			Attrib: p.cfg.Sentences.Attrib,
			ID:     p.cfg.Sentences.IDPrefix + strconv.Itoa(i+1),
		}
	}

	ins := standoff.NewInserter(pr.Table)
	ins.Widen = p.cfg.Sentences.Widen
	placements, err := ins.InsertAll(spans)
	if err != nil {
		return nil, err
	}

	sentences := make([]export.Sentence, len(placements))
	for i, pl := range placements {
		if pl.Kind != standoff.PlacedInline {
			reason := ""
			if pl.Cause != nil {
				reason = pl.Cause.Reason
			}
			logging.SpanFallback(ctx, pl.Span.ID, int(pl.Span.Begin), int(pl.Span.End), pl.Kind.String(), reason)
		}
		sentences[i] = export.Sentence{
			N:         i + 1,
			XMLID:     pl.Span.ID,
			Text:      texts[i],
			Placement: pl,
			Meta:      p.meta(pr.Table, pl.Span.Begin),
		}
	}
	return sentences, nil
}

// meta collects the configured fields from the elements enclosing pos.
func (p *Pipeline) meta(t *standoff.Table, pos standoff.Position) map[string]any {
	out := make(map[string]any, len(p.cfg.Meta))
	c, err := t.ContextAt(pos)
	if err != nil {
		return out
	}
	for _, f := range p.cfg.Meta {
		el := c.Nearest(t.Match(f.Element))
		if el == nil {
			continue
		}
		if v, ok := attrValue(el, f.Attr); ok {
			out[f.Name] = v
		}
	}
	return out
}

func attrValue(n *xmlquery.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if xml.AttrName(a.Name) == name {
			return a.Value, true
		}
	}
	return "", false
}

// Process runs one document through every stage and writes its outputs.
func (p *Pipeline) Process(ctx context.Context, src loader.Source) (export.DocumentEntry, error) {
	if p.writer == nil {
		return export.DocumentEntry{}, errors.NewValidation("writer", "pipeline has no output writer")
	}
	ctx = logging.WithDocument(ctx, src.Name)
	start := time.Now()

	pr, err := p.Prepare(ctx, src)
	if err != nil {
		logging.DocumentError(ctx, "load", err)
		return export.DocumentEntry{Name: src.Name}, err
	}
	sentences, err := p.Tag(ctx, pr)
	if err != nil {
		logging.DocumentError(ctx, "tag", err)
		return export.DocumentEntry{Name: src.Name}, err
	}
	entry, err := p.writer.Write(ctx, export.Document{
		Name:      src.Name,
		Base:      src.Base,
		Tree:      pr.Tree,
		Table:     pr.Table,
		Sentences: sentences,
	})
	if err != nil {
		logging.DocumentError(ctx, "write", err)
		return entry, err
	}
	logging.DocumentTagged(ctx, entry.Sentences, entry.Inline, entry.Widened, entry.Markers, time.Since(start))
	return entry, nil
}

// Result is the outcome of one document.
type Result struct {
	Name  string
	Entry export.DocumentEntry
	Err   error
}

// Run processes sources with at most cfg.Workers documents in flight and
// returns one Result per source, in input order. The returned error is set
// only when ctx is cancelled; document failures are reported in the results.
func (p *Pipeline) Run(ctx context.Context, sources []loader.Source) ([]Result, error) {
	results := make([]Result, len(sources))
	for i, src := range sources {
		results[i].Name = src.Name
	}
	if len(sources) == 0 {
		return results, nil
	}

	workers := p.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(workers, len(sources)))

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			// Each goroutine owns results[i].
			entry, err := p.Process(gctx, src)
			results[i].Entry = entry
			results[i].Err = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
