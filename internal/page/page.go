package page

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

var (
	// ErrMisaligned is returned by [Page.Discover] when the four selections
	// do not have the same number of elements.
	ErrMisaligned = errors.New("job selectors are misaligned")

	// ErrNoPage is returned by [Holder.Render] before any page was set.
	ErrNoPage = errors.New("no page loaded")
)

// Selectors are the CSS selectors used to find the elements of each job.
type Selectors struct {
	// Starting selects the job markers carrying the job id attribute.
	Starting string

	// ProgressBar selects the elements whose width reflects progress.
	ProgressBar string

	// Indicator selects the elements showing the percentage text.
	Indicator string

	// StatusLabel selects the elements showing the status text.
	StatusLabel string
}

// DefaultSelectors returns the standard statusbar class selectors.
func DefaultSelectors() Selectors {
	return Selectors{
		Starting:    ".starting",
		ProgressBar: ".progressbar",
		Indicator:   ".progressbar-indicator",
		StatusLabel: ".statuslabel",
	}
}

// Validate checks that every selector is set and compiles.
func (s Selectors) Validate() error {
	for _, f := range []struct {
		name, value string
	}{
		{"starting", s.Starting},
		{"progressbar", s.ProgressBar},
		{"indicator", s.Indicator},
		{"status_label", s.StatusLabel},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("selector %s cannot be empty", f.name)
		}
		if _, err := cascadia.Compile(f.value); err != nil {
			return fmt.Errorf("selector %s: invalid CSS selector %q: %w", f.name, f.value, err)
		}
	}
	return nil
}

// Job is one discovered job and its currently displayed indicator values.
type Job struct {
	// Index is the position shared by the four element sequences.
	Index int

	// ID is the value of the id attribute on the starting marker.
	ID string

	// Width is the progress bar's current CSS width, or "" if unset.
	Width string

	// Label is the indicator's current text.
	Label string

	// Status is the status label's current text.
	Status string
}

// Indicators is the new display state written by [Page.Apply].
type Indicators struct {
	Width  string
	Label  string
	Status *string // nil leaves the status label unchanged
}

// Page is a parsed HTML document holding tracked jobs.
type Page struct {
	mu         sync.RWMutex
	doc        *goquery.Document
	bars       *goquery.Selection
	indicators *goquery.Selection
	labels     *goquery.Selection
	jobs       int
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return &Page{doc: doc}, nil
}

// Load fetches HTML from src and parses it.
func Load(ctx context.Context, src Source) (*Page, error) {
	rc, err := src(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}
	defer func() { _ = rc.Close() }()
	return Parse(rc)
}

// Discover selects the job elements and pairs them by index.
//
// An empty starting selection yields no jobs and no error, regardless of the
// other selections. Otherwise all four selections must have the same length,
// and every starting marker must carry attrName.
func (p *Page) Discover(sel Selectors, attrName string) ([]Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	starting := p.doc.Find(sel.Starting)
	if starting.Length() == 0 {
		p.jobs = 0
		return nil, nil
	}

	bars := p.doc.Find(sel.ProgressBar)
	indicators := p.doc.Find(sel.Indicator)
	labels := p.doc.Find(sel.StatusLabel)

	n := starting.Length()
	if bars.Length() != n || indicators.Length() != n || labels.Length() != n {
		return nil, fmt.Errorf("%w: %d starting, %d progressbar, %d indicator, %d status label",
			ErrMisaligned, n, bars.Length(), indicators.Length(), labels.Length())
	}

	jobs := make([]Job, 0, n)
	var attrErr error
	starting.EachWithBreak(func(i int, s *goquery.Selection) bool {
		id, ok := s.Attr(attrName)
		if !ok {
			attrErr = fmt.Errorf("job %d: starting element has no %q attribute", i, attrName)
			return false
		}
		bar := bars.Eq(i)
		style, _ := bar.Attr("style")
		jobs = append(jobs, Job{
			Index:  i,
			ID:     id,
			Width:  styleProperty(style, "width"),
			Label:  indicators.Eq(i).Text(),
			Status: labels.Eq(i).Text(),
		})
		return true
	})
	if attrErr != nil {
		return nil, attrErr
	}

	p.bars = bars
	p.indicators = indicators
	p.labels = labels
	p.jobs = n
	return jobs, nil
}

// Apply writes new indicator values for the job at index.
func (p *Page) Apply(index int, ind Indicators) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= p.jobs {
		return fmt.Errorf("job index %d out of range (%d jobs)", index, p.jobs)
	}

	bar := p.bars.Eq(index)
	style, _ := bar.Attr("style")
	bar.SetAttr("style", setStyleProperty(style, "width", ind.Width))

	p.indicators.Eq(index).SetText(ind.Label)
	if ind.Status != nil {
		p.labels.Eq(index).SetText(*ind.Status)
	}
	return nil
}

// InjectClient appends a script tag loading src to the document head.
// attrs become attributes of the tag, in sorted key order.
func (p *Page) InjectClient(src string, attrs map[string]string) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<script src="`)
	b.WriteString(html.EscapeString(src))
	b.WriteString(`"`)
	for _, k := range keys {
		fmt.Fprintf(&b, ` %s="%s"`, k, html.EscapeString(attrs[k]))
	}
	b.WriteString(` defer></script>`)

	p.mu.Lock()
	defer p.mu.Unlock()

	target := p.doc.Find("head")
	if target.Length() == 0 {
		target = p.doc.Find("body")
	}
	target.First().AppendHtml(b.String())
}

// Render serializes the current document.
func (p *Page) Render() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out, err := p.doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render page: %w", err)
	}
	return out, nil
}

// Holder holds the page currently being served.
type Holder struct {
	current atomic.Pointer[Page]
}

// Set replaces the current page.
func (h *Holder) Set(p *Page) {
	h.current.Store(p)
}

// Page returns the current page, or nil before the first Set.
func (h *Holder) Page() *Page {
	return h.current.Load()
}

// Render serializes the current page. Returns [ErrNoPage] if none is set.
func (h *Holder) Render() (string, error) {
	p := h.current.Load()
	if p == nil {
		return "", ErrNoPage
	}
	return p.Render()
}

// styleProperty returns the value of prop in an inline style attribute.
func styleProperty(style, prop string) string {
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), prop) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// setStyleProperty sets prop in an inline style attribute, keeping the
// other declarations in order.
func setStyleProperty(style, prop, value string) string {
	decls := strings.Split(style, ";")
	out := make([]string, 0, len(decls)+1)
	replaced := false

	for _, decl := range decls {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		name, _, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), prop) {
			if !replaced {
				out = append(out, prop+": "+value)
				replaced = true
			}
			continue
		}
		out = append(out, decl)
	}
	if !replaced {
		out = append(out, prop+": "+value)
	}

	return strings.Join(out, "; ") + ";"
}
