package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/taoharvest/taoharvest/internal/types"
)

// StaticPage implements Page over parsed static markup. It backs
// offline re-extraction from saved raw HTML and the test suites; no
// browser process is involved, so waits return immediately.
type StaticPage struct {
	doc     *goquery.Document
	html    string
	title   string
	current string

	// Site maps URLs to markup for Navigate. A single-document page
	// leaves it nil and rejects navigation.
	Site map[string]string

	// ScrollStates holds successive page states revealed by each
	// ScrollToBottom call, simulating lazy-loaded listings. When
	// exhausted, further scrolls leave the page unchanged.
	ScrollStates []string

	// OnClick, when set, is invoked with the clicked element's text
	// and may return replacement markup for the whole page (a style
	// selection swapping the size panel, for instance).
	OnClick func(text string) (string, bool)
}

// NewStaticPage parses markup into a ready-to-query page.
func NewStaticPage(html string) (*StaticPage, error) {
	p := &StaticPage{}
	if err := p.load(html); err != nil {
		return nil, err
	}
	return p, nil
}

// NewStaticSite builds a multi-URL page; Navigate switches documents.
func NewStaticSite(pages map[string]string) *StaticPage {
	return &StaticPage{Site: pages}
}

func (p *StaticPage) load(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse static page: %w", err)
	}
	p.doc = doc
	p.html = html
	p.title = strings.TrimSpace(doc.Find("title").First().Text())
	return nil
}

func (p *StaticPage) Navigate(_ context.Context, url string) error {
	if p.Site == nil {
		return fmt.Errorf("navigate %s: static page has no site", url)
	}
	html, ok := p.Site[url]
	if !ok {
		return fmt.Errorf("navigate %s: %w", url, types.ErrElementNotFound)
	}
	p.current = url
	return p.load(html)
}

func (p *StaticPage) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	if p.doc == nil || p.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("wait for %q: %w", selector, types.ErrElementNotFound)
	}
	return nil
}

func (p *StaticPage) WaitStable(context.Context) error { return nil }

func (p *StaticPage) ScrollToBottom(context.Context) error {
	if len(p.ScrollStates) == 0 {
		return nil
	}
	next := p.ScrollStates[0]
	p.ScrollStates = p.ScrollStates[1:]
	return p.load(next)
}

func (p *StaticPage) ScrollHeight(context.Context) (int, error) {
	return len(p.html), nil
}

func (p *StaticPage) Find(selector string) (Element, error) {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("find %q: %w", selector, types.ErrElementNotFound)
	}
	return &staticElement{page: p, sel: sel}, nil
}

func (p *StaticPage) FindAll(selector string) ([]Element, error) {
	var out []Element
	p.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, &staticElement{page: p, sel: sel})
	})
	return out, nil
}

func (p *StaticPage) HTML() (string, error) { return p.html, nil }

func (p *StaticPage) Title() (string, error) { return p.title, nil }

type staticElement struct {
	page *StaticPage
	sel  *goquery.Selection
}

func (e *staticElement) Find(selector string) (Element, error) {
	sel := e.sel.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("find %q: %w", selector, types.ErrElementNotFound)
	}
	return &staticElement{page: e.page, sel: sel}, nil
}

func (e *staticElement) FindAll(selector string) ([]Element, error) {
	var out []Element
	e.sel.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, &staticElement{page: e.page, sel: sel})
	})
	return out, nil
}

func (e *staticElement) HTML() (string, error) {
	return goquery.OuterHtml(e.sel)
}

func (e *staticElement) Text() (string, error) {
	return e.sel.Text(), nil
}

func (e *staticElement) Attr(name string) (string, error) {
	val, _ := e.sel.Attr(name)
	return val, nil
}

func (e *staticElement) Click(context.Context) error {
	if e.page.OnClick == nil {
		return nil
	}
	text, _ := e.Text()
	if html, ok := e.page.OnClick(strings.TrimSpace(text)); ok {
		return e.page.load(html)
	}
	return nil
}
