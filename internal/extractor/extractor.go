package extractor

import (
	"fmt"
)

// FieldError records why one field of one page could not be extracted
type FieldError struct {
	URL   string
	Field Field
	Err   error
}

// Error formats the error-log line for this failure
func (e *FieldError) Error() string {
	return fmt.Sprintf("URL %s failed to parse the %s. %v", e.URL, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Product holds the five extracted fields of one page
type Product struct {
	SKU         Value
	Title       Value
	Description Value
	UPC         Value
	Images      Value
}

// DisplayTitle composes "<brand> <SKU> - <title>". It returns the raw
// title when brand is empty or either the SKU or the title is missing.
func (p *Product) DisplayTitle(brand string) string {
	if brand == "" || !p.SKU.Found || !p.Title.Found {
		return p.Title.Text
	}
	return fmt.Sprintf("%s %s - %s", brand, p.SKU.Text, p.Title.Text)
}

// ExtractField runs rule against doc. Any failure, including a panic inside
// the rule, is appended to errs and reported as NotFound; it never escapes.
func ExtractField(pageURL string, doc *Document, rule Rule, errs *[]FieldError) (v Value) {
	fail := func(err error) {
		*errs = append(*errs, FieldError{URL: pageURL, Field: rule.Field(), Err: err})
		v = NotFound
	}

	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("rule panicked: %v", r))
		}
	}()

	if doc == nil {
		fail(fmt.Errorf("no document: %w", ErrNotFound))
		return v
	}

	text, err := rule.Extract(doc)
	if err != nil {
		fail(err)
		return v
	}
	return Found(text)
}

// Extractor applies the template's rules to parsed pages
type Extractor struct {
	tmpl        *compiledTemplate
	sku         Rule
	title       Rule
	description Rule
	upc         Rule
	images      func(sku string) Rule
}

// New compiles tmpl and builds its rules
func New(tmpl Template) (*Extractor, error) {
	c, err := compileTemplate(tmpl)
	if err != nil {
		return nil, err
	}

	e := &Extractor{
		tmpl:        c,
		sku:         NewChain(FieldSKU, FirstText(c.sku)),
		title:       NewChain(FieldTitle, FirstText(c.title)),
		description: NewChain(FieldDescription, FirstText(c.descParagraph), ContainerText(c.descContainer)),
		upc:         NewChain(FieldUPC, MatchingText(c.upcCells, c.upcPattern)),
	}
	e.images = e.imageRule
	return e, nil
}

// MustNew is like New but panics if the template does not compile
func MustNew(tmpl Template) *Extractor {
	e, err := New(tmpl)
	if err != nil {
		panic(err)
	}
	return e
}

// imageRule builds the tiered image rule for one page. Tiers are tried
// most preferred first.
func (e *Extractor) imageRule(sku string) Rule {
	if sku == "" {
		return NewChain(FieldImages, failWith(ErrSKURequired))
	}

	strategies := make([]Strategy, 0, len(e.tmpl.ImageTiers))
	for _, tier := range e.tmpl.ImageTiers {
		strategies = append(strategies, ImageTier(e.tmpl.Images, e.tmpl.ImageMarker, tier, sku, e.tmpl.ImageSeparator))
	}
	return NewChain(FieldImages, strategies...)
}

// Extract runs every field rule against doc. The SKU goes first because the
// image rule filters on it.
func (e *Extractor) Extract(pageURL string, doc *Document) (*Product, []FieldError) {
	var errs []FieldError
	p := &Product{}

	p.SKU = ExtractField(pageURL, doc, e.sku, &errs)
	p.Title = ExtractField(pageURL, doc, e.title, &errs)
	p.Description = ExtractField(pageURL, doc, e.description, &errs)
	p.UPC = ExtractField(pageURL, doc, e.upc, &errs)
	p.Images = ExtractField(pageURL, doc, e.images(p.SKU.Text), &errs)

	return p, errs
}
