package extractor

import (
	"fmt"
	"regexp"

	"github.com/antchfx/xpath"
)

// Template describes where each field lives on the product page.
// XPath expressions are evaluated with htmlquery; Images is a CSS selector.
type Template struct {
	SKU                  string
	Title                string
	DescriptionParagraph string
	DescriptionContainer string
	UPCCells             string
	UPCPattern           string

	Images         string
	ImageMarker    string   // Substring every product image URL carries
	ImageTiers     []string // Size keywords, most preferred first
	ImageSeparator string
}

// DefaultTemplate returns the selectors for the storefront's product page
func DefaultTemplate() Template {
	container := `//*[@id="productPage"]/div[1]/div/div[2]/div[2]/div[2]`
	return Template{
		SKU:                  `//span[@class="value"]/text()`,
		Title:                `//h1[@class="font-product-title"]/text()`,
		DescriptionParagraph: container + `/p/text()`,
		DescriptionContainer: container,
		UPCCells:             `//td[@class="value"]/text()`,
		UPCPattern:           `\d{12}`,

		Images:         "img[src]",
		ImageMarker:    "product",
		ImageTiers:     []string{"large", "medium", "small"},
		ImageSeparator: ",",
	}
}

type compiledTemplate struct {
	Template
	sku           *xpath.Expr
	title         *xpath.Expr
	descParagraph *xpath.Expr
	descContainer *xpath.Expr
	upcCells      *xpath.Expr
	upcPattern    *regexp.Regexp
}

func compileTemplate(t Template) (*compiledTemplate, error) {
	c := &compiledTemplate{Template: t}

	exprs := []struct {
		name string
		src  string
		dst  **xpath.Expr
	}{
		{"sku", t.SKU, &c.sku},
		{"title", t.Title, &c.title},
		{"description paragraph", t.DescriptionParagraph, &c.descParagraph},
		{"description container", t.DescriptionContainer, &c.descContainer},
		{"upc cells", t.UPCCells, &c.upcCells},
	}
	for _, e := range exprs {
		expr, err := xpath.Compile(e.src)
		if err != nil {
			return nil, fmt.Errorf("invalid %s selector %q: %w", e.name, e.src, err)
		}
		*e.dst = expr
	}

	re, err := regexp.Compile(t.UPCPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid upc pattern %q: %w", t.UPCPattern, err)
	}
	c.upcPattern = re

	if len(t.ImageTiers) == 0 {
		return nil, fmt.Errorf("at least one image tier is required")
	}

	return c, nil
}
