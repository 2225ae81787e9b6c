// Package sitemap renders the storefront XML sitemaps.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/angelmondragon/smokeshop-backend/internal/products"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

const (
	xmlns = "http://www.sitemaps.org/schemas/sitemap/0.9"

	ProductsPath = "/server-sitemap-products.xml"
	BlogPath     = "/server-sitemap-blog.xml"
	IndexPath    = "/sitemap.xml"
)

type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

type URL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type Index struct {
	XMLName  xml.Name  `xml:"sitemapindex"`
	Xmlns    string    `xml:"xmlns,attr"`
	Sitemaps []Sitemap `xml:"sitemap"`
}

type Sitemap struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type productSource interface {
	ListSitemapEntries(ctx context.Context) ([]products.SitemapEntry, error)
}

type articleSource interface {
	ListPublishedSlugs(ctx context.Context, now time.Time) ([]models.BlogArticle, error)
}

// Builder assembles sitemaps rooted at the public storefront URL.
type Builder struct {
	products productSource
	articles articleSource
	baseURL  string
	now      func() time.Time
}

func NewBuilder(productRepo productSource, articles articleSource, baseURL string) (*Builder, error) {
	if productRepo == nil || articles == nil {
		return nil, fmt.Errorf("sitemap sources required")
	}
	return &Builder{products: productRepo, articles: articles, baseURL: baseURL, now: time.Now}, nil
}

// Products lists every non-archived product page.
func (b *Builder) Products(ctx context.Context) ([]byte, error) {
	entries, err := b.products.ListSitemapEntries(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list product slugs")
	}
	set := URLSet{Xmlns: xmlns, URLs: make([]URL, 0, len(entries))}
	for _, entry := range entries {
		set.URLs = append(set.URLs, URL{
			Loc:        b.baseURL + "/products/" + entry.Slug,
			LastMod:    formatDate(entry.UpdatedAt),
			ChangeFreq: "daily",
			Priority:   "0.8",
		})
	}
	return encode(set)
}

// Blog lists every published article.
func (b *Builder) Blog(ctx context.Context) ([]byte, error) {
	articles, err := b.articles.ListPublishedSlugs(ctx, b.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list article slugs")
	}
	set := URLSet{Xmlns: xmlns, URLs: make([]URL, 0, len(articles))}
	for _, article := range articles {
		set.URLs = append(set.URLs, URL{
			Loc:        b.baseURL + "/blog/" + article.Slug,
			LastMod:    formatDate(article.UpdatedAt),
			ChangeFreq: "weekly",
			Priority:   "0.6",
		})
	}
	return encode(set)
}

// Index points crawlers at the product and blog sitemaps.
func (b *Builder) Index(context.Context) ([]byte, error) {
	today := formatDate(b.now())
	return encode(Index{
		Xmlns: xmlns,
		Sitemaps: []Sitemap{
			{Loc: b.baseURL + ProductsPath, LastMod: today},
			{Loc: b.baseURL + BlogPath, LastMod: today},
		},
	})
}

func encode(v any) ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode sitemap")
	}
	return append([]byte(xml.Header), body...), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
