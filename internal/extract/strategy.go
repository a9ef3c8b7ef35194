// Package extract recovers mod metadata from workshop markup.
//
// Every field has an ordered list of strategies. The first strategy that
// yields a value wins; values are never merged across strategies.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a page parsed once and shared by all strategies.
type Document struct {
	Raw string
	DOM *goquery.Document
}

// Parse builds a Document. Unparseable input yields an empty DOM so that
// raw-markup strategies still run.
func Parse(html string) *Document {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		dom, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	return &Document{Raw: html, DOM: dom}
}

// Strategy extracts one field. Fn reports false when it found nothing.
type Strategy[T any] struct {
	Name string
	Fn   func(doc *Document) (T, bool)
}

// First runs strategies in order and returns the first success and its name.
func First[T any](doc *Document, strategies []Strategy[T]) (T, string, bool) {
	for _, s := range strategies {
		if v, ok := s.Fn(doc); ok {
			return v, s.Name, true
		}
	}
	var zero T
	return zero, "", false
}
