package rdf

import (
	"mime"
	"path/filepath"
	"strings"

	krdf "github.com/knakk/rdf"
)

const (
	MimeTurtle   = "text/turtle"
	MimeNTriples = "application/n-triples"
	MimeRDFXML   = "application/rdf+xml"
)

var mimeParser = map[string]krdf.Format{
	MimeTurtle:              krdf.Turtle,
	"application/x-turtle":  krdf.Turtle,
	MimeNTriples:            krdf.NTriples,
	"text/plain":            krdf.NTriples,
	MimeRDFXML:              krdf.RDFXML,
	"application/xml":       krdf.RDFXML,
	"text/rdf+n3":           krdf.Turtle,
	"application/x-ntriple": krdf.NTriples,
}

var mimeSerializer = map[string]krdf.Format{
	MimeTurtle:   krdf.Turtle,
	MimeNTriples: krdf.NTriples,
}

var extMime = map[string]string{
	".ttl": MimeTurtle,
	".nt":  MimeNTriples,
	".rdf": MimeRDFXML,
	".owl": MimeRDFXML,
	".xml": MimeRDFXML,
}

// MediaType strips parameters and case from a content type, so
// "text/turtle; charset=utf-8" becomes "text/turtle".
func MediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		if i := strings.IndexByte(contentType, ';'); i >= 0 {
			contentType = contentType[:i]
		}
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// CanParse reports whether a content type has a registered parser.
func CanParse(contentType string) bool {
	_, ok := mimeParser[MediaType(contentType)]
	return ok
}

// CanSerialize reports whether a content type has a registered serializer.
func CanSerialize(contentType string) bool {
	_, ok := mimeSerializer[MediaType(contentType)]
	return ok
}

// MimeForPath guesses the RDF syntax of a file from its extension.
// Unknown extensions default to Turtle.
func MimeForPath(path string) string {
	if m, ok := extMime[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return MimeTurtle
}

// IsDocumentPath reports whether path has an RDF file extension.
func IsDocumentPath(path string) bool {
	_, ok := extMime[strings.ToLower(filepath.Ext(path))]
	return ok
}

// SameSyntax reports whether two content types are parsed as the same RDF
// syntax, so "application/x-turtle" matches "text/turtle".
func SameSyntax(a, b string) bool {
	fa, okA := mimeParser[MediaType(a)]
	fb, okB := mimeParser[MediaType(b)]
	return okA && okB && fa == fb
}
