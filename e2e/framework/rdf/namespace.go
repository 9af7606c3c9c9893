package rdf

import (
	"sort"
	"strings"
)

const (
	XSDString     = "http://www.w3.org/2001/XMLSchema#string"
	RDFLangString = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
	RDFType       = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
)

// Namespace builds IRIs under a common base.
type Namespace string

// Get returns the IRI for a local name as a resource term.
func (ns Namespace) Get(local string) Term {
	return NewResource(string(ns) + local)
}

// IRI returns the IRI for a local name.
func (ns Namespace) IRI(local string) string {
	return string(ns) + local
}

// Namespaces used by catalog fixtures and test reports.
var Namespaces = map[string]Namespace{
	"dct":   "http://purl.org/dc/terms/",
	"rdf":   "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
	"owl":   "http://www.w3.org/2002/07/owl#",
	"xml":   "http://www.w3.org/XML/1998/namespace",
	"xsd":   "http://www.w3.org/2001/XMLSchema#",
	"rdfs":  "http://www.w3.org/2000/01/rdf-schema#",
	"vcard": "http://www.w3.org/2006/vcard/ns#",
	"dcat":  "http://www.w3.org/ns/dcat#",
	"dc":    "http://purl.org/dc/elements/1.1/",
	"foaf":  "http://xmlns.com/foaf/0.1/",
	"earl":  "http://www.w3.org/ns/earl#",
}

// NS returns a registered namespace, or an empty namespace when unknown.
func NS(prefix string) Namespace {
	return Namespaces[prefix]
}

// TurtlePrefixes renders the registered namespaces as Turtle @prefix lines,
// sorted by prefix.
func TurtlePrefixes() string {
	keys := make([]string, 0, len(Namespaces))
	for key := range Namespaces {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		b.WriteString("@prefix " + key + ": <" + string(Namespaces[key]) + "> .\n")
	}
	return b.String()
}
