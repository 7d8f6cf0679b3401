package target

import (
	"strings"

	"golang.org/x/text/cases"
)

// Separator divides the namespace from the target portion of a key.
const Separator = ":"

// DefaultNamespace is used when a store is not given a namespace.
const DefaultNamespace = "git"

// Namer derives the storage key for a target within a namespace. Keys produced
// by a Namer are compared exactly, so implementations must normalize case.
type Namer func(t Target, namespace string) string

// DefaultNamer produces keys of the form
//
//	namespace:scheme://host[:port][/path]
//
// case-folded so that "HTTPS://Example.com" and "https://example.com" collide.
// Default ports and surrounding path slashes are dropped.
func DefaultNamer(t Target, namespace string) string {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		ns = DefaultNamespace
	}

	var b strings.Builder
	b.WriteString(ns)
	b.WriteString(Separator)
	b.WriteString(t.Scheme)
	b.WriteString("://")
	b.WriteString(t.Authority())

	if path := strings.Trim(t.Path, "/"); path != "" {
		b.WriteString("/")
		b.WriteString(path)
	}

	// a Caser holds state, so one is created per call
	return cases.Fold().String(b.String())
}

// Key derives the key for t using DefaultNamer.
func (t Target) Key(namespace string) string {
	return DefaultNamer(t, namespace)
}
