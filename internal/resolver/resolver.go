// Package resolver turns user-supplied source references (local paths or
// remote VCS URLs) into local directory roots. Resolution is first-match
// over a static ordered list of resolvers.
package resolver

import (
	"os"

	docerrors "github.com/unclecode/doc2talk/internal/errors"
)

// Resolver resolves one shape of source reference.
type Resolver interface {
	// Validate reports whether this resolver accepts the reference.
	Validate(ref string) bool

	// Resolve turns the reference into a local root directory.
	Resolve(ref string) (string, error)
}

// Local resolves references that are existing filesystem paths.
type Local struct{}

// Validate implements Resolver.
func (Local) Validate(ref string) bool {
	_, err := os.Stat(ref)
	return err == nil
}

// Resolve implements Resolver: a local path resolves to itself.
func (Local) Resolve(ref string) (string, error) {
	return ref, nil
}

// For resolves ref against the given resolvers in order and returns the
// first match, or UnresolvableReference when none accepts it.
func For(ref string, resolvers []Resolver) (Resolver, error) {
	for _, r := range resolvers {
		if r.Validate(ref) {
			return r, nil
		}
	}
	return nil, docerrors.UnresolvableReference(ref)
}
