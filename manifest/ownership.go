package manifest

import "strings"

// Matcher decides whether a wallet is a declared owner of a manifest.
type Matcher struct {
	// defaultOwner stands in for manifests that declare no owner at all
	defaultOwner string
}

// NewMatcher create an ownership matcher with the configured default owner identity
func NewMatcher(defaultOwner string) *Matcher {
	return &Matcher{
		defaultOwner: normalizeOwner(defaultOwner),
	}
}

// IsOwner reports whether wallet is in owner ∪ owners. When neither field is
// declared only the default owner matches.
func (m *Matcher) IsOwner(wallet string, doc *Manifest) bool {
	wallet = normalizeOwner(wallet)
	if wallet == "" || doc == nil {
		return false
	}

	if !doc.OwnerDeclared {
		return m.defaultOwner != "" && wallet == m.defaultOwner
	}

	_, ok := OwnerSet(doc)[wallet]
	return ok
}

// OwnerSet flattens owner and owners into a normalized set.
func OwnerSet(doc *Manifest) map[string]struct{} {
	set := make(map[string]struct{}, len(doc.Owner)+len(doc.Owners))
	for _, list := range [][]string{doc.Owner, doc.Owners} {
		for _, o := range list {
			if o = normalizeOwner(o); o != "" {
				set[o] = struct{}{}
			}
		}
	}
	return set
}

func normalizeOwner(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
