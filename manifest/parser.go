package manifest

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// ErrInvalidManifest body is not a JSON object
var ErrInvalidManifest = errors.New("invalid manifest")

// nested metadata containers used by published mini app manifests
var nestedKeys = []string{"miniapp", "frame"}

// Parse leniently decodes a manifest document. Unknown fields are ignored,
// owner/owners accept a string or an array of strings.
func Parse(body []byte) (*Manifest, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidManifest
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, ErrInvalidManifest
	}

	m := &Manifest{
		Name:        firstString(doc, "name"),
		Description: firstString(doc, "description"),
		Icon:        firstString(doc, "icon", "iconUrl"),
		Category:    firstString(doc, "category", "primaryCategory"),
		OgImage:     firstString(doc, "ogImage", "ogImageUrl"),
		Screenshots: firstList(doc, "screenshots", "screenshotUrls"),
		Raw:         doc.Raw,
	}

	owner := doc.Get("owner")
	owners := doc.Get("owners")
	m.OwnerDeclared = owner.Exists() || owners.Exists()
	m.Owner = stringList(owner)
	m.Owners = stringList(owners)

	return m, nil
}

// firstString looks the keys up at the top level first, then inside nested containers.
func firstString(doc gjson.Result, keys ...string) string {
	for _, scope := range scopes(doc) {
		for _, key := range keys {
			if v := scope.Get(key); v.Type == gjson.String {
				if s := strings.TrimSpace(v.String()); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func firstList(doc gjson.Result, keys ...string) []string {
	for _, scope := range scopes(doc) {
		for _, key := range keys {
			if list := stringList(scope.Get(key)); len(list) > 0 {
				return list
			}
		}
	}
	return nil
}

func scopes(doc gjson.Result) []gjson.Result {
	out := []gjson.Result{doc}
	for _, key := range nestedKeys {
		if nested := doc.Get(key); nested.IsObject() {
			out = append(out, nested)
		}
	}
	return out
}

// stringList flattens a string or an array of strings, dropping blanks and non-strings.
func stringList(v gjson.Result) []string {
	if !v.Exists() {
		return nil
	}
	var out []string
	add := func(item gjson.Result) {
		if item.Type != gjson.String {
			return
		}
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	if v.IsArray() {
		for _, item := range v.Array() {
			add(item)
		}
		return out
	}
	add(v)
	return out
}
