package storage

import (
	"fmt"
	"net/url"
	"strings"
)

const placeholderBase = "https://api.dicebear.com/9.x"

// Placeholder returns a deterministic generated image for an entity with no
// resolvable image. The same kind and name always give the same URL.
func Placeholder(kind, name string) string {
	style := "shapes"
	switch kind {
	case "user", "character":
		style = "notionists"
	case "organization":
		style = "initials"
	}
	seed := strings.TrimSpace(name)
	if seed == "" {
		seed = kind
	}
	return fmt.Sprintf("%s/%s/svg?seed=%s", placeholderBase, style, url.QueryEscape(seed))
}

// URLOrPlaceholder resolves value, falling back to Placeholder.
func URLOrPlaceholder(resolved *string, kind, name string) string {
	if resolved != nil {
		return *resolved
	}
	return Placeholder(kind, name)
}
