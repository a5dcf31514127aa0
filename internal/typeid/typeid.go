package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixNotebook = "nb"
	PrefixSection  = "sec"
	PrefixPage     = "page"
	PrefixItem     = "item"
	PrefixNode     = "node"
	PrefixSession  = "sess"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewNotebookID() string { return New(PrefixNotebook) }
func NewSectionID() string  { return New(PrefixSection) }
func NewPageID() string     { return New(PrefixPage) }
func NewItemID() string     { return New(PrefixItem) }
func NewNodeID() string     { return New(PrefixNode) }
func NewSessionID() string  { return New(PrefixSession) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
