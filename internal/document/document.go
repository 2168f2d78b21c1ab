// Package document edits YAML mapping documents without disturbing content it
// does not own. The tree is held as yaml.v3 nodes, so comments, key order and
// hand-written entries survive a load/modify/write cycle.
package document

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNotMapping is returned when the top level of a document is not a mapping.
	ErrNotMapping = fmt.Errorf("document top level is not a mapping")
	// ErrSectionKind is returned when a section exists but is not a mapping.
	ErrSectionKind = fmt.Errorf("section is not a mapping")
)

// Document is a YAML document whose top level is a mapping.
type Document struct {
	root    *yaml.Node
	mapping *yaml.Node
}

// New returns an empty document.
func New() *Document {
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	return &Document{
		root:    &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{mapping}},
		mapping: mapping,
	}
}

// Parse decodes data. Empty or whitespace-only input, a comment-only file and
// an explicit null all give an empty document.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return New(), nil
	}

	top := resolve(root.Content[0])
	switch {
	case top.Kind == yaml.MappingNode:
		return &Document{root: &root, mapping: top}, nil
	case isNull(top):
		doc := New()
		doc.root.HeadComment = root.HeadComment
		return doc, nil
	default:
		return nil, fmt.Errorf("%w (found %s)", ErrNotMapping, kindName(top))
	}
}

// Keys returns the top-level keys in document order.
func (d *Document) Keys() []string {
	return mappingKeys(d.mapping)
}

// Has reports whether a top-level key exists.
func (d *Document) Has(key string) bool {
	_, ok := lookup(d.mapping, key)
	return ok
}

// EnsureSection returns the mapping stored under key, appending an empty one
// when the key is absent. A null value is turned into an empty mapping in
// place. Any other non-mapping value is left untouched and ErrSectionKind is
// returned.
func (d *Document) EnsureSection(key string) (*Section, error) {
	value, ok := lookup(d.mapping, key)
	if !ok {
		value = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		d.mapping.Content = append(d.mapping.Content, scalarKey(key), value)
		return &Section{name: key, node: value}, nil
	}

	value = resolve(value)
	switch {
	case value.Kind == yaml.MappingNode:
	case isNull(value):
		value.Kind = yaml.MappingNode
		value.Tag = "!!map"
		value.Value = ""
		value.Style = 0
		value.Content = nil
	default:
		return nil, fmt.Errorf("%w: %q is a %s", ErrSectionKind, key, kindName(value))
	}
	return &Section{name: key, node: value}, nil
}

// SetDefault stores value under key only when key is absent. It reports
// whether the value was inserted.
func (d *Document) SetDefault(key string, value any) (bool, error) {
	if d.Has(key) {
		return false, nil
	}
	node, err := encode(value)
	if err != nil {
		return false, fmt.Errorf("encode %q: %w", key, err)
	}
	d.mapping.Content = append(d.mapping.Content, scalarKey(key), node)
	return true, nil
}

// Decode decodes the value under a top-level key into out.
func (d *Document) Decode(key string, out any) error {
	value, ok := lookup(d.mapping, key)
	if !ok {
		return fmt.Errorf("key %q not found", key)
	}
	return value.Decode(out)
}

// Marshal encodes the document with two-space indentation.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.root); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// Section is a mapping-valued top-level entry of a Document.
type Section struct {
	name string
	node *yaml.Node
}

// Name returns the section key.
func (s *Section) Name() string {
	return s.name
}

// Len returns the number of entries.
func (s *Section) Len() int {
	return len(s.node.Content) / 2
}

// Keys returns entry keys in document order.
func (s *Section) Keys() []string {
	return mappingKeys(s.node)
}

// Has reports whether an entry exists.
func (s *Section) Has(key string) bool {
	_, ok := lookup(s.node, key)
	return ok
}

// Add appends an entry when key is absent. Existing entries are never
// replaced; the return value reports whether value was added.
func (s *Section) Add(key string, value any) (bool, error) {
	if s.Has(key) {
		return false, nil
	}
	node, err := encode(value)
	if err != nil {
		return false, fmt.Errorf("encode %s.%s: %w", s.name, key, err)
	}
	s.node.Content = append(s.node.Content, scalarKey(key), node)
	return true, nil
}

// Decode decodes the entry under key into out.
func (s *Section) Decode(key string, out any) error {
	value, ok := lookup(s.node, key)
	if !ok {
		return fmt.Errorf("entry %s.%s not found", s.name, key)
	}
	return value.Decode(out)
}

func encode(value any) (*yaml.Node, error) {
	if node, ok := value.(*yaml.Node); ok {
		return node, nil
	}
	var node yaml.Node
	if err := node.Encode(value); err != nil {
		return nil, err
	}
	return &node, nil
}

func lookup(mapping *yaml.Node, key string) (*yaml.Node, bool) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1], true
		}
	}
	return nil, false
}

func mappingKeys(mapping *yaml.Node) []string {
	keys := make([]string, 0, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keys = append(keys, mapping.Content[i].Value)
	}
	return keys
}

func scalarKey(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && (n.Tag == "!!null" || (n.Tag == "" && strings.TrimSpace(n.Value) == ""))
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}
