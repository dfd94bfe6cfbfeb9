// Package docnode decodes a rules document's YAML source into an
// order-preserving tree. Go's map[string]any loses the author's key order,
// but two compiles of the same document must produce structurally
// identical output, and that depends on hasChildren/indexOn arrays
// reflecting declaration order — so the rule tree is walked off
// gopkg.in/yaml.v3's yaml.Node directly rather than through a generic
// Unmarshal.
package docnode

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Node is a single position in the rule tree: either a scalar (the
// shorthand `{.value: <string>}` form) or a mapping with entries in
// declaration order.
type Node struct {
	IsScalar bool
	Scalar   string
	Pairs    []Pair
}

// Pair is one ordered key/value entry of a mapping Node.
type Pair struct {
	Key   string
	Value *Node
}

// Get returns the value bound to key, if the node is a mapping containing
// it.
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil {
		return nil, false
	}
	for _, p := range n.Pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// AsString returns the node's content as a string when it is a scalar, or
// when it is a mapping whose only useful content for keyword inspection is
// a scalar `.value` entry — callers needing the raw `.value` string use
// this directly rather than re-deriving the shorthand rule.
func (n *Node) AsString() (string, bool) {
	if n == nil {
		return "", false
	}
	if n.IsScalar {
		return n.Scalar, true
	}
	if v, ok := n.Get(".value"); ok && v.IsScalar {
		return v.Scalar, true
	}
	return "", false
}

// FunctionEntry is one raw (signature, body) pair from the document's
// `functions` sequence, in declaration order.
type FunctionEntry struct {
	Signature string
	Body      string
}

// Document is a fully decoded rules source: the ordered function list and
// the root of the rule tree.
type Document struct {
	Functions []FunctionEntry
	Root      *Node
}

// Decode parses raw YAML bytes into a Document, preserving mapping order
// throughout the rule tree.
func Decode(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	top := resolveAlias(root.Content[0])
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("document root must be a mapping with functions/root keys")
	}

	doc := &Document{}
	var haveRoot bool
	for i := 0; i+1 < len(top.Content); i += 2 {
		key := resolveAlias(top.Content[i])
		val := top.Content[i+1]
		switch key.Value {
		case "functions":
			entries, err := decodeFunctions(resolveAlias(val))
			if err != nil {
				return nil, err
			}
			doc.Functions = entries
		case "root":
			node, err := convertNode(val)
			if err != nil {
				return nil, err
			}
			doc.Root = node
			haveRoot = true
		}
	}
	if !haveRoot {
		return nil, fmt.Errorf("document is missing a 'root' key")
	}
	return doc, nil
}

func decodeFunctions(n *yaml.Node) ([]FunctionEntry, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("'functions' must be a sequence")
	}
	entries := make([]FunctionEntry, 0, len(n.Content))
	for _, raw := range n.Content {
		item := resolveAlias(raw)
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return nil, fmt.Errorf("each functions entry must be a single-entry mapping of signature to body")
		}
		keyNode := resolveAlias(item.Content[0])
		valNode := resolveAlias(item.Content[1])
		if valNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("function %q body must be a string", keyNode.Value)
		}
		entries = append(entries, FunctionEntry{Signature: keyNode.Value, Body: valNode.Value})
	}
	return entries, nil
}

func convertNode(raw *yaml.Node) (*Node, error) {
	n := resolveAlias(raw)
	switch n.Kind {
	case yaml.ScalarNode:
		return &Node{IsScalar: true, Scalar: n.Value}, nil
	case yaml.MappingNode:
		pairs := make([]Pair, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode := resolveAlias(n.Content[i])
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("rule tree keys must be strings")
			}
			val, err := convertNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, Pair{Key: keyNode.Value, Value: val})
		}
		return &Node{Pairs: pairs}, nil
	default:
		return nil, fmt.Errorf("unexpected YAML node in rule tree (sequences are not a valid rule shape)")
	}
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.AliasNode {
		return resolveAlias(n.Alias)
	}
	return n
}
