package manifest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/quantmind-br/repo2kas/internal/domain"
)

// RootElement is the required document element of a manifest
const RootElement = "manifest"

// Node is a parsed XML element. Children keep document order.
type Node struct {
	Name     string
	Attrs    map[string]string
	Children []*Node
}

// Attr returns the trimmed value of an attribute, or "" when absent
func (n *Node) Attr(name string) string {
	return strings.TrimSpace(n.Attrs[name])
}

// Has reports whether the element carries the attribute
func (n *Node) Has(name string) bool {
	_, ok := n.Attrs[name]
	return ok
}

// Elements returns the direct children with the given element name
func (n *Node) Elements(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Parse decodes a manifest document into a Node tree. document names the
// source in error messages.
func Parse(document string, data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.NewManifestParseError(document, "", "malformed XML", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := &Node{Name: t.Name.Local, Attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				node.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, domain.NewManifestParseError(document, "", "multiple root elements", nil)
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		}
	}

	if root == nil {
		return nil, domain.NewManifestParseError(document, "", "empty document", nil)
	}
	if root.Name != RootElement {
		return nil, domain.NewManifestParseError(document, "",
			"root element must be <"+RootElement+">, got <"+root.Name+">", nil)
	}
	return root, nil
}
