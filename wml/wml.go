// Package wml parses the nested-markup format Wesnoth writes its replays in:
// [tag] opens a section, [/tag] closes the innermost open section, key=value
// sets an attribute on the innermost open section, and repeated same-named
// sibling sections collapse into an ordered list.
package wml

import (
	"bufio"
	"strings"
)

// Node is one parsed section. Attributes hold the key=value pairs, Children
// the nested sections in document order (repeated names accumulate).
type Node struct {
	Attributes map[string]string
	Children   map[string][]*Node
	order      []string
}

// NewNode returns an empty section.
func NewNode() *Node {
	return &Node{
		Attributes: map[string]string{},
		Children:   map[string][]*Node{},
	}
}

// Attr returns the attribute value, or "" when unset.
func (n *Node) Attr(key string) string {
	if n == nil {
		return ""
	}
	return n.Attributes[key]
}

// Child returns the first child section with the given name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	kids := n.Children[name]
	if len(kids) == 0 {
		return nil
	}
	return kids[0]
}

// All returns every child section with the given name in document order.
func (n *Node) All(name string) []*Node {
	if n == nil {
		return nil
	}
	return n.Children[name]
}

// Last returns the final child section with the given name, or nil. Replay
// documents repeat some top-level sections and the live one is at the end.
func (n *Node) Last(name string) *Node {
	if n == nil {
		return nil
	}
	kids := n.Children[name]
	if len(kids) == 0 {
		return nil
	}
	return kids[len(kids)-1]
}

// Empty reports whether the node carries no attributes and no children.
func (n *Node) Empty() bool {
	return n == nil || (len(n.Attributes) == 0 && len(n.Children) == 0)
}

func (n *Node) addChild(name string, child *Node) {
	if _, seen := n.Children[name]; !seen {
		n.order = append(n.order, name)
	}
	n.Children[name] = append(n.Children[name], child)
}

// SectionNames lists the node's child section names in first-seen order.
func (n *Node) SectionNames() []string {
	if n == nil {
		return nil
	}
	return n.order
}

// Parse reads a whole document into a root Node. The grammar is line-oriented
// and whitespace-insensitive: blank lines and #-comments are skipped, values
// may be double-quoted, and '=' inside a quoted value is preserved. Malformed
// structure (stray closers, unclosed sections) is tolerated because replays
// are cut off mid-write often enough that a strict parser would reject real
// games.
func Parse(content string) *Node {
	root := NewNode()
	stack := []*Node{root}

	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "[/"):
			// never pop the root
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}

		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			name := strings.TrimSpace(line[1 : len(line)-1])
			if name == "" {
				continue
			}
			child := NewNode()
			stack[len(stack)-1].addChild(name, child)
			stack = append(stack, child)

		case strings.Contains(line, "="):
			key, value, _ := strings.Cut(line, "=")
			stack[len(stack)-1].Attributes[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
		}
	}

	return root
}

func unquote(v string) string {
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		return v[1 : len(v)-1]
	}
	return v
}
