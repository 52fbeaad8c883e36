package report

import (
	"path/filepath"
	"sort"
	"strings"
)

// Node represents an entry in the directory tree structure.
type Node struct {
	Name     string
	Children []*Node
}

func (n *Node) child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	c := &Node{Name: name}
	n.Children = append(n.Children, c)
	return c
}

// BuildTree constructs a hierarchical tree from a flat list of paths.
// Absolute paths are placed relative to base, creating intermediate
// directories as needed; anything else (URLs, for example) becomes a
// top-level entry.
func BuildTree(paths []string, base string) *Node {
	cleanBase := filepath.Clean(base)
	root := &Node{Name: filepath.Base(cleanBase)}

	for _, p := range paths {
		if !filepath.IsAbs(p) {
			root.child(p)
			continue
		}
		rel, err := filepath.Rel(cleanBase, p)
		if err != nil {
			rel = p
		}
		node := root
		for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
			if part == "" {
				continue
			}
			node = node.child(part)
		}
	}

	sortChildren(root)
	return root
}

// sortChildren recursively sorts the children of a node alphabetically.
func sortChildren(node *Node) {
	sort.Slice(node.Children, func(i, j int) bool {
		return node.Children[i].Name < node.Children[j].Name
	})
	for _, child := range node.Children {
		sortChildren(child)
	}
}

// Tree renders paths as a box-drawing tree rooted at base.
func Tree(paths []string, base string) string {
	root := BuildTree(paths, base)
	var builder strings.Builder
	builder.WriteString(root.Name)
	builder.WriteString("\n")
	printNode(&builder, root.Children, "")
	return strings.TrimSuffix(builder.String(), "\n")
}

// printNode is a helper function for recursively printing tree nodes.
func printNode(builder *strings.Builder, children []*Node, prefix string) {
	for i, node := range children {
		connector := "├── "
		newPrefix := prefix + "│   "
		if i == len(children)-1 {
			connector = "└── "
			newPrefix = prefix + "    "
		}

		builder.WriteString(prefix)
		builder.WriteString(connector)
		builder.WriteString(node.Name)
		builder.WriteString("\n")

		if len(node.Children) > 0 {
			printNode(builder, node.Children, newPrefix)
		}
	}
}
