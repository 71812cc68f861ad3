package wiki

import (
	"context"
	"sort"
	"strings"
)

// NodeType distinguishes folder nodes from page leaves.
type NodeType string

const (
	NodeTypeFolder NodeType = "folder"
	NodeTypePage   NodeType = "page"
)

// Node is one element of the wiki hierarchy. Folders are synthesized from
// path segments; pages carry their index metadata.
type Node struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Type     NodeType  `json:"type"`
	Title    string    `json:"title,omitempty"`
	Page     *PageMeta `json:"page,omitempty"`
	Children []*Node   `json:"children,omitempty"`
}

// BuildHierarchy converts the flat page list into a nested folder/page
// tree. Paths are processed in lexicographic order; ancestor folders are
// created once and reused via a cumulative-prefix map, and children are
// appended in processing order.
func BuildHierarchy(pages []PageMeta) *Node {
	sorted := append([]PageMeta(nil), pages...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	root := &Node{Type: NodeTypeFolder}
	nodes := map[string]*Node{"": root}

	for i := range sorted {
		page := sorted[i]
		segs := strings.Split(page.Path, "/")
		prefix := ""
		parent := root
		for _, seg := range segs[:len(segs)-1] {
			if prefix == "" {
				prefix = seg
			} else {
				prefix += "/" + seg
			}
			folder, ok := nodes[prefix]
			if !ok {
				folder = &Node{Name: seg, Path: prefix, Type: NodeTypeFolder}
				nodes[prefix] = folder
				parent.Children = append(parent.Children, folder)
			}
			parent = folder
		}
		leaf := &Node{
			Name:  segs[len(segs)-1],
			Path:  page.Path,
			Type:  NodeTypePage,
			Title: page.Title,
			Page:  &page,
		}
		nodes[page.Path] = leaf
		parent.Children = append(parent.Children, leaf)
	}
	return root
}

// Tree returns the current hierarchy, cached with the short listing TTL.
func (w *Wiki) Tree(ctx context.Context) (*Node, error) {
	if tree, ok := w.treeCache.Get("tree"); ok {
		return tree, nil
	}
	pages, err := w.Pages(ctx)
	if err != nil {
		return nil, err
	}
	tree := BuildHierarchy(pages)
	w.treeCache.Set("tree", tree)
	return tree, nil
}
