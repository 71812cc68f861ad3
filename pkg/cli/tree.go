package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/inkstone-dev/inkstone/pkg/wiki"
)

// Theme defines the color scheme for terminal rendering.
type Theme struct {
	Primary lipgloss.Color // Folder and accent color
	Dim     lipgloss.Color // Connectors and secondary text
}

// DefaultTheme is the default green-on-dim theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// TreeStyles holds the styles used by RenderTree.
type TreeStyles struct {
	Folder lipgloss.Style
	Page   lipgloss.Style
	Title  lipgloss.Style
	Branch lipgloss.Style
}

// NewTreeStyles creates tree styles from a theme.
func NewTreeStyles(t Theme) TreeStyles {
	return TreeStyles{
		Folder: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Page:   lipgloss.NewStyle(),
		Title:  lipgloss.NewStyle().Foreground(t.Dim),
		Branch: lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// RenderTree renders a wiki hierarchy as an indented box-drawing tree.
// Pages show their title when it differs from the filename.
func RenderTree(root *wiki.Node, styles TreeStyles) string {
	var b strings.Builder
	renderChildren(&b, root, "", styles)
	return b.String()
}

func renderChildren(b *strings.Builder, node *wiki.Node, prefix string, styles TreeStyles) {
	for i, child := range node.Children {
		last := i == len(node.Children)-1
		connector, childPrefix := "├── ", prefix+"│   "
		if last {
			connector, childPrefix = "└── ", prefix+"    "
		}
		b.WriteString(prefix)
		b.WriteString(styles.Branch.Render(connector))
		switch child.Type {
		case wiki.NodeTypeFolder:
			b.WriteString(styles.Folder.Render(child.Name + "/"))
		default:
			b.WriteString(styles.Page.Render(child.Name))
			stem := strings.TrimSuffix(child.Name, wiki.ContentExt)
			if child.Title != "" && child.Title != stem {
				b.WriteString("  ")
				b.WriteString(styles.Title.Render(child.Title))
			}
		}
		b.WriteString("\n")
		renderChildren(b, child, childPrefix, styles)
	}
}
