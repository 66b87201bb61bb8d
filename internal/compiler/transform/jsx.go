package transform

import (
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/alienzhou/esm.sh/internal/compiler/ast"
	"github.com/alienzhou/esm.sh/internal/compiler/parser"
)

// lowerJSX rewrites JSX markup into factory calls. With a configured JSX
// import source it targets the automatic runtime and injects the runtime
// import; otherwise it emits classic pragma calls against the configured
// factory.
func lowerJSX(c *Context, mod *ast.Module) (*ast.Module, error) {
	src := []byte(mod.Print())
	tree, err := parseCST(src, parser.JSGrammar())
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if !containsJSX(root) {
		return mod, nil
	}

	l := &jsxLowerer{src: src}
	if c.Options.JSXImportSource != "" {
		l.automatic = true
		l.jsx = c.bind("_jsx")
		l.jsxs = c.bind("_jsxs")
		l.fragment = c.bind("_Fragment")
	} else {
		l.factory = c.Options.JSXFactory
		l.fragment = c.Options.JSXFragmentFactory
	}

	text := l.emit(root)
	if l.automatic {
		runtime := strings.TrimSuffix(c.Options.JSXImportSource, "/") + "/jsx-runtime"
		text = fmt.Sprintf("import { Fragment as %s, jsx as %s, jsxs as %s } from %q;\n",
			l.fragment, l.jsx, l.jsxs, runtime) + text
	}
	return ast.TextModule(mod.Path, text), nil
}

type jsxLowerer struct {
	src       []byte
	automatic bool
	factory   string // classic call target
	fragment  string
	jsx, jsxs string // automatic runtime bindings
}

// emit reconstructs a node's text with every outermost JSX subtree replaced
// by its lowered call. Nested JSX inside expression children is handled by
// recursion through element.
func (l *jsxLowerer) emit(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	var outer []*sitter.Node
	collectOutermostJSX(node, &outer)
	if len(outer) == 0 {
		return nodeText(node, l.src)
	}

	var b strings.Builder
	cursor := node.StartByte()
	for _, e := range outer {
		b.Write(l.src[cursor:e.StartByte()])
		b.WriteString(l.element(e))
		cursor = e.EndByte()
	}
	b.Write(l.src[cursor:node.EndByte()])
	return b.String()
}

func collectOutermostJSX(node *sitter.Node, out *[]*sitter.Node) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "jsx_element", "jsx_self_closing_element", "jsx_fragment":
		*out = append(*out, node)
		return
	}
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		collectOutermostJSX(node.Child(i), out)
	}
}

func (l *jsxLowerer) element(node *sitter.Node) string {
	var nameNode, attrSource *sitter.Node
	var children []string

	switch node.Kind() {
	case "jsx_self_closing_element":
		nameNode = node.ChildByFieldName("name")
		attrSource = node
	case "jsx_element", "jsx_fragment":
		count := node.ChildCount()
		for i := uint(0); i < count; i++ {
			ch := node.Child(i)
			if ch == nil {
				continue
			}
			switch ch.Kind() {
			case "jsx_opening_element":
				nameNode = ch.ChildByFieldName("name")
				attrSource = ch
			case "jsx_closing_element":
			case "jsx_text":
				if text := jsxText(nodeText(ch, l.src)); text != "" {
					children = append(children, strconv.Quote(text))
				}
			case "jsx_expression":
				if inner := ch.NamedChild(0); inner != nil && inner.Kind() != "comment" {
					children = append(children, l.emit(inner))
				}
			case "jsx_element", "jsx_self_closing_element", "jsx_fragment":
				children = append(children, l.element(ch))
			}
		}
	}

	tag := l.tagExpr(nameNode)
	pairs, key := l.attributes(attrSource)

	if l.automatic {
		return l.automaticCall(tag, pairs, key, children)
	}
	return l.classicCall(tag, pairs, children)
}

func (l *jsxLowerer) tagExpr(nameNode *sitter.Node) string {
	if nameNode == nil {
		return l.fragment
	}
	name := nodeText(nameNode, l.src)
	// Lowercase simple names are intrinsic elements.
	if name != "" && name[0] >= 'a' && name[0] <= 'z' && !strings.ContainsAny(name, ".:") {
		return strconv.Quote(name)
	}
	return name
}

// attributes lowers an element's attribute list into prop segments and
// extracts the key attribute in automatic mode.
func (l *jsxLowerer) attributes(node *sitter.Node) (pairs []propSegment, key string) {
	if node == nil {
		return nil, ""
	}
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		ch := node.Child(i)
		if ch == nil {
			continue
		}
		switch ch.Kind() {
		case "jsx_attribute":
			name, value := l.attribute(ch)
			if l.automatic && name == "key" {
				key = value
				continue
			}
			pairs = append(pairs, propSegment{key: propKey(name), value: value})
		case "jsx_expression":
			if spread := ch.NamedChild(0); spread != nil && spread.Kind() == "spread_element" {
				pairs = append(pairs, propSegment{spread: l.emit(spread.NamedChild(0))})
			}
		}
	}
	return pairs, key
}

func (l *jsxLowerer) attribute(attr *sitter.Node) (name, value string) {
	count := attr.ChildCount()
	for i := uint(0); i < count; i++ {
		ch := attr.Child(i)
		if ch == nil {
			continue
		}
		switch ch.Kind() {
		case "property_identifier", "jsx_namespace_name":
			name = nodeText(ch, l.src)
		case "string":
			value = nodeText(ch, l.src)
		case "jsx_expression":
			if inner := ch.NamedChild(0); inner != nil {
				value = l.emit(inner)
			}
		case "jsx_element", "jsx_self_closing_element", "jsx_fragment":
			value = l.element(ch)
		}
	}
	if value == "" {
		value = "true"
	}
	return name, value
}

type propSegment struct {
	key, value string
	spread     string
}

// propsObject renders prop segments as one expression: an object literal,
// or Object.assign when spreads interleave.
func propsObject(pairs []propSegment, extra string) string {
	hasSpread := false
	for _, p := range pairs {
		if p.spread != "" {
			hasSpread = true
		}
	}
	if !hasSpread {
		var items []string
		for _, p := range pairs {
			items = append(items, p.key+": "+p.value)
		}
		if extra != "" {
			items = append(items, extra)
		}
		if len(items) == 0 {
			return ""
		}
		return "{ " + strings.Join(items, ", ") + " }"
	}

	var groups []string
	var pending []string
	flush := func() {
		if len(pending) > 0 {
			groups = append(groups, "{ "+strings.Join(pending, ", ")+" }")
			pending = nil
		}
	}
	for _, p := range pairs {
		if p.spread != "" {
			flush()
			groups = append(groups, p.spread)
			continue
		}
		pending = append(pending, p.key+": "+p.value)
	}
	if extra != "" {
		pending = append(pending, extra)
	}
	flush()
	return "Object.assign({}, " + strings.Join(groups, ", ") + ")"
}

func (l *jsxLowerer) automaticCall(tag string, pairs []propSegment, key string, children []string) string {
	fn := l.jsx
	var childrenProp string
	switch len(children) {
	case 0:
	case 1:
		childrenProp = "children: " + children[0]
	default:
		fn = l.jsxs
		childrenProp = "children: [" + strings.Join(children, ", ") + "]"
	}
	props := propsObject(pairs, childrenProp)
	if props == "" {
		props = "{}"
	}
	if key != "" {
		return fmt.Sprintf("%s(%s, %s, %s)", fn, tag, props, key)
	}
	return fmt.Sprintf("%s(%s, %s)", fn, tag, props)
}

func (l *jsxLowerer) classicCall(tag string, pairs []propSegment, children []string) string {
	props := propsObject(pairs, "")
	if props == "" {
		props = "null"
	}
	args := append([]string{tag, props}, children...)
	return fmt.Sprintf("%s(%s)", l.factory, strings.Join(args, ", "))
}

func propKey(name string) string {
	if strings.ContainsAny(name, "-:") {
		return strconv.Quote(name)
	}
	return name
}

// jsxText applies JSX whitespace semantics: whitespace-only lines vanish,
// interior runs collapse to one space.
func jsxText(text string) string {
	lines := strings.Split(text, "\n")
	var kept []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, " ")
}
