package resolver

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// ImportMap is the production Driver: esm.sh-style policy mapping bare
// package specifiers onto a CDN origin, normalizing relative specifiers
// against the importing module, and passing configured externals through
// untouched.
type ImportMap struct {
	cdnOrigin   string
	localOrigin string
	imports     map[string]string
	pins        map[string]string
	externals   []glob.Glob
}

func NewImportMap(cdnOrigin, localOrigin string, imports, pins map[string]string, externals []string) (*ImportMap, error) {
	m := &ImportMap{
		cdnOrigin:   strings.TrimSuffix(cdnOrigin, "/"),
		localOrigin: strings.TrimSuffix(localOrigin, "/"),
		imports:     imports,
		pins:        pins,
	}
	for _, pattern := range externals {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad external pattern %q: %w", pattern, err)
		}
		m.externals = append(m.externals, g)
	}
	return m, nil
}

func (m *ImportMap) Resolve(base, specifier string, dynamic bool) (string, error) {
	if specifier == "" {
		return "", fmt.Errorf("empty specifier")
	}
	if mapped, ok := m.imports[specifier]; ok {
		return mapped, nil
	}
	for _, g := range m.externals {
		if g.Match(specifier) {
			return specifier, nil
		}
	}
	if isURL(specifier) {
		return specifier, nil
	}
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		return m.resolveRelative(base, specifier)
	}
	if strings.HasPrefix(specifier, "/") {
		if m.localOrigin != "" {
			return m.localOrigin + specifier, nil
		}
		return specifier, nil
	}
	return m.resolveBare(specifier)
}

// IsRemote reports whether a module path points outside the locally served
// source tree.
func (m *ImportMap) IsRemote(modulePath string) bool {
	if !isURL(modulePath) {
		return false
	}
	if m.localOrigin == "" {
		return true
	}
	u, err := url.Parse(modulePath)
	if err != nil {
		return true
	}
	return u.Scheme+"://"+u.Host != m.localOrigin
}

func (m *ImportMap) resolveRelative(base, specifier string) (string, error) {
	if isURL(base) {
		bu, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("bad base %q: %w", base, err)
		}
		ref, err := url.Parse(specifier)
		if err != nil {
			return "", fmt.Errorf("bad specifier %q: %w", specifier, err)
		}
		return bu.ResolveReference(ref).String(), nil
	}
	joined := path.Join(path.Dir(base), specifier)
	if strings.HasPrefix(base, "/") && !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	if m.localOrigin != "" && strings.HasPrefix(joined, "/") {
		return m.localOrigin + joined, nil
	}
	return joined, nil
}

func (m *ImportMap) resolveBare(specifier string) (string, error) {
	if m.cdnOrigin == "" {
		return "", fmt.Errorf("no CDN origin configured for bare specifier %q", specifier)
	}
	name, subpath := splitPackage(specifier)
	if name == "" {
		return "", fmt.Errorf("malformed specifier %q", specifier)
	}
	target := m.cdnOrigin + "/" + name
	if version, ok := m.pins[name]; ok && version != "" {
		target += "@" + version
	}
	if subpath != "" {
		target += "/" + subpath
	}
	return target, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

// splitPackage splits a bare specifier into its package name (one segment,
// two for scoped packages) and the remaining subpath.
func splitPackage(specifier string) (name, subpath string) {
	parts := strings.Split(specifier, "/")
	take := 1
	if strings.HasPrefix(specifier, "@") {
		take = 2
	}
	if len(parts) < take {
		return "", ""
	}
	return strings.Join(parts[:take], "/"), strings.Join(parts[take:], "/")
}
