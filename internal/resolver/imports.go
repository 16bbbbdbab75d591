package resolver

import (
	"path"
	"path/filepath"
	"strings"

	"archmap/internal/model"
	"archmap/internal/tree"
)

// imports fills the alias table and links the module element to imported elements.
func (t *traversal) imports(imports []tree.Import) {
	src, hasModule := t.r.index.Lookup(t.module)

	for _, imp := range imports {
		if imp.Wildcard {
			continue
		}
		base := AbsoluteModule(imp.Module, t.module, t.pkg)

		var local, target string
		if imp.Name == "" {
			if base == "" {
				continue
			}
			local, target = base, base
		} else {
			local, target = imp.Name, imp.Name
			if base != "" {
				target = base + "." + imp.Name
			}
		}
		if imp.Alias != "" {
			local = imp.Alias
		}
		t.aliases[local] = target

		if !hasModule {
			continue
		}
		// Imports link on exact qualified names only, never on bare-name guesses.
		el, ok := t.r.index.Lookup(target)
		if !ok || el.ID == src.ID {
			continue
		}
		t.emit(src.ID, el.ID, model.RelationImports,
			&model.SourceLocation{File: t.file, Line: imp.Line},
			map[string]string{"via": "import", "resolved_by": TierExact})
	}
}

// IsPackageFile reports whether file is a package's __init__.py.
func IsPackageFile(file string) bool {
	return path.Base(filepath.ToSlash(file)) == "__init__.py"
}

// AbsoluteModule turns a possibly relative module path into an absolute dotted path as seen
// from module. One leading dot is the package containing module, which is module itself when
// isPackage is set; each further dot climbs one level. It returns "" when the path climbs
// above the top-level package.
func AbsoluteModule(rel, module string, isPackage bool) string {
	if !strings.HasPrefix(rel, ".") {
		return rel
	}
	dots := len(rel) - len(strings.TrimLeft(rel, "."))
	rest := rel[dots:]

	up := dots
	if isPackage {
		up--
	}
	pkg := strings.Split(module, ".")
	if up > len(pkg) {
		return ""
	}
	pkg = pkg[:len(pkg)-up]

	parts := append([]string(nil), pkg...)
	if rest != "" {
		parts = append(parts, rest)
	}
	return strings.Join(parts, ".")
}
