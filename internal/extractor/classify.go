package extractor

import (
	"strings"

	"archmap/internal/model"
	"archmap/internal/tree"
)

// PrivacyFunc decides whether a declaration is private by convention.
type PrivacyFunc func(name string, decorators []string) bool

// UnderscorePrivacy treats a single leading underscore as private. Names starting with a
// double underscore (dunder and name-mangled) are not private.
func UnderscorePrivacy(name string, _ []string) bool {
	return strings.HasPrefix(name, "_") && !strings.HasPrefix(name, "__")
}

var constructorNames = map[string]bool{
	"__init__": true,
	"__new__":  true,
}

var propertyDecorators = map[string]bool{
	"property":                  true,
	"cached_property":           true,
	"functools.cached_property": true,
	"abc.abstractproperty":      true,
	"abstractproperty":          true,
}

var propertyAccessorSuffixes = []string{".setter", ".getter", ".deleter"}

func hasPropertyDecorator(decorators []string) bool {
	for _, d := range decorators {
		if propertyDecorators[d] {
			return true
		}
		for _, suffix := range propertyAccessorSuffixes {
			if strings.HasSuffix(d, suffix) {
				return true
			}
		}
	}
	return false
}

func hasDecorator(decorators []string, names ...string) bool {
	for _, d := range decorators {
		for _, n := range names {
			if d == n {
				return true
			}
		}
	}
	return false
}

// classify picks the kind of a function declaration. Constructors win over everything,
// property decorators win over static/class markers, and only direct class members are
// methods.
func (e *Extractor) classify(d tree.Declaration, private, property bool) model.ElementKind {
	if constructorNames[d.Name] {
		return model.KindConstructor
	}
	if property {
		return model.KindProperty
	}
	if !d.InClass() {
		return model.KindFunction
	}

	switch {
	case private:
		return model.KindPrivateMethod
	case hasDecorator(d.Decorators, "staticmethod", "builtins.staticmethod"):
		return model.KindStaticMethod
	case hasDecorator(d.Decorators, "classmethod", "builtins.classmethod"):
		return model.KindClassMethod
	case d.Async:
		return model.KindAsyncMethod
	default:
		return model.KindMethod
	}
}
