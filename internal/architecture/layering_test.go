package architecture_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const modulesPrefix = "devtrack/internal/modules/"

// goFile is a non-test source file and the module imports it declares.
type goFile struct {
	path    string
	imports []string
}

func collect(t *testing.T, root string) []goFile {
	t.Helper()
	fset := token.NewFileSet()
	var files []goFile
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		node, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		f := goFile{path: filepath.ToSlash(path)}
		for _, imp := range node.Imports {
			if p := strings.Trim(imp.Path.Value, `"`); strings.HasPrefix(p, modulesPrefix) {
				f.imports = append(f.imports, p)
			}
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return files
}

func TestHexagonalLayerImports(t *testing.T) {
	t.Parallel()
	for _, f := range collect(t, filepath.Join("..", "modules")) {
		module, layer := locate(f.path)
		if module == "" || layer == "" {
			continue
		}
		for _, imp := range f.imports {
			if !allowed(module, layer, imp) {
				t.Fatalf("forbidden import in %s (%s): %s", f.path, layer, imp)
			}
		}
	}
}

// Delivery surfaces outside the modules talk to them through dto and port/in only.
func TestSurfacesUseInboundPorts(t *testing.T) {
	t.Parallel()
	for _, dir := range []string{"ui", "web"} {
		for _, f := range collect(t, filepath.Join("..", dir)) {
			for _, imp := range f.imports {
				if layerOf(imp) != "dto" && layerOf(imp) != "port/in" {
					t.Fatalf("%s reaches into %s", f.path, imp)
				}
			}
		}
	}
}

var layers = []string{"adapter/in", "adapter/out", "usecase", "service", "domain", "port/in", "port/out", "dto"}

func layerOf(path string) string {
	for _, layer := range layers {
		if strings.Contains(path+"/", "/"+layer+"/") {
			return layer
		}
	}
	return ""
}

func locate(path string) (module, layer string) {
	parts := strings.Split(path, "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "modules" {
			module = parts[i+1]
			break
		}
	}
	return module, layerOf(path)
}

// forbidden lists, per layer, the same-module layers it must not depend on.
var forbidden = map[string][]string{
	"adapter/in": {"adapter/out", "usecase", "service", "domain", "port/out"},
	"usecase":    {"adapter/in", "adapter/out"},
	"service":    {"adapter/in", "adapter/out", "usecase"},
	"domain":     {"adapter/in", "adapter/out", "usecase", "service", "port/in", "port/out"},
	"dto":        {"adapter/in", "adapter/out", "usecase", "service", "port/out"},
}

func allowed(module, layer, importPath string) bool {
	target := layerOf(importPath)
	if !strings.HasPrefix(importPath, modulesPrefix+module+"/") {
		return target == "dto" || target == "port/in"
	}
	for _, bad := range forbidden[layer] {
		if target == bad {
			return false
		}
	}
	return true
}
