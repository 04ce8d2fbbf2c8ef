package verification

import (
	"path"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// importPattern matches Solidity import statements in all their syntactic forms and captures the imported path.
var importPattern = regexp.MustCompile(`(?m)^\s*import\s+(?:[^'";]*\s+from\s+)?['"]([^'"]+)['"]\s*;`)

// spdxPattern matches SPDX license identifier comments.
var spdxPattern = regexp.MustCompile(`(?m)^\s*//\s*SPDX-License-Identifier:.*$`)

// pragmaPattern matches solidity version pragmas.
var pragmaPattern = regexp.MustCompile(`(?m)^\s*pragma\s+solidity\s+[^;]+;`)

// sourceResolver finds files in a submitted source map the way the compiler's import callback would: by exact path,
// with relative prefixes stripped, with a .sol extension appended, and finally by basename.
type sourceResolver struct {
	files map[string]string

	// byBasename maps file basenames to full paths for the fallback lookup. Ambiguous basenames are dropped.
	byBasename map[string]string
}

// newSourceResolver indexes a source map for import resolution.
func newSourceResolver(files map[string]string) *sourceResolver {
	resolver := &sourceResolver{
		files:      files,
		byBasename: make(map[string]string, len(files)),
	}
	ambiguous := map[string]bool{}
	for filePath := range files {
		base := path.Base(filePath)
		if _, seen := resolver.byBasename[base]; seen {
			ambiguous[base] = true
			continue
		}
		resolver.byBasename[base] = filePath
	}
	for base := range ambiguous {
		delete(resolver.byBasename, base)
	}
	return resolver
}

// resolve maps an import path to a key of the source map. Returns the resolved key and whether resolution succeeded.
func (r *sourceResolver) resolve(importPath string) (string, bool) {
	if _, ok := r.files[importPath]; ok {
		return importPath, true
	}

	// Strip any leading ./ and ../ segments
	stripped := importPath
	for strings.HasPrefix(stripped, "./") || strings.HasPrefix(stripped, "../") {
		stripped = strings.TrimPrefix(stripped, "./")
		stripped = strings.TrimPrefix(stripped, "../")
	}
	if _, ok := r.files[stripped]; ok {
		return stripped, true
	}

	if !strings.HasSuffix(stripped, ".sol") {
		withExtension := stripped + ".sol"
		if _, ok := r.files[withExtension]; ok {
			return withExtension, true
		}
	}

	if resolved, ok := r.byBasename[path.Base(importPath)]; ok {
		return resolved, true
	}
	return "", false
}

// resolveImports rewrites every import statement in a source map to the exact key it resolves to, so the compiler's
// literal source lookup finds submissions whose import paths do not match the map keys verbatim. Imports that resolve
// to nothing are left as submitted and surface as compiler errors.
func resolveImports(files map[string]string) map[string]string {
	resolver := newSourceResolver(files)
	rewritten := make(map[string]string, len(files))
	for filePath, content := range files {
		rewritten[filePath] = importPattern.ReplaceAllStringFunc(content, func(statement string) string {
			importPath := importPattern.FindStringSubmatch(statement)[1]
			resolved, ok := resolver.resolve(importPath)
			if !ok || resolved == importPath {
				return statement
			}
			return strings.Replace(statement, importPath, resolved, 1)
		})
	}
	return rewritten
}

// flatten inlines a multi-file source map into a single compilation unit, starting from the main file and expanding
// imports depth-first. Each file is included once; SPDX identifiers and version pragmas are deduplicated so that
// only the main file's survive.
func flatten(files map[string]string, mainFile string) (string, error) {
	resolver := newSourceResolver(files)
	if _, ok := files[mainFile]; !ok {
		return "", errors.Errorf("main file '%s' is not among the submitted sources", mainFile)
	}

	var builder strings.Builder

	// Hoist the main file's license and pragma to the top; every other occurrence is stripped
	if spdx := spdxPattern.FindString(files[mainFile]); spdx != "" {
		builder.WriteString(strings.TrimSpace(spdx))
		builder.WriteString("\n")
	}
	if pragma := pragmaPattern.FindString(files[mainFile]); pragma != "" {
		builder.WriteString(strings.TrimSpace(pragma))
		builder.WriteString("\n\n")
	}

	included := map[string]bool{}
	if err := flattenFile(resolver, mainFile, included, &builder); err != nil {
		return "", err
	}
	return builder.String(), nil
}

// flattenFile appends one file and, recursively, its imports to the output.
func flattenFile(resolver *sourceResolver, filePath string, included map[string]bool, builder *strings.Builder) error {
	if included[filePath] {
		return nil
	}
	included[filePath] = true

	content := resolver.files[filePath]

	// Pull dependencies in first so that declarations precede their uses
	body := content
	for _, match := range importPattern.FindAllStringSubmatch(content, -1) {
		resolved, ok := resolver.resolve(match[1])
		if !ok {
			return errors.Errorf("could not resolve import '%s' in '%s'", match[1], filePath)
		}
		if err := flattenFile(resolver, resolved, included, builder); err != nil {
			return err
		}
	}

	// Imports are satisfied by inlining, so the statements themselves must go
	body = importPattern.ReplaceAllString(body, "")
	body = spdxPattern.ReplaceAllString(body, "")
	body = pragmaPattern.ReplaceAllString(body, "")

	builder.WriteString("// File: ")
	builder.WriteString(filePath)
	builder.WriteString("\n")
	builder.WriteString(strings.TrimSpace(body))
	builder.WriteString("\n\n")
	return nil
}
