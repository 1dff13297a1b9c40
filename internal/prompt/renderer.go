// Package prompt renders the instruction text handed to the language model.
//
// Templates are plain text files containing {{name}} placeholders. Rendering is
// a single pass: substituted values are never scanned again, and placeholders
// without a value are left as they are.
package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// TemplateNotFoundError is returned when a named template file does not exist.
type TemplateNotFoundError struct {
	Name string
	Path string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("prompt template not found: %s (%s)", e.Name, e.Path)
}

// Renderer loads templates from a directory.
type Renderer struct {
	dir string
}

// NewRenderer returns a Renderer reading <dir>/<name>.txt.
func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir}
}

// Path returns the file a template name resolves to.
func (r *Renderer) Path(name string) string {
	return filepath.Join(r.dir, name+".txt")
}

// Load returns the raw template text.
func (r *Renderer) Load(name string) (string, error) {
	path := r.Path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &TemplateNotFoundError{Name: name, Path: path}
		}
		return "", fmt.Errorf("read prompt template %s: %w", path, err)
	}
	return string(data), nil
}

// Render loads the named template, substitutes vars and trims the result.
func (r *Renderer) Render(name string, vars map[string]string) (string, error) {
	tmpl, err := r.Load(name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(Substitute(tmpl, vars)), nil
}

// Substitute replaces every {{key}} that has an entry in vars.
func Substitute(tmpl string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := placeholder.FindStringSubmatch(match)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return match
	})
}

// Placeholders returns the distinct placeholder names in tmpl, in order of
// first appearance.
func Placeholders(tmpl string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
