package plan

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/ajitpratap0/strata/pkg/errors"
)

//go:embed recipes/*.yaml
var recipeFS embed.FS

// Recipes returns the built-in plans sorted by name. Each call parses fresh
// documents, so callers may modify them.
func Recipes() ([]*Document, error) {
	entries, err := recipeFS.ReadDir("recipes")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to list recipes")
	}
	docs := make([]*Document, 0, len(entries))
	for _, e := range entries {
		doc, err := readRecipe(e.Name())
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// Recipe returns the built-in plan with the given name, ignoring case.
func Recipe(name string) (*Document, error) {
	file := strings.ToLower(strings.TrimSpace(name)) + ".yaml"
	if _, err := fs.Stat(recipeFS, path.Join("recipes", file)); err != nil {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "unknown recipe %q", name)
	}
	return readRecipe(file)
}

func readRecipe(file string) (*Document, error) {
	data, err := recipeFS.ReadFile(path.Join("recipes", file))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to read recipe "+file)
	}
	doc, err := Parse(data, FormatYAML)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "invalid recipe "+file)
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(file, ".yaml")
	}
	return doc, nil
}

// Pipe renders the document's ops on one line, e.g.
// "codec.csv.decode | head n=10 | codec.csv.encode".
func (d *Document) Pipe() string {
	parts := make([]string, len(d.Steps))
	for i, e := range d.Steps {
		parts[i] = e.String()
	}
	return strings.Join(parts, " | ")
}

// String renders the op followed by its arguments in key order.
func (e Entry) String() string {
	if len(e.Args) == 0 {
		return e.Op
	}
	keys := make([]string, 0, len(e.Args))
	for k := range e.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(e.Op)
	for _, k := range keys {
		sb.WriteByte(' ')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(argString(e.Args[k]))
	}
	return sb.String()
}

func argString(v interface{}) string {
	switch x := v.(type) {
	case string:
		if x == "" || strings.ContainsAny(x, " \t|\"") {
			return strconv.Quote(x)
		}
		return x
	case []interface{}:
		parts := make([]string, len(x))
		for i, p := range x {
			parts[i] = argString(p)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}
