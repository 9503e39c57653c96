package core

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
)

// Deps holds optional dependencies for constructing the core template func map.
type Deps struct {
	Template           **template.Template
	ContentTemplateFor func(string) string
}

// Funcs returns a template.FuncMap containing helpers shared by all templates.
func Funcs(deps Deps) template.FuncMap {
	funcs := template.FuncMap{
		"friendlyTime": FriendlyTime,
		"initials":     Initials,
		"truncateText": Truncate,
		"dict":         Dict,
	}

	addRenderFuncs(funcs, deps)
	return funcs
}

func addRenderFuncs(funcs template.FuncMap, deps Deps) {
	funcs["renderSection"] = func(page string, data any) (template.HTML, error) {
		if deps.Template == nil || *deps.Template == nil {
			return "", errors.New("template not initialized")
		}
		var buf bytes.Buffer
		if err := (*deps.Template).ExecuteTemplate(&buf, deps.ContentTemplateFor(page), data); err != nil {
			return "", err
		}
		// #nosec G203 - rendered by our own html/template set; values were escaped during ExecuteTemplate.
		return template.HTML(buf.String()), nil
	}
}

// Dict builds a map from alternating key/value arguments so templates can pass
// several values to a nested template.
func Dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, errors.New("dict requires an even number of arguments")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %d is %T, not string", i/2, kv[i])
		}
		m[key] = kv[i+1]
	}
	return m, nil
}

// Initials returns up to two upper-case initials for an avatar chip.
func Initials(name string) string {
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '@' || r == '.' || r == '_' || r == '-'
	})
	out := make([]rune, 0, 2)
	for _, f := range fields {
		if len(out) == 2 {
			break
		}
		out = append(out, []rune(strings.ToUpper(f))[0])
	}
	return string(out)
}
