package app

import (
	"html"
	"strings"

	"github.com/pscheid92/blastdesk/internal/domain"
)

// Personalize replaces {{name}}, {{email}}, {{role}} and {{department}}
// with the participant's values. With escape set the values are HTML-escaped,
// for use in message bodies. Unknown placeholders are left as they are.
func Personalize(text string, p domain.Participant, escape bool) string {
	value := func(s string) string {
		if escape {
			return html.EscapeString(s)
		}
		return s
	}

	fields := []struct{ key, val string }{
		{"name", p.Name},
		{"email", p.Email},
		{"role", p.Role},
		{"department", p.DepartmentName},
	}
	pairs := make([]string, 0, len(fields)*4)
	for _, f := range fields {
		v := value(f.val)
		pairs = append(pairs, "{{"+f.key+"}}", v, "{{ "+f.key+" }}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
