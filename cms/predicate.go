package cms

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Predicate is a single query condition, e.g. at(document.type, "posts").
type Predicate struct {
	Op    string
	Path  string
	Value string
}

// At matches documents whose field at path equals value.
func At(path, value string) Predicate {
	return Predicate{Op: "at", Path: path, Value: value}
}

// DocumentType matches documents of the given custom type.
func DocumentType(t string) Predicate {
	return At("document.type", t)
}

// UID matches the document of type t with the given uid.
func UID(t, uid string) Predicate {
	return At("my."+t+".uid", uid)
}

// DocumentID matches the document with the given id.
func DocumentID(id string) Predicate {
	return At("document.id", id)
}

func (p Predicate) String() string {
	return fmt.Sprintf("[%s(%s, %s)]", p.Op, p.Path, strconv.Quote(p.Value))
}

// Query renders predicates in the repository query language.
func Query(preds []Predicate) string {
	var b strings.Builder
	b.WriteByte('[')
	for _, p := range preds {
		b.WriteString(p.String())
	}
	b.WriteByte(']')
	return b.String()
}

var rePredicate = regexp.MustCompile(`\[(\w+)\(\s*([\w.]+)\s*,\s*("(?:[^"\\]|\\.)*")\s*\)\]`)

// ParseQuery is the inverse of Query. Only single-value predicates are
// understood.
func ParseQuery(q string) ([]Predicate, error) {
	q = strings.TrimSpace(q)
	if q == "" || q == "[]" {
		return nil, nil
	}
	if !strings.HasPrefix(q, "[") || !strings.HasSuffix(q, "]") {
		return nil, fmt.Errorf("cms: malformed query %q", q)
	}
	inner := q[1 : len(q)-1]
	matches := rePredicate.FindAllStringSubmatchIndex(inner, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("cms: malformed query %q", q)
	}
	var preds []Predicate
	end := 0
	for _, m := range matches {
		if strings.TrimSpace(inner[end:m[0]]) != "" {
			return nil, fmt.Errorf("cms: malformed query %q", q)
		}
		value, err := strconv.Unquote(inner[m[6]:m[7]])
		if err != nil {
			return nil, fmt.Errorf("cms: malformed value in %q: %w", q, err)
		}
		preds = append(preds, Predicate{
			Op:    inner[m[2]:m[3]],
			Path:  inner[m[4]:m[5]],
			Value: value,
		})
		end = m[1]
	}
	if strings.TrimSpace(inner[end:]) != "" {
		return nil, fmt.Errorf("cms: malformed query %q", q)
	}
	return preds, nil
}
