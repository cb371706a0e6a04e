package assembly

import (
	"fmt"
	"strings"
)

// query addresses a face of a part: "lid?rim" names a tagged face,
// "base@faces@>Z" selects a face of the part's solid.
type query struct {
	part string
	tag  string
	sel  string
}

func parseQuery(q string) (query, error) {
	if name, tag, ok := strings.Cut(q, "?"); ok {
		if name == "" || tag == "" {
			return query{}, fmt.Errorf("malformed query %q: want name?tag", q)
		}
		return query{part: name, tag: tag}, nil
	}
	fields := strings.Split(q, "@")
	if len(fields) != 3 || fields[0] == "" || fields[2] == "" {
		return query{}, fmt.Errorf("malformed query %q: want name?tag or name@faces@selector", q)
	}
	if fields[1] != "faces" {
		return query{}, fmt.Errorf("malformed query %q: only faces can be selected, got %q", q, fields[1])
	}
	return query{part: fields[0], sel: fields[2]}, nil
}

func (q query) String() string {
	if q.tag != "" {
		return q.part + "?" + q.tag
	}
	return q.part + "@faces@" + q.sel
}
