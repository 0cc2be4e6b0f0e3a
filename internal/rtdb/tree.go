package rtdb

import (
	"encoding/json"
	"fmt"
	"strings"
)

// tree mirrors the subscribed subtree so put/patch events at child paths can
// be turned back into the full value.
type tree struct {
	root any
}

func (t *tree) apply(kind, path string, raw json.RawMessage) error {
	var data any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("rtdb: bad event data at %q: %w", path, err)
		}
	}

	segs := splitPath(path)
	switch kind {
	case "put":
		t.root = setAt(t.root, segs, data)
	case "patch":
		m, ok := data.(map[string]any)
		if !ok {
			return fmt.Errorf("rtdb: patch at %q is not an object", path)
		}
		for k, v := range m {
			t.root = setAt(t.root, append(append([]string(nil), segs...), splitPath(k)...), v)
		}
	}
	return nil
}

func (t *tree) value() (json.RawMessage, error) {
	return json.Marshal(t.root)
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// setAt returns node with v stored under segs. A nil v deletes, and empty
// objects collapse to nil the same way the database prunes them.
func setAt(node any, segs []string, v any) any {
	if len(segs) == 0 {
		return v
	}
	m, ok := node.(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	child := setAt(m[segs[0]], segs[1:], v)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
