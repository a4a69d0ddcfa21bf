package toml

import "fmt"

// Toml holds the decoded state of a toml config file.
type Toml map[string]any

// RecursiveModify applies modifications at the current depth, then recurses into nested tables.
// Tables present in modifications but missing from c are created.
func RecursiveModify(c map[string]any, modifications Toml) error {
	for key, value := range modifications {
		sub, ok := asTable(value)
		if !ok {
			c[key] = value
			continue
		}
		existing, ok := asTable(c[key])
		if !ok {
			if _, present := c[key]; present {
				return fmt.Errorf("cannot merge table %q into a non-table value", key)
			}
			existing = make(map[string]any)
		}
		if err := RecursiveModify(existing, sub); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c[key] = existing
	}
	return nil
}

func asTable(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case Toml:
		return t, true
	case map[string]any:
		return t, true
	default:
		return nil, false
	}
}
