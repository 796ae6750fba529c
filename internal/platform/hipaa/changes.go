package hipaa

import (
	"reflect"
	"sort"
)

// Changes returns the sorted names of fields whose values differ between
// before and after. Only names are returned; values are not audited.
func Changes(before, after map[string]any) []string {
	var changed []string
	for k, v := range after {
		if old, ok := before[k]; !ok || !reflect.DeepEqual(old, v) {
			changed = append(changed, k)
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// UpdatedFields is the payload stored as new_data on UPDATE entries.
type UpdatedFields struct {
	UpdatedFields []string `json:"updatedFields"`
}
