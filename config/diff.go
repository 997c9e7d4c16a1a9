package config

import "reflect"

// changedFields lists the top-level struct fields that differ between old
// and new. Non-struct values report "*" when they differ.
func changedFields(old, new any) []string {
	ov, nv := reflect.Indirect(reflect.ValueOf(old)), reflect.Indirect(reflect.ValueOf(new))
	if ov.Kind() != reflect.Struct || ov.Type() != nv.Type() {
		if reflect.DeepEqual(old, new) {
			return nil
		}
		return []string{"*"}
	}

	var changed []string
	for i := 0; i < ov.NumField(); i++ {
		f := ov.Type().Field(i)
		if !f.IsExported() {
			continue
		}
		if !reflect.DeepEqual(ov.Field(i).Interface(), nv.Field(i).Interface()) {
			changed = append(changed, f.Name)
		}
	}
	return changed
}
