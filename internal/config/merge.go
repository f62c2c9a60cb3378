package config

// Merge deep-merges override onto base and returns a new document.
// Neither input is mutated.
//
// Nested tables are combined recursively. When the two sides disagree on
// shape (table vs anything else) the override side wins and the base value
// is treated as an empty table. Scalars, arrays, and date/time values from
// override replace the base value wholesale; arrays are never concatenated.
func Merge(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range override {
		overrideTable, isTable := value.(map[string]any)
		if !isTable {
			merged[key] = value
			continue
		}
		baseTable, _ := merged[key].(map[string]any)
		merged[key] = Merge(baseTable, overrideTable)
	}
	return merged
}
