package validators

// Operators is the enumerated update-operator vocabulary used by the `data`
// merge check and by `query`'s operator-stripping step (spec.md §9 design
// notes: "must be loaded from an enumerated table ... keep it as data, not
// code"). Order is the order they appear in spec.md and carries no
// semantic weight.
var Operators = []string{
	"$set", "$inc", "$push", "$pull", "$unset", "$pop", "$mul", "$rename",
	"$min", "$max", "$each",
	"$or", "$and", "$not", "$nor", "$in", "$nin",
	"$eq", "$neq", "$gt", "$gte", "$lt", "$lte",
	"$exists", "$size", "$all", "$regex", "$elemMatch",
}

var operatorSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Operators))
	for _, op := range Operators {
		m[op] = struct{}{}
	}
	return m
}()

// IsOperator reports whether key is one of the recognized update/query
// operators.
func IsOperator(key string) bool {
	_, ok := operatorSet[key]
	return ok
}

// HasOperator reports whether any top-level key of data is a recognized
// operator.
func HasOperator(data map[string]any) bool {
	for k := range data {
		if IsOperator(k) {
			return true
		}
	}
	return false
}

// Flatten merges operator sub-mappings one level up: {$set: {a:1}, b:2}
// becomes {a:1, b:2}. Non-operator keys pass through unchanged; when an
// operator's value isn't itself a mapping, it is dropped from the flattened
// view (it contributes no field to validate).
func Flatten(data map[string]any) map[string]any {
	flat := make(map[string]any, len(data))
	for k, v := range data {
		if !IsOperator(k) {
			flat[k] = v
			continue
		}
		sub, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for fk, fv := range sub {
			flat[fk] = fv
		}
	}
	return flat
}

// StripOperatorKeys returns the subset of a query's top-level keys that are
// not recognized operators, per §4.3.3's "operator keys ... are transparently
// stripped when enumerating input fields".
func StripOperatorKeys(query map[string]any) []string {
	out := make([]string, 0, len(query))
	for k := range query {
		if !IsOperator(k) {
			out = append(out, k)
		}
	}
	return out
}
