package validators

// Non-match message text is part of the external contract (spec.md §7,
// §8: "Error messages are literal strings ... tests assert on them").
// Two spellings below preserve verbatim typos from the source system per
// spec.md's design notes (c): "evaluted" and the stray trailing "]" in the
// query field-not-allowed message.
const (
	conditionNonMatch = "condition evaluted to false"

	dataUndefined = "data is undefined"
	dataNotObject = "data must be an object"
	dataEmpty     = "data is empty"

	dataMergeRequiresOperator = "data must contain operator while `merge` with true"
	dataMergeForbidsOperator  = "data must not contain any operator"

	queryUndefined = "query is undefined"
	queryNotObject = "query must be an object"

	multiInsertDenied = "multi insert operation denied"
	multiOpDenied      = "multi operation denied"
)

func queryFieldNotAllowed(field string) string {
	return "the field '" + field + "' is NOT allowed]"
}
