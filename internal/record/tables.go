package record

// Entity table names. These are the stable persistence contract between the
// capture layer and the mutation catalog - tools address rows by table name
// and the undo log stores the same names.
const (
	TableFields         = "fields"
	TableViews          = "views"
	TableObjects        = "objects"
	TableApplications   = "applications"
	TableThemes         = "themes"
	TableDecisionTables = "decision_tables"
)

// RuleKind is the human-facing entity type shown in change summaries.
type RuleKind string

const (
	KindField         RuleKind = "Field"
	KindView          RuleKind = "View"
	KindObject        RuleKind = "Object"
	KindApplication   RuleKind = "Application"
	KindTheme         RuleKind = "Theme"
	KindDecisionTable RuleKind = "DecisionTable"
)

// Category groups rule kinds for the checkout panel.
type Category string

const (
	CategoryData     Category = "data"
	CategoryUI       Category = "ui"
	CategoryWorkflow Category = "workflow"
	CategoryApp      Category = "app"
	CategoryTheme    Category = "theme"
)

// tableInfo ties a table name to its display kind and checkout category.
type tableInfo struct {
	kind     RuleKind
	category Category
}

// tables is the fixed registry of entity tables eligible for capture.
// Tables() enumerates them in tableOrder, not map order.
var tables = map[string]tableInfo{
	TableFields:       {KindField, CategoryData},
	TableViews:        {KindView, CategoryUI},
	TableObjects:      {KindObject, CategoryWorkflow},
	TableApplications: {KindApplication, CategoryApp},
	TableThemes:       {KindTheme, CategoryTheme},
	// Decision tables live in the data panel next to fields.
	TableDecisionTables: {KindDecisionTable, CategoryData},
}

// tableOrder preserves a stable enumeration order for Tables().
var tableOrder = []string{
	TableFields,
	TableViews,
	TableObjects,
	TableApplications,
	TableThemes,
	TableDecisionTables,
}

// KnownTable reports whether name is one of the registered entity tables.
func KnownTable(name string) bool {
	_, ok := tables[name]
	return ok
}

// Tables returns the registered entity table names in stable order.
func Tables() []string {
	out := make([]string, len(tableOrder))
	copy(out, tableOrder)
	return out
}

// KindForTable returns the display kind for a table name.
// Returns "" for unknown tables.
func KindForTable(name string) RuleKind {
	return tables[name].kind
}

// CategoryForTable returns the checkout category for a table name.
// Returns "" for unknown tables.
func CategoryForTable(name string) Category {
	return tables[name].category
}
