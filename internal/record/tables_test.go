package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownTable(t *testing.T) {
	for _, name := range Tables() {
		assert.True(t, KnownTable(name), name)
	}
	assert.False(t, KnownTable("widgets"))
	assert.False(t, KnownTable(""))
}

func TestTablesStableOrder(t *testing.T) {
	want := []string{
		TableFields, TableViews, TableObjects,
		TableApplications, TableThemes, TableDecisionTables,
	}
	assert.Equal(t, want, Tables())

	// Returned slice is a copy; mutating it must not poison the registry.
	got := Tables()
	got[0] = "mutated"
	assert.Equal(t, want, Tables())
}

func TestKindAndCategoryForTable(t *testing.T) {
	cases := []struct {
		table    string
		kind     RuleKind
		category Category
	}{
		{TableFields, KindField, CategoryData},
		{TableViews, KindView, CategoryUI},
		{TableObjects, KindObject, CategoryWorkflow},
		{TableApplications, KindApplication, CategoryApp},
		{TableThemes, KindTheme, CategoryTheme},
		{TableDecisionTables, KindDecisionTable, CategoryData},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, KindForTable(tc.table), tc.table)
		assert.Equal(t, tc.category, CategoryForTable(tc.table), tc.table)
	}

	assert.Empty(t, KindForTable("widgets"))
	assert.Empty(t, CategoryForTable("widgets"))
}
