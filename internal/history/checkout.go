package history

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/rowanvale/savepoint/internal/record"
)

// CategoryChanges holds the rules of one category within an object group,
// most recently touched first.
type CategoryChanges struct {
	Category record.Category `json:"category"`
	Rules    []RuleChange    `json:"rules"`
}

// ObjectChanges groups a window's changes under their owning object.
// Application- and theme-level changes, which have no owning object, land
// in a trailing group with ObjectID 0.
type ObjectChanges struct {
	ObjectID   int64             `json:"object_id"`
	ObjectName string            `json:"object_name,omitempty"`
	Categories []CategoryChanges `json:"categories"`
}

// categoryOrder fixes the panel order of categories within a group.
var categoryOrder = []record.Category{
	record.CategoryData,
	record.CategoryUI,
	record.CategoryWorkflow,
	record.CategoryApp,
	record.CategoryTheme,
}

// CheckoutSummary aggregates changes across every checkpoint in the scope
// into one de-duplicated view:
//
//   - the same row touched by several checkpoints appears exactly once,
//     reflecting the most recent checkpoint that touched it;
//   - results group by owning object, then category;
//   - object groups sort alphabetically by resolved object name (the
//     unowned group sorts last), rules within a category by recency.
func (p *Projector) CheckoutSummary(ctx context.Context, scopeID, applicationID int64) ([]ObjectChanges, error) {
	withChanges, err := p.HistoryWithChanges(ctx, scopeID, applicationID)
	if err != nil {
		return nil, fmt.Errorf("checkout summary: %w", err)
	}

	// HistoryWithChanges returns checkpoints newest first and rules within
	// each checkpoint in recency order, so the first occurrence of a row
	// key is always the most recent touch.
	seen := make(map[rowKey]bool)
	var changes []RuleChange
	for _, cp := range withChanges {
		for _, change := range cp.UpdatedRules {
			key := rowKey{change.tableName, change.ID}
			if seen[key] {
				continue
			}
			seen[key] = true
			changes = append(changes, change)
		}
	}
	if len(changes) == 0 {
		return []ObjectChanges{}, nil
	}

	objectNames, err := p.resolveObjectNames(ctx, changes)
	if err != nil {
		return nil, err
	}

	byObject := make(map[int64]map[record.Category][]RuleChange)
	for _, change := range changes {
		cats, ok := byObject[change.objectID]
		if !ok {
			cats = make(map[record.Category][]RuleChange)
			byObject[change.objectID] = cats
		}
		cats[change.Category] = append(cats[change.Category], change)
	}

	groups := make([]ObjectChanges, 0, len(byObject))
	for objectID, cats := range byObject {
		group := ObjectChanges{
			ObjectID:   objectID,
			ObjectName: objectNames[objectID],
		}
		for _, cat := range categoryOrder {
			rules := cats[cat]
			if len(rules) == 0 {
				continue
			}
			sortByRecency(rules)
			group.Categories = append(group.Categories, CategoryChanges{
				Category: cat,
				Rules:    rules,
			})
		}
		groups = append(groups, group)
	}

	sortGroups(groups)
	return groups, nil
}

// resolveObjectNames batch-fetches the current names of every owning object
// referenced by the change set. An object row may itself be in the change
// set (renamed or deleted); the change's own resolved name wins over a
// missing current row.
func (p *Projector) resolveObjectNames(ctx context.Context, changes []RuleChange) (map[int64]string, error) {
	var ids []int64
	seen := make(map[int64]bool)
	for _, change := range changes {
		if change.objectID == 0 || seen[change.objectID] {
			continue
		}
		seen[change.objectID] = true
		ids = append(ids, change.objectID)
	}
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}

	rows, err := p.store.RowsByIDs(ctx, record.TableObjects, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve object names: %w", err)
	}

	names := make(map[int64]string, len(rows))
	for id, row := range rows {
		names[id] = row.Name()
	}

	// Fall back to the change set itself for objects no longer present.
	for _, change := range changes {
		if change.tableName != record.TableObjects {
			continue
		}
		if _, ok := names[change.ID]; !ok {
			names[change.ID] = change.Name
		}
	}

	return names, nil
}

// sortByRecency orders rules most recently touched first, with the logical
// seq as tiebreaker for same-instant entries.
func sortByRecency(rules []RuleChange) {
	sort.SliceStable(rules, func(i, j int) bool {
		if !rules[i].createdAt.Equal(rules[j].createdAt) {
			return rules[i].createdAt.After(rules[j].createdAt)
		}
		return rules[i].seq > rules[j].seq
	})
}

// sortGroups orders object groups alphabetically by resolved name using
// locale-aware collation, so "Émile" files next to "Emile" instead of after
// "Z". The unowned group (ObjectID 0) always sorts last.
func sortGroups(groups []ObjectChanges) {
	coll := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if (a.ObjectID == 0) != (b.ObjectID == 0) {
			return b.ObjectID == 0
		}
		if cmp := coll.CompareString(a.ObjectName, b.ObjectName); cmp != 0 {
			return cmp < 0
		}
		return a.ObjectID < b.ObjectID
	})
}
