package tools

import (
	"context"
	"fmt"

	"github.com/rowanvale/savepoint/internal/engine"
	"github.com/rowanvale/savepoint/internal/record"
)

// Tool names as recorded in a checkpoint's tools_executed list.
const (
	ToolSaveFields        = "save_fields"
	ToolDeleteField       = "delete_field"
	ToolSaveView          = "save_view"
	ToolDeleteView        = "delete_view"
	ToolSaveObject        = "save_object"
	ToolDeleteObject      = "delete_object"
	ToolSaveApplication   = "save_application"
	ToolDeleteApplication = "delete_application"
	ToolSaveTheme         = "save_theme"
	ToolDeleteTheme       = "delete_theme"
	ToolSaveDecisionTable = "save_decision_table"
	ToolDeleteDecisionTbl = "delete_decision_table"
)

// Catalog exposes the wrapped mutation tools.
type Catalog struct {
	capture *engine.Capture
}

// NewCatalog creates the tool catalog over a capture wrapper.
func NewCatalog(capture *engine.Capture) *Catalog {
	return &Catalog{capture: capture}
}

// SaveFields saves a batch of field rows, one undo entry per row in input
// order. Mixed batches are fine: rows with ids update, rows without insert
// (or upsert by natural key under IntentAuto).
func (c *Catalog) SaveFields(ctx context.Context, rows []record.Row, intent engine.Intent) ([]engine.SaveResult, error) {
	return c.capture.SaveMany(ctx, ToolSaveFields, record.TableFields, rows, intent)
}

// DeleteField deletes a field row by id.
func (c *Catalog) DeleteField(ctx context.Context, id int64) error {
	return c.capture.Delete(ctx, ToolDeleteField, record.TableFields, id)
}

// SaveView saves a single view row.
func (c *Catalog) SaveView(ctx context.Context, row record.Row, intent engine.Intent) (engine.SaveResult, error) {
	return c.capture.Save(ctx, ToolSaveView, record.TableViews, row, intent)
}

// DeleteView deletes a view row by id.
func (c *Catalog) DeleteView(ctx context.Context, id int64) error {
	return c.capture.Delete(ctx, ToolDeleteView, record.TableViews, id)
}

// SaveObject saves a single object row.
func (c *Catalog) SaveObject(ctx context.Context, row record.Row, intent engine.Intent) (engine.SaveResult, error) {
	return c.capture.Save(ctx, ToolSaveObject, record.TableObjects, row, intent)
}

// DeleteObject deletes an object row by id.
func (c *Catalog) DeleteObject(ctx context.Context, id int64) error {
	return c.capture.Delete(ctx, ToolDeleteObject, record.TableObjects, id)
}

// SaveApplication saves a single application row.
func (c *Catalog) SaveApplication(ctx context.Context, row record.Row, intent engine.Intent) (engine.SaveResult, error) {
	return c.capture.Save(ctx, ToolSaveApplication, record.TableApplications, row, intent)
}

// DeleteApplication deletes an application row by id.
func (c *Catalog) DeleteApplication(ctx context.Context, id int64) error {
	return c.capture.Delete(ctx, ToolDeleteApplication, record.TableApplications, id)
}

// SaveTheme saves a single theme row.
func (c *Catalog) SaveTheme(ctx context.Context, row record.Row, intent engine.Intent) (engine.SaveResult, error) {
	return c.capture.Save(ctx, ToolSaveTheme, record.TableThemes, row, intent)
}

// DeleteTheme deletes a theme row by id.
func (c *Catalog) DeleteTheme(ctx context.Context, id int64) error {
	return c.capture.Delete(ctx, ToolDeleteTheme, record.TableThemes, id)
}

// SaveDecisionTable saves a single decision-table row.
func (c *Catalog) SaveDecisionTable(ctx context.Context, row record.Row, intent engine.Intent) (engine.SaveResult, error) {
	return c.capture.Save(ctx, ToolSaveDecisionTable, record.TableDecisionTables, row, intent)
}

// DeleteDecisionTable deletes a decision-table row by id.
func (c *Catalog) DeleteDecisionTable(ctx context.Context, id int64) error {
	return c.capture.Delete(ctx, ToolDeleteDecisionTbl, record.TableDecisionTables, id)
}

// Invocation is the generic argument shape for name-based dispatch, used by
// outer surfaces (MCP adapters, scenario harness) that address tools by
// name instead of method.
type Invocation struct {
	Rows   []record.Row
	RowID  int64
	Intent engine.Intent
}

// Result is the generic return shape of a dispatched tool.
type Result struct {
	Saved []engine.SaveResult
}

// Invoke dispatches a tool by name. Unknown names return an error; the
// catalog does no fuzzy matching.
func (c *Catalog) Invoke(ctx context.Context, tool string, inv Invocation) (Result, error) {
	intent := inv.Intent
	if intent == "" {
		intent = engine.IntentAuto
	}

	switch tool {
	case ToolSaveFields:
		saved, err := c.SaveFields(ctx, inv.Rows, intent)
		return Result{Saved: saved}, err
	case ToolSaveView, ToolSaveObject, ToolSaveApplication, ToolSaveTheme, ToolSaveDecisionTable:
		if len(inv.Rows) != 1 {
			return Result{}, fmt.Errorf("tool %s expects exactly one row, got %d", tool, len(inv.Rows))
		}
		res, err := c.saveByName(ctx, tool, inv.Rows[0], intent)
		if err != nil {
			return Result{}, err
		}
		return Result{Saved: []engine.SaveResult{res}}, nil
	case ToolDeleteField, ToolDeleteView, ToolDeleteObject, ToolDeleteApplication, ToolDeleteTheme, ToolDeleteDecisionTbl:
		return Result{}, c.deleteByName(ctx, tool, inv.RowID)
	default:
		return Result{}, fmt.Errorf("unknown tool %q", tool)
	}
}

func (c *Catalog) saveByName(ctx context.Context, tool string, row record.Row, intent engine.Intent) (engine.SaveResult, error) {
	switch tool {
	case ToolSaveView:
		return c.SaveView(ctx, row, intent)
	case ToolSaveObject:
		return c.SaveObject(ctx, row, intent)
	case ToolSaveApplication:
		return c.SaveApplication(ctx, row, intent)
	case ToolSaveTheme:
		return c.SaveTheme(ctx, row, intent)
	default:
		return c.SaveDecisionTable(ctx, row, intent)
	}
}

func (c *Catalog) deleteByName(ctx context.Context, tool string, id int64) error {
	switch tool {
	case ToolDeleteField:
		return c.DeleteField(ctx, id)
	case ToolDeleteView:
		return c.DeleteView(ctx, id)
	case ToolDeleteObject:
		return c.DeleteObject(ctx, id)
	case ToolDeleteApplication:
		return c.DeleteApplication(ctx, id)
	case ToolDeleteTheme:
		return c.DeleteTheme(ctx, id)
	default:
		return c.DeleteDecisionTable(ctx, id)
	}
}

// Names returns every tool name the catalog dispatches, in stable order.
func Names() []string {
	return []string{
		ToolSaveFields, ToolDeleteField,
		ToolSaveView, ToolDeleteView,
		ToolSaveObject, ToolDeleteObject,
		ToolSaveApplication, ToolDeleteApplication,
		ToolSaveTheme, ToolDeleteTheme,
		ToolSaveDecisionTable, ToolDeleteDecisionTbl,
	}
}
