// Package testutil provides testing utilities for strata
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/strata/pkg/columnar"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// NewBatch builds a batch from a schema and row values. Each row must have
// one value per field; columnar.Null() marks a null cell.
func NewBatch(t *testing.T, fields []columnar.Field, rows ...[]columnar.Value) *columnar.Batch {
	t.Helper()
	b := columnar.NewBatchFromFields(fields, len(rows))
	for i, row := range rows {
		if len(row) != len(fields) {
			t.Fatalf("row %d has %d values, want %d", i, len(row), len(fields))
		}
		b.AppendValues(row)
	}
	return b
}

// Floats builds a single float64 column batch; nil entries are null.
func Floats(t *testing.T, name string, vals ...*float64) *columnar.Batch {
	t.Helper()
	rows := make([][]columnar.Value, len(vals))
	for i, v := range vals {
		if v == nil {
			rows[i] = []columnar.Value{columnar.Null()}
		} else {
			rows[i] = []columnar.Value{columnar.Float(*v)}
		}
	}
	return NewBatch(t, []columnar.Field{{Name: name, Type: columnar.TypeFloat64}}, rows...)
}

// F returns a pointer to v for use with Floats.
func F(v float64) *float64 { return &v }

// Column returns every valid value of the named column, failing the test when
// the column does not exist.
func Column(t *testing.T, b *columnar.Batch, name string) []columnar.Value {
	t.Helper()
	if b == nil {
		return nil
	}
	col := b.ColIndex(name)
	if col < 0 {
		t.Fatalf("column %q not found in %v", name, b.Fields())
	}
	out := make([]columnar.Value, b.Rows())
	for r := range out {
		out[r] = b.Value(r, col)
	}
	return out
}

// Rows returns all valid rows of b as value slices.
func Rows(b *columnar.Batch) [][]columnar.Value {
	if b == nil {
		return nil
	}
	out := make([][]columnar.Value, b.Rows())
	for r := range out {
		out[r] = b.Row(r)
	}
	return out
}

// Names returns the column names of b.
func Names(b *columnar.Batch) []string {
	names := make([]string, b.NumCols())
	for i := range names {
		names[i] = b.Name(i)
	}
	return names
}

// AssertEventually asserts that a condition becomes true within the specified timeout.
// It checks the condition every 10ms until it succeeds or the timeout expires.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
