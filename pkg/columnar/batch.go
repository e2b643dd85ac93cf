package columnar

import (
	"sync/atomic"

	"github.com/ajitpratap0/strata/pkg/pool"
)

const minCapacity = 16

// column is a typed vector plus one null byte per row. Only the slice that
// matches typ is allocated.
type column struct {
	name   string
	typ    Type
	typed  bool
	bools  []bool
	ints   []int64 // int64 and timestamp
	dates  []int32
	floats []float64
	strs   []string
	nulls  []byte
}

func (c *column) resize(capacity int) {
	grow := func(n int) int { return capacity - n }
	switch c.typ {
	case TypeBool:
		c.bools = append(c.bools, make([]bool, grow(len(c.bools)))...)
	case TypeInt64, TypeTimestamp:
		c.ints = append(c.ints, make([]int64, grow(len(c.ints)))...)
	case TypeDate:
		c.dates = append(c.dates, make([]int32, grow(len(c.dates)))...)
	case TypeFloat64:
		c.floats = append(c.floats, make([]float64, grow(len(c.floats)))...)
	case TypeString:
		c.strs = append(c.strs, make([]string, grow(len(c.strs)))...)
	}
	old := len(c.nulls)
	c.nulls = append(c.nulls, make([]byte, capacity-old)...)
	for i := old; i < capacity; i++ {
		c.nulls[i] = 1
	}
}

// Batch is a bounded set of rows stored column by column. Every string cell
// is copied into the batch's arena, so a batch never aliases the input it was
// built from.
//
// Rows beyond Rows() but below Capacity() are writable; they start out null.
// Getters outside the capacity, or on a column of another type, return the
// zero value. Setters outside the capacity or of the wrong type do nothing.
type Batch struct {
	cols     []column
	rows     int
	capacity int
	arena    *pool.Arena
}

var arenaBlockSize atomic.Int64

// SetArenaBlockSize sets the string arena block size for batches created
// afterwards. Zero restores the default.
func SetArenaBlockSize(n int) { arenaBlockSize.Store(int64(n)) }

// NewBatch creates a batch with nCols untyped columns and room for capacity
// rows.
func NewBatch(nCols, capacity int) *Batch {
	if capacity < 0 {
		capacity = 0
	}
	return &Batch{
		cols:     make([]column, nCols),
		capacity: capacity,
		arena:    pool.NewArena(int(arenaBlockSize.Load())),
	}
}

// NewBatchFromFields creates a batch with the given schema.
func NewBatchFromFields(fields []Field, capacity int) *Batch {
	b := NewBatch(len(fields), capacity)
	for i, f := range fields {
		b.SetSchema(i, f.Name, f.Type)
	}
	return b
}

// NewBatchLike creates an empty batch with src's schema.
func NewBatchLike(src *Batch, capacity int) *Batch {
	return NewBatchFromFields(src.Fields(), capacity)
}

// SetSchema names and types a column. The type is fixed once set; later calls
// only rename.
func (b *Batch) SetSchema(col int, name string, t Type) {
	if col < 0 || col >= len(b.cols) {
		return
	}
	c := &b.cols[col]
	c.name = name
	if c.typed {
		return
	}
	c.typ = t
	c.typed = true
	c.resize(b.capacity)
}

// AddColumn appends a typed column and returns its index.
func (b *Batch) AddColumn(name string, t Type) int {
	b.cols = append(b.cols, column{})
	idx := len(b.cols) - 1
	b.SetSchema(idx, name, t)
	return idx
}

// Rename changes a column name.
func (b *Batch) Rename(col int, name string) {
	if col >= 0 && col < len(b.cols) {
		b.cols[col].name = name
	}
}

// NumCols returns the number of columns.
func (b *Batch) NumCols() int { return len(b.cols) }

// Rows returns the number of valid rows.
func (b *Batch) Rows() int { return b.rows }

// Capacity returns the number of allocated rows.
func (b *Batch) Capacity() int { return b.capacity }

// SetRows sets the valid row count, growing capacity when needed.
func (b *Batch) SetRows(n int) {
	if n < 0 {
		n = 0
	}
	b.EnsureCapacity(n)
	b.rows = n
}

// Name returns the name of column col.
func (b *Batch) Name(col int) string {
	if col < 0 || col >= len(b.cols) {
		return ""
	}
	return b.cols[col].name
}

// Type returns the type of column col.
func (b *Batch) Type(col int) Type {
	if col < 0 || col >= len(b.cols) {
		return TypeNull
	}
	return b.cols[col].typ
}

// Fields returns the schema.
func (b *Batch) Fields() []Field {
	fields := make([]Field, len(b.cols))
	for i := range b.cols {
		fields[i] = Field{Name: b.cols[i].name, Type: b.cols[i].typ}
	}
	return fields
}

// ColIndex returns the first column named name, or -1.
func (b *Batch) ColIndex(name string) int {
	for i := range b.cols {
		if b.cols[i].name == name {
			return i
		}
	}
	return -1
}

// EnsureCapacity grows every column so that at least minRows rows fit.
// Capacity doubles from 16; new rows are null.
func (b *Batch) EnsureCapacity(minRows int) {
	if minRows <= b.capacity {
		return
	}
	capacity := b.capacity
	if capacity < minCapacity {
		capacity = minCapacity
	}
	for capacity < minRows {
		capacity *= 2
	}
	for i := range b.cols {
		if b.cols[i].typed {
			b.cols[i].resize(capacity)
		}
	}
	b.capacity = capacity
}

func (b *Batch) cell(row, col int, t Type) *column {
	if row < 0 || row >= b.capacity || col < 0 || col >= len(b.cols) {
		return nil
	}
	c := &b.cols[col]
	if c.typ != t {
		return nil
	}
	return c
}

// IsNull reports whether a cell is null. Out-of-range cells are null.
func (b *Batch) IsNull(row, col int) bool {
	if row < 0 || row >= b.capacity || col < 0 || col >= len(b.cols) {
		return true
	}
	c := &b.cols[col]
	return c.typ == TypeNull || c.nulls[row] != 0
}

// SetNull marks a cell null.
func (b *Batch) SetNull(row, col int) {
	if row < 0 || row >= b.capacity || col < 0 || col >= len(b.cols) || !b.cols[col].typed {
		return
	}
	b.cols[col].nulls[row] = 1
}

// Bool returns a bool cell.
func (b *Batch) Bool(row, col int) bool {
	if c := b.cell(row, col, TypeBool); c != nil {
		return c.bools[row]
	}
	return false
}

// Int64 returns an int64 cell.
func (b *Batch) Int64(row, col int) int64 {
	if c := b.cell(row, col, TypeInt64); c != nil {
		return c.ints[row]
	}
	return 0
}

// Float64 returns a float64 cell.
func (b *Batch) Float64(row, col int) float64 {
	if c := b.cell(row, col, TypeFloat64); c != nil {
		return c.floats[row]
	}
	return 0
}

// Str returns a string cell. The string lives in the batch's arena.
func (b *Batch) Str(row, col int) string {
	if c := b.cell(row, col, TypeString); c != nil {
		return c.strs[row]
	}
	return ""
}

// Date returns a date cell as days since the epoch.
func (b *Batch) Date(row, col int) int32 {
	if c := b.cell(row, col, TypeDate); c != nil {
		return c.dates[row]
	}
	return 0
}

// Timestamp returns a timestamp cell as epoch microseconds.
func (b *Batch) Timestamp(row, col int) int64 {
	if c := b.cell(row, col, TypeTimestamp); c != nil {
		return c.ints[row]
	}
	return 0
}

// SetBool sets a bool cell.
func (b *Batch) SetBool(row, col int, v bool) {
	if c := b.cell(row, col, TypeBool); c != nil {
		c.bools[row] = v
		c.nulls[row] = 0
	}
}

// SetInt64 sets an int64 cell.
func (b *Batch) SetInt64(row, col int, v int64) {
	if c := b.cell(row, col, TypeInt64); c != nil {
		c.ints[row] = v
		c.nulls[row] = 0
	}
}

// SetFloat64 sets a float64 cell.
func (b *Batch) SetFloat64(row, col int, v float64) {
	if c := b.cell(row, col, TypeFloat64); c != nil {
		c.floats[row] = v
		c.nulls[row] = 0
	}
}

// SetStr copies v into the arena and stores it.
func (b *Batch) SetStr(row, col int, v string) {
	if c := b.cell(row, col, TypeString); c != nil {
		c.strs[row] = b.arena.AllocString(v)
		c.nulls[row] = 0
	}
}

// SetDate sets a date cell.
func (b *Batch) SetDate(row, col int, v int32) {
	if c := b.cell(row, col, TypeDate); c != nil {
		c.dates[row] = v
		c.nulls[row] = 0
	}
}

// SetTimestamp sets a timestamp cell.
func (b *Batch) SetTimestamp(row, col int, v int64) {
	if c := b.cell(row, col, TypeTimestamp); c != nil {
		c.ints[row] = v
		c.nulls[row] = 0
	}
}

// Value returns a cell as a detached Value. String payloads still point into
// the batch's arena.
func (b *Batch) Value(row, col int) Value {
	if b.IsNull(row, col) {
		return Null()
	}
	c := &b.cols[col]
	switch c.typ {
	case TypeBool:
		return Bool(c.bools[row])
	case TypeInt64:
		return Int(c.ints[row])
	case TypeFloat64:
		return Float(c.floats[row])
	case TypeString:
		return Str(c.strs[row])
	case TypeDate:
		return Date(c.dates[row])
	case TypeTimestamp:
		return Timestamp(c.ints[row])
	}
	return Null()
}

// SetValue stores v, converting it to the column type when they differ.
// A null v, or one that cannot be converted, makes the cell null.
func (b *Batch) SetValue(row, col int, v Value) {
	if row < 0 || row >= b.capacity || col < 0 || col >= len(b.cols) {
		return
	}
	t := b.cols[col].typ
	if v.Type != t {
		var ok bool
		if v, ok = Convert(v, t); !ok {
			b.SetNull(row, col)
			return
		}
	}
	switch v.Type {
	case TypeNull:
		b.SetNull(row, col)
	case TypeBool:
		b.SetBool(row, col, v.B)
	case TypeInt64:
		b.SetInt64(row, col, v.I)
	case TypeFloat64:
		b.SetFloat64(row, col, v.F)
	case TypeString:
		b.SetStr(row, col, v.S)
	case TypeDate:
		b.SetDate(row, col, int32(v.I))
	case TypeTimestamp:
		b.SetTimestamp(row, col, v.I)
	}
}

// Row snapshots every cell of a row.
func (b *Batch) Row(row int) []Value {
	vals := make([]Value, len(b.cols))
	for c := range b.cols {
		vals[c] = b.Value(row, c)
	}
	return vals
}

// AppendValues appends one row built from vals, converting per column.
// Missing trailing values are null.
func (b *Batch) AppendValues(vals []Value) {
	row := b.rows
	b.EnsureCapacity(row + 1)
	for c := range b.cols {
		if c < len(vals) {
			b.SetValue(row, c, vals[c])
		} else {
			b.SetNull(row, c)
		}
	}
	b.rows++
}

// CopyRow deep-copies src's row srcRow into dst's row dstRow across the
// common prefix of columns. Capacity grows as needed; the row count does not
// change.
func CopyRow(dst *Batch, dstRow int, src *Batch, srcRow int) {
	if dstRow < 0 || srcRow < 0 || srcRow >= src.capacity {
		return
	}
	dst.EnsureCapacity(dstRow + 1)
	n := len(dst.cols)
	if len(src.cols) < n {
		n = len(src.cols)
	}
	for c := 0; c < n; c++ {
		s, d := &src.cols[c], &dst.cols[c]
		if !d.typed {
			continue
		}
		if s.typ == TypeNull || s.nulls[srcRow] != 0 {
			d.nulls[dstRow] = 1
			continue
		}
		if s.typ != d.typ {
			dst.SetValue(dstRow, c, src.Value(srcRow, c))
			continue
		}
		switch s.typ {
		case TypeBool:
			d.bools[dstRow] = s.bools[srcRow]
		case TypeInt64, TypeTimestamp:
			d.ints[dstRow] = s.ints[srcRow]
		case TypeDate:
			d.dates[dstRow] = s.dates[srcRow]
		case TypeFloat64:
			d.floats[dstRow] = s.floats[srcRow]
		case TypeString:
			d.strs[dstRow] = dst.arena.AllocString(s.strs[srcRow])
		}
		d.nulls[dstRow] = 0
	}
}

// AppendRow copies src's row srcRow to the end of b.
func (b *Batch) AppendRow(src *Batch, srcRow int) {
	CopyRow(b, b.rows, src, srcRow)
	b.rows++
}

// CopyColumn deep-copies rows [0, src.Rows()) of src column sc into dst
// column dc. Types must match; otherwise values are converted per cell.
func CopyColumn(dst *Batch, dc int, src *Batch, sc int) {
	n := src.rows
	dst.EnsureCapacity(n)
	for r := 0; r < n; r++ {
		if src.Type(sc) == dst.Type(dc) && dst.Type(dc) != TypeString {
			d, s := &dst.cols[dc], &src.cols[sc]
			if s.nulls[r] != 0 {
				d.nulls[r] = 1
				continue
			}
			switch s.typ {
			case TypeBool:
				d.bools[r] = s.bools[r]
			case TypeInt64, TypeTimestamp:
				d.ints[r] = s.ints[r]
			case TypeDate:
				d.dates[r] = s.dates[r]
			case TypeFloat64:
				d.floats[r] = s.floats[r]
			}
			d.nulls[r] = 0
			continue
		}
		dst.SetValue(r, dc, src.Value(r, sc))
	}
}

// Clone deep-copies the valid rows of b into a new batch.
func (b *Batch) Clone() *Batch {
	out := NewBatchLike(b, b.rows)
	for r := 0; r < b.rows; r++ {
		out.AppendRow(b, r)
	}
	return out
}

// ArenaStats reports the footprint of the batch's string arena.
func (b *Batch) ArenaStats() pool.ArenaStats {
	return b.arena.Stats()
}

// Free releases the batch's vectors and arena. The batch must not be used
// afterwards.
func (b *Batch) Free() {
	if b == nil {
		return
	}
	b.arena.Free()
	b.cols = nil
	b.rows = 0
	b.capacity = 0
}
