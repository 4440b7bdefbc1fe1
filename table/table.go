package table

import "fmt"

// Shape is one row of a shape table.
type Shape struct {
	ID      int64     `parquet:"id"`
	Payload []float32 `parquet:"payload"`
}

type options struct {
	offset int
	table  string
}

// Option configures a table store.
type Option func(*options)

// WithOffset sets the id of the first row of the output matrices.
// Default 1.
func WithOffset(offset int) Option {
	return func(o *options) { o.offset = offset }
}

// WithTable sets the SQLite table name. Default "shapes".
func WithTable(name string) Option {
	return func(o *options) { o.table = name }
}

func applyOptions(optFns []Option) options {
	o := options{offset: 1, table: "shapes"}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

func location(source string, id int) string {
	return fmt.Sprintf("%s#%d", source, id)
}

func widen(p []float32) []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = float64(v)
	}
	return out
}
