package spectral

import (
	"fmt"

	"github.com/forest-guardian/fractional-cover/internal/failure"
)

// Number is the set of cell types a Grid can hold.
type Number interface {
	~int32 | ~float32 | ~float64
}

// Grid is a row-major raster of one band.
type Grid[T Number] struct {
	Rows int
	Cols int
	Data []T
}

// FloatGrid holds reflectance or index values.
type FloatGrid = Grid[float64]

// ClassGrid holds land-cover class codes.
type ClassGrid = Grid[int32]

func NewGrid[T Number](rows, cols int) Grid[T] {
	return Grid[T]{Rows: rows, Cols: cols, Data: make([]T, rows*cols)}
}

// GridFromRows builds a grid from a slice of equally long rows.
func GridFromRows[T Number](rows [][]T) (Grid[T], error) {
	if len(rows) == 0 {
		return Grid[T]{}, nil
	}
	cols := len(rows[0])
	g := NewGrid[T](len(rows), cols)
	for y, row := range rows {
		if len(row) != cols {
			return Grid[T]{}, fmt.Errorf("row %d has %d columns, expected %d", y, len(row), cols)
		}
		copy(g.Data[y*cols:], row)
	}
	return g, nil
}

func (g Grid[T]) At(row, col int) T       { return g.Data[row*g.Cols+col] }
func (g Grid[T]) Set(row, col int, v T)   { g.Data[row*g.Cols+col] = v }
func (g Grid[T]) Len() int                { return g.Rows * g.Cols }
func (g Grid[T]) Shape() (rows, cols int) { return g.Rows, g.Cols }

// RowRange returns the cells of rows [start, end) without copying.
func (g Grid[T]) RowRange(start, end int) []T {
	return g.Data[start*g.Cols : end*g.Cols]
}

// Validate checks that the backing slice matches the declared shape.
func (g Grid[T]) Validate(name string) error {
	if g.Rows < 0 || g.Cols < 0 {
		return fmt.Errorf("%s has negative dimensions %dx%d", name, g.Rows, g.Cols)
	}
	if len(g.Data) != g.Rows*g.Cols {
		return fmt.Errorf("%s holds %d cells, expected %dx%d=%d", name, len(g.Data), g.Rows, g.Cols, g.Rows*g.Cols)
	}
	return nil
}

// CheckShape returns a ShapeMismatchError when g and ref differ in size.
func CheckShape[T, U Number](name string, g Grid[T], refName string, ref Grid[U]) error {
	if g.Rows != ref.Rows || g.Cols != ref.Cols {
		return &failure.ShapeMismatchError{
			Name: name, Rows: g.Rows, Cols: g.Cols,
			WantName: refName, WantRows: ref.Rows, WantCols: ref.Cols,
		}
	}
	return nil
}
