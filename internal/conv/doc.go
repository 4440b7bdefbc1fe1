// Package conv provides checked integer conversions.
//
// Use them where a value crosses a width boundary that the input does not
// bound: ids read from tables and row numbers stored in 32-bit bitmaps.
// Loop indices and other values bounded by construction use plain casts.
package conv
