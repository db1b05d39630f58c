// Package comparator diffs directory listings against catalogued assets.
//
// Every function is pure: no I/O, no state. File names are compared
// case-insensitively and results keep the order of the input they were
// taken from.
package comparator
