package blocks

import (
	"errors"
	"slices"
)

var ErrOutOfRange = errors.New("position out of range")

// Move returns a copy of items with the element at from placed at index to.
// The relative order of the other elements is kept.
func Move[T any](items []T, from, to int) ([]T, error) {
	if from < 0 || from >= len(items) || to < 0 || to >= len(items) {
		return nil, ErrOutOfRange
	}
	out := slices.Clone(items)
	if from == to {
		return out, nil
	}
	item := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, item), nil
}

// Remove returns a copy of items without the element at i.
func Remove[T any](items []T, i int) ([]T, error) {
	if i < 0 || i >= len(items) {
		return nil, ErrOutOfRange
	}
	return slices.Delete(slices.Clone(items), i, i+1), nil
}
