// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc

import "iter"

// Iter is a lazy, bidirectional sequence over an indexed collection.
// Elements are fetched on demand; seeking only moves the cursors and reads
// the element it lands on. The remaining window is [next, max).
type Iter[T any] struct {
	next int
	max  int
	at   func(int) (T, error)
}

// NewIter builds an iterator from a size getter and an element getter.
// The size is read once, here.
func NewIter[T any](size func() (int, error), at func(int) (T, error)) (*Iter[T], error) {
	n, err := size()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	return &Iter[T]{max: n, at: at}, nil
}

// Next returns the element at the front of the window. ok is false once the
// window is empty. A failed read still consumes its position.
func (it *Iter[T]) Next() (v T, ok bool, err error) {
	if it.next >= it.max {
		return v, false, nil
	}
	i := it.next
	it.next++
	v, err = it.at(i)
	return v, true, err
}

// Nth skips n elements without reading them and returns the following one
func (it *Iter[T]) Nth(n int) (T, bool, error) {
	if n > 0 {
		it.next += min(n, it.max-it.next)
	}
	return it.Next()
}

// NextBack returns the element at the back of the window
func (it *Iter[T]) NextBack() (v T, ok bool, err error) {
	if it.next >= it.max {
		return v, false, nil
	}
	it.max--
	v, err = it.at(it.max)
	return v, true, err
}

// NthBack skips n elements from the back and returns the one before them
func (it *Iter[T]) NthBack(n int) (T, bool, error) {
	if n > 0 {
		it.max -= min(n, it.max-it.next)
	}
	return it.NextBack()
}

// Len returns the number of elements left
func (it *Iter[T]) Len() int {
	return it.max - it.next
}

// Count consumes the iterator without reading and returns how many
// elements were left
func (it *Iter[T]) Count() int {
	n := it.Len()
	it.next = it.max
	return n
}

// Last reads only the final element and exhausts the iterator
func (it *Iter[T]) Last() (v T, ok bool, err error) {
	v, ok, err = it.NextBack()
	it.next = it.max
	return v, ok, err
}

// All yields the remaining elements front to back
func (it *Iter[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, ok, err := it.Next()
			if !ok || !yield(v, err) {
				return
			}
		}
	}
}

// Backward yields the remaining elements back to front
func (it *Iter[T]) Backward() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, ok, err := it.NextBack()
			if !ok || !yield(v, err) {
				return
			}
		}
	}
}
