/*
Copyright (C) 2024-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package lkerr defines the store's error kinds as zeebo/errs
// classes, so callers branch on kind (errs.Is / Class.Has) instead of
// matching error strings.
package lkerr

import "github.com/zeebo/errs"

var (
	// NotFound — object or key absent from backend.
	NotFound = errs.Class("not found")
	// IntegrityError — digest mismatch on read, decompression failure, or
	// malformed changelog filename.
	IntegrityError = errs.Class("integrity error")
	// SchemaError — frame violates schema (missing column, wrong dtype,
	// non-monotone key, null key).
	SchemaError = errs.Class("schema error")
	// BackendError — transport or permission failure; potentially retried.
	BackendError = errs.Class("backend error")
	// ConcurrencyNotice — non-fatal: collection has forked heads after a
	// write or pull; caller may merge.
	ConcurrencyNotice = errs.Class("concurrency notice")
)

// Has reports whether err (or any error it wraps) belongs to class.
func Has(class errs.Class, err error) bool {
	if err == nil {
		return false
	}
	// errs.Class.Has matches by class pointer and class here is a copy, so
	// ask the package-level class with the same name.
	for _, c := range []*errs.Class{&NotFound, &IntegrityError, &SchemaError, &BackendError, &ConcurrencyNotice} {
		if *c == class {
			return c.Has(err)
		}
	}
	return class.Has(err)
}
