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

package series

import "github.com/bertrandchenal/lakota/schema"

// keyInterval is an inclusive [start, stop] range over a series' primary
// key, the unit interval subtraction operates on.
type keyInterval struct {
	start, stop []schema.Value
}

func cmp(s *schema.Schema, a, b []schema.Value) int {
	c, err := schema.CompareKeyTuples(s, a, b)
	if err != nil {
		// Values reaching here were already validated by schema.NewFrame
		// or round-tripped through MarshalValues/UnmarshalValues, so a
		// comparison failure means stored data no longer matches the
		// series' own schema.
		panic(err)
	}
	return c
}

func overlaps(s *schema.Schema, a, b keyInterval) bool {
	return cmp(s, a.start, b.stop) <= 0 && cmp(s, b.start, a.stop) <= 0
}

func contains(s *schema.Schema, outer, inner keyInterval) bool {
	return cmp(s, outer.start, inner.start) <= 0 && cmp(s, inner.stop, outer.stop) <= 0
}

func intersect(s *schema.Schema, a, b keyInterval) keyInterval {
	start := a.start
	if cmp(s, b.start, a.start) > 0 {
		start = b.start
	}
	stop := a.stop
	if cmp(s, b.stop, a.stop) < 0 {
		stop = b.stop
	}
	return keyInterval{start: start, stop: stop}
}

func within(s *schema.Schema, key []schema.Value, iv keyInterval) bool {
	return cmp(s, iv.start, key) <= 0 && cmp(s, key, iv.stop) <= 0
}
