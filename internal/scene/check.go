/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"errors"
	"fmt"

	"pagecraft/internal/domain"
)

// CheckTree verifies the tree invariant for every page: each reachable
// element other than the root names its parent, appears in that parent's
// children exactly once, and no element is reached twice (no cycles).
func (s *Store) CheckTree() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CheckDocument(&s.doc)
}

// CheckDocument is CheckTree for a detached document.
func CheckDocument(d *domain.Document) error {
	var errs []error
	seen := map[string]bool{}
	for _, p := range d.Pages {
		root, ok := d.Elements[p.RootElementID]
		if !ok {
			errs = append(errs, fmt.Errorf("page %s: root %s missing", p.PageID, p.RootElementID))
			continue
		}
		if root.ParentID != "" {
			errs = append(errs, fmt.Errorf("page %s: root %s has parent %s", p.PageID, root.ElementID, root.ParentID))
		}
		stack := []string{root.ElementID}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen[id] {
				errs = append(errs, fmt.Errorf("element %s reached twice", id))
				continue
			}
			seen[id] = true
			el := d.Elements[id]
			counts := map[string]int{}
			for _, cid := range el.Children {
				counts[cid]++
			}
			for cid, n := range counts {
				c, ok := d.Elements[cid]
				if !ok {
					errs = append(errs, fmt.Errorf("element %s: child %s missing", id, cid))
					continue
				}
				if n != 1 {
					errs = append(errs, fmt.Errorf("element %s: child %s listed %d times", id, cid, n))
				}
				if c.ParentID != id {
					errs = append(errs, fmt.Errorf("element %s: parent is %q, listed under %s", cid, c.ParentID, id))
				}
				stack = append(stack, cid)
			}
		}
	}
	return errors.Join(errs...)
}
