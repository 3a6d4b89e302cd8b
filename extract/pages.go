package extract

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var ErrInvalidPageSelection = errors.New("invalid page selection")

var pageRangeRegex = regexp.MustCompile(`^(\d+)(?:\s*-\s*(\d+))?$`)

// maxPageNumber bounds ranges like "1-999999999".
const maxPageNumber = 100000

// PageSelection is a set of 1-based page numbers. A nil PageSelection
// selects all pages.
type PageSelection []int

// ParsePages parses a comma separated list of page numbers and inclusive
// ranges, e.g. "1,3-5". The empty string selects all pages.
func ParsePages(s string) (PageSelection, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	seen := make(map[int]struct{})

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)

		matches := pageRangeRegex.FindStringSubmatch(part)
		if matches == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPageSelection, part)
		}

		first, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPageSelection, part, err)
		}

		last := first
		if matches[2] != "" {
			last, err = strconv.Atoi(matches[2])
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPageSelection, part, err)
			}
		}

		if first < 1 || last < first || last > maxPageNumber {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPageSelection, part)
		}

		for p := first; p <= last; p++ {
			seen[p] = struct{}{}
		}
	}

	sel := make(PageSelection, 0, len(seen))
	for p := range seen {
		sel = append(sel, p)
	}

	sort.Ints(sel)

	return sel, nil
}

// Resolve returns the page numbers to process for a document with numPages
// pages, in ascending order.
func (sel PageSelection) Resolve(numPages int) ([]int, error) {
	if sel == nil {
		pages := make([]int, 0, numPages)
		for p := 1; p <= numPages; p++ {
			pages = append(pages, p)
		}

		return pages, nil
	}

	for _, p := range sel {
		if p > numPages {
			return nil, fmt.Errorf("page %d selected, but document has %d pages", p, numPages)
		}
	}

	return append([]int(nil), sel...), nil
}

func (sel PageSelection) String() string {
	if sel == nil {
		return "all"
	}

	parts := make([]string, 0, len(sel))
	for _, p := range sel {
		parts = append(parts, strconv.Itoa(p))
	}

	return strings.Join(parts, ",")
}
