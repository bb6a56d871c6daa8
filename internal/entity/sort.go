package entity

import "fmt"

// PageSort is the closed set of orderings accepted by page listings.
type PageSort int

const (
	// PageSortName orders by display name.
	PageSortName PageSort = iota
	// PageSortNavigation orders by navigation key.
	PageSortNavigation
	// PageSortModified orders by last modification, newest first.
	PageSortModified
)

// ParsePageSort validates a user-supplied sort key at the boundary.
func ParsePageSort(s string) (PageSort, error) {
	switch s {
	case "", "name":
		return PageSortName, nil
	case "navigation":
		return PageSortNavigation, nil
	case "modified":
		return PageSortModified, nil
	}
	return 0, fmt.Errorf("unknown sort key %q", s)
}

// Column returns the ORDER BY clause for the sort key. The value is one of a
// fixed set of literals, never user input.
func (s PageSort) Column() string {
	switch s {
	case PageSortNavigation:
		return "navigation ASC"
	case PageSortModified:
		return "modified_date DESC"
	default:
		return "name ASC"
	}
}
