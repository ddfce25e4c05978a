package models

import "strings"

// FilterComplaints narrows an in-memory complaint list. Each provided
// criterion intersects the candidate set: department/status/priority/area by
// exact match, search by case-insensitive substring over title, description
// and location address. Relative order of the input is preserved. Pagination
// fields on the filter are ignored; callers page separately.
//
// The storage layer can push the same criteria down as a query; the two are
// functionally equivalent.
func FilterComplaints(complaints []Complaint, filter ComplaintFilter) []Complaint {
	search := strings.ToLower(filter.Search)

	out := make([]Complaint, 0, len(complaints))
	for _, c := range complaints {
		if filter.Department != "" && c.Department != filter.Department {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && c.Priority != *filter.Priority {
			continue
		}
		if filter.Area != "" && c.Location.Area != filter.Area {
			continue
		}
		if search != "" && !matchesSearch(&c, search) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func matchesSearch(c *Complaint, search string) bool {
	return strings.Contains(strings.ToLower(c.Title), search) ||
		strings.Contains(strings.ToLower(c.Description), search) ||
		strings.Contains(strings.ToLower(c.Location.Address), search)
}
