package models

// Department describes one of the eight municipal departments complaints are
// filed against. The catalog is static reference data.
type Department struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Officials   []string `json:"officials"`
}

// Department ids form a closed set; the boundary must preserve them exactly.
const (
	DeptPublicWorks      = "public-works"
	DeptHealthSanitation = "health-sanitation"
	DeptLawOrder         = "law-order"
	DeptEducation        = "education"
	DeptTransport        = "transport"
	DeptEnvironment      = "environment"
	DeptUtilities        = "utilities"
	DeptHousing          = "housing"
)

// Departments is the full catalog in presentation order.
var Departments = []Department{
	{
		ID:          DeptPublicWorks,
		Name:        "Public Works",
		Description: "Roads, drainage, water supply, streetlights, and infrastructure",
		Officials:   []string{"Public Works Commissioner", "Infrastructure Manager"},
	},
	{
		ID:          DeptHealthSanitation,
		Name:        "Health & Sanitation",
		Description: "Waste management, food safety, public health, and cleanliness",
		Officials:   []string{"Health Officer", "Sanitation Inspector"},
	},
	{
		ID:          DeptLawOrder,
		Name:        "Law & Order",
		Description: "Police, traffic, safety, and emergency services",
		Officials:   []string{"Police Inspector", "Traffic Controller"},
	},
	{
		ID:          DeptEducation,
		Name:        "Education",
		Description: "Schools, libraries, educational facilities, and programs",
		Officials:   []string{"Education Officer", "School Inspector"},
	},
	{
		ID:          DeptTransport,
		Name:        "Transport",
		Description: "Public transport, parking, traffic management, and mobility",
		Officials:   []string{"Transport Manager", "Traffic Engineer"},
	},
	{
		ID:          DeptEnvironment,
		Name:        "Environment",
		Description: "Pollution control, green spaces, environmental protection",
		Officials:   []string{"Environmental Officer", "Pollution Control Officer"},
	},
	{
		ID:          DeptUtilities,
		Name:        "Utilities",
		Description: "Electricity, gas, telecommunications, and utility services",
		Officials:   []string{"Utilities Manager", "Service Coordinator"},
	},
	{
		ID:          DeptHousing,
		Name:        "Housing & Planning",
		Description: "Building permits, housing, urban planning, and development",
		Officials:   []string{"Planning Officer", "Building Inspector"},
	},
}

// ValidDepartment reports whether the id belongs to the closed department set.
func ValidDepartment(id string) bool {
	for _, d := range Departments {
		if d.ID == id {
			return true
		}
	}
	return false
}
