package registry

import (
	"sort"

	"github.com/roach88/crid/internal/ir"
)

// Course is a course record. The zero value stands for "no such course".
type Course struct {
	Code           string `json:"code"`
	MaxCapacity    uint32 `json:"max_capacity"`
	ConfirmedCount uint32 `json:"confirmed_count"`
}

// Exists reports whether the course was created. Created courses always
// have a positive capacity.
func (c Course) Exists() bool {
	return c.MaxCapacity > 0
}

// RemainingSlots is max(0, MaxCapacity - ConfirmedCount).
func (c Course) RemainingSlots() uint32 {
	if c.ConfirmedCount >= c.MaxCapacity {
		return 0
	}
	return c.MaxCapacity - c.ConfirmedCount
}

// NormalizeCode returns the NFC form of a course code. Codes are otherwise
// opaque and case-sensitive.
func NormalizeCode(code string) string {
	return ir.NormalizeIdentifier(code)
}

// CourseCatalog maps course codes to Course records.
// Codes are never removed or reused. Not safe for concurrent use on its own;
// the Registry serializes access.
type CourseCatalog struct {
	courses map[string]Course
}

// NewCourseCatalog creates an empty catalog.
func NewCourseCatalog() *CourseCatalog {
	return &CourseCatalog{courses: make(map[string]Course)}
}

// Get returns the course for code, or the zero Course if none was created.
func (c *CourseCatalog) Get(code string) Course {
	return c.courses[NormalizeCode(code)]
}

// Has reports whether code identifies a created course.
func (c *CourseCatalog) Has(code string) bool {
	return c.Get(code).Exists()
}

// RemainingSlots returns the free slots for code; 0 for an unknown code.
func (c *CourseCatalog) RemainingSlots(code string) uint32 {
	return c.Get(code).RemainingSlots()
}

// List returns all courses ordered by code.
func (c *CourseCatalog) List() []Course {
	out := make([]Course, 0, len(c.courses))
	for _, course := range c.courses {
		out = append(out, course)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len returns the number of created courses.
func (c *CourseCatalog) Len() int {
	return len(c.courses)
}

func (c *CourseCatalog) put(course Course) {
	c.courses[course.Code] = course
}
