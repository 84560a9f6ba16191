package core

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var academicYearRegex = regexp.MustCompile(`^(\d{4})/(\d{4})$`)

// Term identifies a semester of an academic year ("2024/2025", 1|2).
type Term struct {
	AcademicYear string `json:"academic_year" db:"academic_year"`
	Semester     int    `json:"semester" db:"semester"`
}

func (t Term) String() string {
	return fmt.Sprintf("%s S%d", t.AcademicYear, t.Semester)
}

func (t Term) IsZero() bool {
	return t.AcademicYear == "" && t.Semester == 0
}

// TermOf returns the term a day falls in: July to December is the first semester of Y/Y+1,
// January to June the second semester of Y-1/Y.
func TermOf(d Date) Term {
	year := d.Year()
	if d.Month() >= time.July {
		return Term{AcademicYear: AcademicYear(year), Semester: 1}
	}
	return Term{AcademicYear: AcademicYear(year - 1), Semester: 2}
}

// AcademicYear formats the academic year starting on the given calendar year.
func AcademicYear(startYear int) string {
	return fmt.Sprintf("%d/%d", startYear, startYear+1)
}

// IsAcademicYear reports whether s reads "YYYY/YYYY+1".
func IsAcademicYear(s string) bool {
	m := academicYearRegex.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	return end == start+1
}

// Today returns the school-local current day.
func (s SchoolConfig) Today(now time.Time) Date {
	return DateOf(now.In(s.Location()))
}

// CurrentTerm returns the pinned term when configured, else the term of today.
func (s SchoolConfig) CurrentTerm(now time.Time) Term {
	if s.AcademicYear != "" && (s.Semester == 1 || s.Semester == 2) {
		return Term{AcademicYear: s.AcademicYear, Semester: s.Semester}
	}
	return TermOf(s.Today(now))
}
