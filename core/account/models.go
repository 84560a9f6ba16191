package account

import (
	"strconv"
	"strings"

	"github.com/trezcool/shule/core"
)

// Kind names the accounts a bulk file creates.
type Kind string

const (
	KindStudents Kind = "students"
	KindTeachers Kind = "teachers"
	KindParents  Kind = "parents"
)

var Kinds = []Kind{KindStudents, KindTeachers, KindParents}

var templateHeaders = map[Kind][]string{
	KindStudents: {"name", "username", "email", "password", "student_number", "gender", "birth_date", "grade", "major", "section"},
	KindTeachers: {"name", "username", "email", "password", "employee_number", "phone"},
	KindParents:  {"name", "username", "email", "password", "phone", "student_numbers"},
}

var templateSamples = map[Kind][]interface{}{
	KindStudents: {"Jane Doe", "janedoe", "jane@example.com", "", "S-0001", "F", "2010-05-21", 10, "IPA", 1},
	KindTeachers: {"John Smith", "jsmith", "john@example.com", "", "T-0001", "+62 812 0000 0000"},
	KindParents:  {"Mary Doe", "marydoe", "mary@example.com", "", "+62 812 0000 0001", "S-0001, S-0002"},
}

func (k Kind) IsValid() bool {
	_, ok := templateHeaders[k]
	return ok
}

type (
	// Row is a data row of a bulk file keyed by column name.
	Row struct {
		Number int // sheet row number
		Values map[string]string
	}

	// Credentials are the user fields shared by every account kind.
	// An empty Password is generated.
	Credentials struct {
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	NewStudentAccount struct {
		Credentials
		StudentNumber string    `json:"student_number" validate:"required,max=50"`
		Gender        string    `json:"gender" validate:"required,oneof=M F"`
		BirthDate     core.Date `json:"birth_date"`
		ClassroomID   string    `json:"classroom_id"`
		// Grade, Major and Section find the classroom when ClassroomID is empty.
		Grade   int    `json:"grade" validate:"omitempty,min=1,max=12"`
		Major   string `json:"major" validate:"max=50"`
		Section int    `json:"section" validate:"omitempty,min=1,max=99"`
	}

	NewTeacherAccount struct {
		Credentials
		EmployeeNumber string `json:"employee_number" validate:"required,max=50"`
		Phone          string `json:"phone" validate:"max=30"`
	}

	NewParentAccount struct {
		Credentials
		Phone          string   `json:"phone" validate:"max=30"`
		StudentNumbers []string `json:"student_numbers" validate:"dive,required,max=50"`
	}

	// CreatedAccount reports a created account. GeneratedPassword is only ever returned once.
	CreatedAccount struct {
		Row               int    `json:"row,omitempty"`
		UserID            string `json:"user_id"`
		ProfileID         string `json:"profile_id"`
		Name              string `json:"name"`
		Username          string `json:"username"`
		Email             string `json:"email"`
		GeneratedPassword string `json:"generated_password,omitempty"`
	}
)

// Get returns the trimmed value of column key.
func (r Row) Get(key string) string {
	return strings.TrimSpace(r.Values[key])
}

func (r Row) credentials() Credentials {
	return Credentials{
		Name:     r.Get("name"),
		Username: r.Get("username"),
		Email:    r.Get("email"),
		Password: r.Get("password"),
	}
}

func (c *Credentials) clean() {
	c.Name = core.CleanString(c.Name)
	c.Username = core.CleanString(c.Username, true /* lower */)
	c.Email = core.CleanString(c.Email, true /* lower */)
}

// Template returns the bulk import template of kind: its header and a sample row.
func Template(kind Kind) core.Table {
	return core.Table{
		Name:   string(kind) + "-template",
		Header: templateHeaders[kind],
		Rows:   [][]interface{}{templateSamples[kind]},
	}
}

func fieldKey(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

func rowPrefix(row int) string {
	if row == 0 {
		return ""
	}
	return "rows." + strconv.Itoa(row)
}

// rowParser collects the conversion errors of a Row.
type rowParser struct {
	row  Row
	flds []core.FieldError
}

func (p *rowParser) int(key string) int {
	v := p.row.Get(key)
	if v == "" {
		return 0
	}
	// spreadsheets may hand numbers back as floats ("10.0")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != float64(int(f)) {
		p.flds = append(p.flds, core.FieldError{Field: fieldKey(rowPrefix(p.row.Number), key), Error: "must be a whole number"})
		return 0
	}
	return int(f)
}

func (p *rowParser) date(key string) core.Date {
	v := p.row.Get(key)
	if v == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(v)
	if err != nil {
		p.flds = append(p.flds, core.FieldError{
			Field: fieldKey(rowPrefix(p.row.Number), key),
			Error: "invalid date, expected " + core.DateLayout,
		})
	}
	return d
}

func (p *rowParser) list(key string) []string {
	var items []string
	for _, item := range strings.Split(p.row.Get(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
