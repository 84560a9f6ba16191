package core

// Table is an export: a header row followed by data rows.
type Table struct {
	Name   string // file name without extension
	Header []string
	Rows   [][]interface{}
}
