package querybuilder

// InsertRows holds the value tuples of a multi-row INSERT, one slice per row
type InsertRows [][]interface{}
