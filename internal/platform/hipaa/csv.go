package hipaa

import "strings"

// formulaPrefixes start a cell that spreadsheet applications evaluate.
const formulaPrefixes = "=+-@\t\r"

// CSVRecord returns record with every cell that a spreadsheet would read as
// a formula prefixed by a single quote. Exports of PHI and audit data go
// through it before reaching csv.Writer.
func CSVRecord(record []string) []string {
	out := make([]string, len(record))
	for i, cell := range record {
		if cell != "" && strings.ContainsRune(formulaPrefixes, rune(cell[0])) {
			cell = "'" + cell
		}
		out[i] = cell
	}
	return out
}
