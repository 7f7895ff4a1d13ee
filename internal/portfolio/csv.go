package portfolio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	columnTechStack = "techstack"
	columnLinks     = "links"
	columnID        = "id"
)

// Entry is one portfolio row: a tech stack description and the link showing it.
type Entry struct {
	ID        string
	TechStack string
	Link      string
}

// ReadCSVFile reads entries from the table at path.
func ReadCSVFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IndexError{Op: "open portfolio table", Cause: err}
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV reads a table with the Techstack and Links columns and an optional ID column.
// Header names are matched case-insensitively. Blank rows are skipped.
func ReadCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &IndexError{Op: "read portfolio table", Cause: errors.New("table is empty")}
	}
	if err != nil {
		return nil, &IndexError{Op: "read portfolio table", Cause: err}
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, ok := columns[name]; !ok {
			columns[name] = i
		}
	}

	var missing []string
	for _, required := range []string{columnTechStack, columnLinks} {
		if _, ok := columns[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, &IndexError{Op: "read portfolio table", Cause: fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))}
	}

	var entries []Entry
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &IndexError{Op: "read portfolio table", Cause: err}
		}

		if isBlank(record) {
			continue
		}

		entry := Entry{
			ID:        field(record, columns, columnID),
			TechStack: field(record, columns, columnTechStack),
			Link:      field(record, columns, columnLinks),
		}

		if entry.TechStack == "" || entry.Link == "" {
			return nil, &IndexError{Op: "read portfolio table", Cause: fmt.Errorf("line %d: techstack and links must not be empty", line)}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func field(record []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isBlank(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
