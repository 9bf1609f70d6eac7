// Package export converts tasks to and from the row table used for
// spreadsheet export, and renders tasks as terminal tables.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
	"github.com/randalmurphal/hrdesk/internal/task"
)

// Columns is the header row, in order.
var Columns = []string{
	"id", "title", "status", "priority", "assigned_to", "assigned_by",
	"due_date", "progress", "category", "department", "tags",
}

// listSep joins multi-valued cells.
const listSep = ";"

// Row is one parsed table row.
type Row struct {
	// ID is the exported task ID. Importers assign fresh IDs.
	ID       int64
	Draft    task.Draft
	Progress int
}

// WriteCSV writes a header row and one row per task.
func WriteCSV(w io.Writer, tasks []*task.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range tasks {
		if err := cw.Write(record(t)); err != nil {
			return fmt.Errorf("write task %d: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(t *task.Task) []string {
	due := ""
	if t.DueDate != nil {
		due = t.DueDate.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(t.ID, 10),
		t.Title,
		string(t.Status),
		string(t.Priority),
		strings.Join(t.AssignedTo, listSep),
		t.AssignedBy,
		due,
		strconv.Itoa(t.Progress),
		t.Category,
		t.Department,
		strings.Join(t.Tags, listSep),
	}
}

// ParseCSV reads rows written by WriteCSV. Columns are matched by header
// name, so reordered or missing optional columns are accepted; title is
// required.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["title"]; !ok {
		return nil, deskerrors.ErrValidation(errors.New("missing title column"))
	}
	cr.FieldsPerRecord = len(header)

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row, err := parseRecord(rec, col)
		if err != nil {
			return nil, deskerrors.ErrValidation(fmt.Errorf("line %d: %w", line, err))
		}
		rows = append(rows, row)
	}
}

func parseRecord(rec []string, col map[string]int) (Row, error) {
	get := func(name string) string {
		if i, ok := col[name]; ok {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var row Row
	if v := get("id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Row{}, fmt.Errorf("id %q: %w", v, err)
		}
		row.ID = id
	}
	if v := get("progress"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return Row{}, fmt.Errorf("progress %q: %w", v, err)
		}
		row.Progress = task.ClampProgress(p)
	}

	d := task.Draft{
		Title:      get("title"),
		Status:     task.Status(get("status")),
		Priority:   task.Priority(get("priority")),
		AssignedTo: splitList(get("assigned_to")),
		AssignedBy: get("assigned_by"),
		Category:   get("category"),
		Department: get("department"),
		Tags:       splitList(get("tags")),
	}
	if v := get("due_date"); v != "" {
		due, err := parseDate(v)
		if err != nil {
			return Row{}, fmt.Errorf("due_date %q: %w", v, err)
		}
		d.DueDate = &due
	}
	if errs := d.Validate(); errs.HasErrors() {
		return Row{}, errs
	}
	row.Draft = d
	return row, nil
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return task.Unique(strings.Split(v, listSep))
}
