// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"
)

const (
	IssuesSheet = "Issues"
	LabelsSheet = "Labels"

	defaultSheet = "Sheet1"
)

var labelsHeader = []string{"Name", "Description"}

// Workbook is an xlsx file holding rows grouped by the key in their first
// column. Row changes stay in memory until Flush, which rewrites the whole
// file through a temporary file so a reader never sees a half written
// workbook.
type Workbook struct {
	path   string
	header []string

	mu     sync.Mutex
	rows   [][]string
	labels [][]string
	dirty  bool
	saves  int
}

func NewWorkbook(path string, header []string) *Workbook {
	return &Workbook{path: path, header: header}
}

func (w *Workbook) Path() string { return w.path }

// Open loads the rows of an existing workbook, or creates an empty one.
func (w *Workbook) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), 0750); err != nil {
		return &UnavailableError{Sink: "workbook", Err: err}
	}

	f, err := excelize.OpenFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		w.rows, w.labels = nil, nil
		return w.save()
	}
	if err != nil {
		return &UnavailableError{Sink: "workbook", Err: fmt.Errorf("opening %s: %w", w.path, err)}
	}
	defer f.Close()

	rows, err := f.GetRows(IssuesSheet)
	if err != nil {
		return &UnavailableError{Sink: "workbook", Err: fmt.Errorf("reading %s: %w", w.path, err)}
	}
	w.rows = dataRows(rows)

	labels, err := f.GetRows(LabelsSheet)
	if err == nil {
		w.labels = dataRows(labels)
	}
	return nil
}

// Rows returns a copy of the data rows, header excluded.
func (w *Workbook) Rows() [][]string {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows := make([][]string, len(w.rows))
	for i, r := range w.rows {
		rows[i] = append([]string(nil), r...)
	}
	return rows
}

// Replace swaps every row keyed by key for rows, keeping the position of
// the first replaced row. The change is persisted by the next Flush.
func (w *Workbook) Replace(key string, rows [][]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := make([][]string, 0, len(w.rows)+len(rows))
	inserted := false
	for _, r := range w.rows {
		if len(r) > 0 && r[0] == key {
			if !inserted {
				next = append(next, rows...)
				inserted = true
			}
			continue
		}
		next = append(next, r)
	}
	if !inserted {
		next = append(next, rows...)
	}
	w.rows = next
	w.dirty = true
	return nil
}

// Flush writes the pending row changes to disk. It does nothing when
// there are none.
func (w *Workbook) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirty {
		return nil
	}
	return w.save()
}

// Saves returns how many times the file was written.
func (w *Workbook) Saves() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saves
}

// SetLabels replaces the content of the labels sheet and persists the
// workbook along with any pending row changes.
func (w *Workbook) SetLabels(labels [][]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	previous := w.labels
	w.labels = labels
	if err := w.save(); err != nil {
		w.labels = previous
		return err
	}
	return nil
}

func (w *Workbook) save() error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(defaultSheet, IssuesSheet); err != nil {
		return err
	}
	if err := writeSheet(f, IssuesSheet, w.header, w.rows); err != nil {
		return err
	}
	if _, err := f.NewSheet(LabelsSheet); err != nil {
		return err
	}
	if err := writeSheet(f, LabelsSheet, labelsHeader, w.labels); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.path), ".issuesync-*.xlsx")
	if err != nil {
		return &UnavailableError{Sink: "workbook", Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return &UnavailableError{Sink: "workbook", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &UnavailableError{Sink: "workbook", Err: err}
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return &UnavailableError{Sink: "workbook", Err: err}
	}
	w.dirty = false
	w.saves++
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string) error {
	all := append([][]string{header}, rows...)
	for i, r := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(r))
		for j, v := range r {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// dataRows drops the header row and blank rows of a sheet.
func dataRows(rows [][]string) [][]string {
	if len(rows) == 0 {
		return nil
	}
	data := make([][]string, 0, len(rows)-1)
	for _, r := range rows[1:] {
		if len(r) == 0 {
			continue
		}
		data = append(data, r)
	}
	return data
}
