package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"handspeak/core"
)

// Header is the column layout of the training file.
var Header = []string{
	"ID", "Elapsed Time (s)",
	"Acceleration_x", "Acceleration_y", "Acceleration_z",
	"Gravity_x", "Gravity_y", "Gravity_z",
	"Angular Velocity_x", "Angular Velocity_y", "Angular Velocity_z",
	"Orientation_x", "Orientation_y", "Orientation_z",
	"Character",
}

// Row renders one labelled frame.
func Row(id string, elapsedSec float64, f core.SensorFrame, label string) []string {
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		id, strconv.FormatFloat(elapsedSec, 'f', 3, 64),
		num(f.Acceleration.X), num(f.Acceleration.Y), num(f.Acceleration.Z),
		num(f.Gravity.X), num(f.Gravity.Y), num(f.Gravity.Z),
		num(f.AngularVelocity.X), num(f.AngularVelocity.Y), num(f.AngularVelocity.Z),
		num(f.Orientation.X), num(f.Orientation.Y), num(f.Orientation.Z),
		label,
	}
}

// CSVStore appends rows to a single CSV file guarded by a mutex.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

func NewCSVStore(dir, name string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &CSVStore{path: filepath.Join(dir, name)}, nil
}

func (s *CSVStore) Path() string { return s.path }

// Append writes rows, adding the header when the file is new or empty.
func (s *CSVStore) Append(rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return err
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Sync()
}

// Count returns the number of data rows, excluding the header.
func (s *CSVStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.readAll()
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Delete removes rows whose ID (byID) or Character column equals value and
// returns how many were removed.
func (s *CSVStore) Delete(byID bool, value string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readAll()
	if err != nil {
		return 0, err
	}
	kept := rows[:0]
	for _, row := range rows {
		col := row[len(row)-1]
		if byID {
			col = row[0]
		}
		if col != value {
			kept = append(kept, row)
		}
	}
	deleted := len(rows) - len(kept)
	if deleted == 0 {
		return 0, nil
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(Header); err == nil {
		err = w.WriteAll(kept)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return deleted, os.Rename(tmp, s.path)
}

func (s *CSVStore) readAll() ([][]string, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		if first {
			first = false
			if len(rec) > 0 && rec[0] == Header[0] {
				continue
			}
		}
		if len(rec) > 0 {
			rows = append(rows, rec)
		}
	}
}
