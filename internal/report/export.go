package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/semester-sim/internal/engine"
)

// Export file names inside an export directory.
const (
	GPAFile    = "gpa.csv"
	WeeklyFile = "weekly.jsonl.zst"
)

var gpaHeader = []string{"index", "archetype", "policy", "gpa", "grade", "midterm", "final", "knowledge"}

// WriteGPACSV writes one row per result.
func WriteGPACSV(w io.Writer, results []engine.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(gpaHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			strconv.Itoa(r.Index),
			r.Archetype,
			r.Policy,
			ftoa(r.GPA),
			r.Grade,
			ftoa(r.Midterm),
			ftoa(r.Final),
			ftoa(r.Knowledge),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// WeeklyRecord is one line of the weekly export.
type WeeklyRecord struct {
	Index     int    `json:"index"`
	Archetype string `json:"archetype"`
	engine.WeekLog
}

// WriteWeeklyJSONL writes every weekly log entry of results as zstd
// compressed JSON lines. Results without weekly logs contribute nothing.
func WriteWeeklyJSONL(w io.Writer, results []engine.Result) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 128*1024)
	je := json.NewEncoder(bw)
	for _, r := range results {
		for _, wl := range r.Weekly {
			if err := je.Encode(WeeklyRecord{Index: r.Index, Archetype: r.Archetype, WeekLog: wl}); err != nil {
				_ = enc.Close()
				return err
			}
		}
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ReadWeeklyJSONL decodes a stream written by WriteWeeklyJSONL.
func ReadWeeklyJSONL(r io.Reader) ([]WeeklyRecord, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []WeeklyRecord
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var rec WeeklyRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("weekly line %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}

// ExportDir writes GPAFile and, when any result kept weekly logs,
// WeeklyFile into dir.
func ExportDir(dir string, pop *engine.Population) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, GPAFile), func(w io.Writer) error {
		return WriteGPACSV(w, pop.Results)
	}); err != nil {
		return err
	}
	for _, r := range pop.Results {
		if len(r.Weekly) > 0 {
			return writeFile(filepath.Join(dir, WeeklyFile), func(w io.Writer) error {
				return WriteWeeklyJSONL(w, pop.Results)
			})
		}
	}
	return nil
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
