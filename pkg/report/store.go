package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// atomicWriteJSON writes v to path through a temp file and rename so readers never see partial JSON.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// copyFile copies src to dst, creating dst's directory.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := ensureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// slug turns a scenario key into a file-system friendly ID.
func slug(s string) string {
	s = unsafeChars.ReplaceAllString(strings.TrimSpace(s), "-")
	s = strings.Trim(s, "-.")
	if s == "" {
		return "scenario"
	}
	return s
}

// ReadReport loads report.json and every entry file it references, in index order.
func ReadReport(reportDir string) (*Index, []EntryDetail, error) {
	data, err := os.ReadFile(filepath.Join(reportDir, "report.json"))
	if err != nil {
		return nil, nil, err
	}
	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, nil, fmt.Errorf("parse report.json: %w", err)
	}

	var entries []EntryDetail
	for _, sc := range index.Scenarios {
		for _, a := range sc.AttemptHistory {
			if a.DataFile == "" {
				continue
			}
			raw, err := os.ReadFile(filepath.Join(reportDir, a.DataFile))
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return nil, nil, err
			}
			var detail EntryDetail
			if err := json.Unmarshal(raw, &detail); err != nil {
				return nil, nil, fmt.Errorf("parse %s: %w", a.DataFile, err)
			}
			entries = append(entries, detail)
		}
	}
	return &index, entries, nil
}

// entriesByScenario groups entry details under their scenario ID.
func entriesByScenario(entries []EntryDetail) map[string][]EntryDetail {
	out := make(map[string][]EntryDetail)
	for _, e := range entries {
		out[e.ScenarioID] = append(out[e.ScenarioID], e)
	}
	return out
}
