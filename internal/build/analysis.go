package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Analysis summarises a build for the --analyze report.
type Analysis struct {
	*Result
	TotalBytes int              `json:"totalBytes"`
	ByKind     map[FileKind]int `json:"bytesByKind"`
	Largest    []OutputFile     `json:"largest"`
}

// Analyze computes the size breakdown of result.
func Analyze(result *Result) Analysis {
	a := Analysis{
		Result:     result,
		TotalBytes: result.TotalSize(),
		ByKind:     make(map[FileKind]int),
	}

	for _, f := range result.Files {
		a.ByKind[f.Kind] += f.Size
	}

	a.Largest = append([]OutputFile(nil), result.Files...)
	sort.SliceStable(a.Largest, func(i, j int) bool { return a.Largest[i].Size > a.Largest[j].Size })
	if len(a.Largest) > 10 {
		a.Largest = a.Largest[:10]
	}

	return a
}

// WriteAnalysis writes the analysis of result to path as JSON.
func WriteAnalysis(path string, result *Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create analysis directory: %w", err)
	}

	return writeJSONFile(path, Analyze(result))
}

// writeJSONFile writes data as JSON to a file.
func writeJSONFile(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
