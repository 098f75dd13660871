package ageing

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FormatAdapter is implemented once per supported export format. CanParse is
// a cheap signature check (extension, header sniff), Parse does the real
// work. The parser selects the first adapter whose CanParse returns true, so
// adding a format means registering a new adapter.
type FormatAdapter interface {
	Name() string
	CanParse(path string) bool
	Parse(path string, config Configuration) (Dataset, error)
}

// ParseFailure records one file that could not be parsed.
type ParseFailure struct {
	Filename string
	Err      error
}

type Parser struct {
	config   Configuration
	adapters []FormatAdapter
}

func NewParser(config Configuration) *Parser {
	p := &Parser{config: config}
	p.Register(&ColonCSVAdapter{})
	return p
}

func (p *Parser) Register(adapter FormatAdapter) {
	p.adapters = append(p.adapters, adapter)
}

var supportedExtensions = map[string]bool{
	".csv": true,
	".txt": true,
	".dat": true,
}

// ScanFolder walks a directory collecting files with a supported extension.
func ScanFolder(root string) ([]string, error) {
	var found []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}

// ParsePath parses a single file or every supported file under a directory.
// Files that fail to parse are reported in the failure list and do not stop
// the rest of the batch. Datasets come back sorted by timestamp (ties broken
// by source path) with the configured skip and max_datasets applied.
func (p *Parser) ParsePath(path string) ([]Dataset, []ParseFailure, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, &ParseError{Filename: path, Reason: "cannot stat input path", Err: err}
	}

	var files []string
	if info.IsDir() {
		files, err = ScanFolder(path)
		if err != nil {
			return nil, nil, &ParseError{Filename: path, Reason: "cannot scan folder", Err: err}
		}
	} else {
		files = []string{path}
	}

	var datasets []Dataset
	var failures []ParseFailure
	for _, file := range files {
		dataset, err := p.parseFile(file)
		if err != nil {
			failures = append(failures, ParseFailure{Filename: file, Err: err})
			logger.Error(err.Error())
			continue
		}
		datasets = append(datasets, dataset)
		if p.config.Verbosity > 0 {
			message := fmt.Sprintf("Parsed %s: %d modules, timestamp %s",
				file, len(dataset.Modules), dataset.Time.Format(time.RFC3339))
			logger.Info(message, "parser")
		}
	}

	sort.Slice(datasets, func(i, j int) bool {
		if datasets[i].Time.Equal(datasets[j].Time) {
			return datasets[i].Source < datasets[j].Source
		}
		return datasets[i].Time.Before(datasets[j].Time)
	})

	if p.config.Skip > 0 && p.config.Skip < len(datasets) {
		datasets = datasets[p.config.Skip:]
	} else if p.config.Skip >= len(datasets) {
		datasets = nil
	}
	if p.config.MaxDatasets > 0 && len(datasets) > p.config.MaxDatasets {
		datasets = datasets[:p.config.MaxDatasets]
	}
	return datasets, failures, nil
}

func (p *Parser) parseFile(path string) (Dataset, error) {
	for _, adapter := range p.adapters {
		if !adapter.CanParse(path) {
			continue
		}
		dataset, err := adapter.Parse(path, p.config)
		if err != nil {
			return Dataset{}, err
		}
		dataset.Format = adapter.Name()
		return dataset, nil
	}
	return Dataset{}, &ParseError{Filename: path, Reason: "no registered adapter recognizes this file"}
}

// datasetTimestamp extracts the acquisition time from the file name using the
// configured layout, trying each underscore-separated token of the stem. The
// file modification time is the fallback when nothing matches.
func datasetTimestamp(path string, layout string) time.Time {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if layout != "" {
		for _, token := range strings.Split(stem, "_") {
			if ts, err := time.Parse(layout, token); err == nil {
				return ts
			}
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// moduleName derives the detector module identity from the file name
// (FIT exports are named like FT0A_2024-03-01.csv) unless the configuration
// pins a module name for every file.
func moduleName(path string, config Configuration) string {
	if config.DefaultModule != "" {
		return config.DefaultModule
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if idx := strings.Index(stem, "_"); idx > 0 {
		return stem[:idx]
	}
	return stem
}
