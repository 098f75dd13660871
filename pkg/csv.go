package ageing

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ColonCSVAdapter parses the FIT histogram export format: colon-separated
// columns, a header row naming the channels, and a leading column with the
// bin value of every row. The two hardware sub-channels of one detector
// channel come as separate columns named like Ch01A0 and Ch01A1 and are
// summed into the base channel Ch01.
type ColonCSVAdapter struct{}

func (a *ColonCSVAdapter) Name() string {
	return "colon-csv"
}

// CanParse accepts supported extensions whose first line looks like a
// colon-separated header.
func (a *ColonCSVAdapter) CanParse(path string) bool {
	if !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := f.Read(head)
	head = head[:n]
	if idx := bytes.IndexByte(head, '\n'); idx >= 0 {
		head = head[:idx]
	}
	return bytes.IndexByte(head, ':') >= 0
}

func (a *ColonCSVAdapter) Parse(path string, config Configuration) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, &ParseError{Filename: path, Reason: "cannot open file", Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ':'
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return Dataset{}, &ParseError{Filename: path, Reason: "cannot read header", Err: err}
	}
	if len(header) < 2 {
		return Dataset{}, &ParseError{Filename: path, Reason: "header has no channel columns"}
	}
	columns := make([]string, 0, len(header)-1)
	for _, name := range header[1:] {
		columns = append(columns, strings.TrimSpace(name))
	}

	bins := make([]float64, 0, 1024)
	counts := make([][]float64, len(columns))
	for i := range counts {
		counts[i] = make([]float64, 0, 1024)
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Dataset{}, &ParseError{Filename: path, Reason: fmt.Sprintf("bad record at line %d", line+1), Err: err}
		}
		line++
		if len(record) != len(columns)+1 {
			return Dataset{}, &ParseError{Filename: path,
				Reason: fmt.Sprintf("line %d has %d columns, header has %d", line, len(record), len(columns)+1)}
		}
		bin, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		if err != nil {
			return Dataset{}, &ParseError{Filename: path,
				Reason: fmt.Sprintf("non-numeric bin value at line %d", line), Err: err}
		}
		bins = append(bins, bin)
		for i, field := range record[1:] {
			count, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return Dataset{}, &ParseError{Filename: path,
					Reason: fmt.Sprintf("non-numeric count in column %q at line %d", columns[i], line), Err: err}
			}
			if count < 0 {
				return Dataset{}, &ParseError{Filename: path,
					Reason: fmt.Sprintf("negative count in column %q at line %d", columns[i], line)}
			}
			counts[i] = append(counts[i], count)
		}
	}
	if len(bins) == 0 {
		return Dataset{}, &ParseError{Filename: path, Reason: "file has no data rows"}
	}

	// Rows are keyed by bin value, keep them in ascending bin order.
	order := make([]int, len(bins))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return bins[order[i]] < bins[order[j]] })
	sortedBins := make([]float64, len(bins))
	for i, idx := range order {
		sortedBins[i] = bins[idx]
	}

	merged := mergeSubChannels(columns, counts, order)

	mod := Module{
		Name:     moduleName(path, config),
		RefIndex: -1,
	}
	for i, mc := range merged {
		mod.Channels = append(mod.Channels, Channel{
			Module: mod.Name,
			Index:  i,
			Name:   mc.name,
			Hist:   Histogram{Bins: sortedBins, Counts: mc.counts},
		})
	}
	if config.ExpectedChannels > 0 && len(mod.Channels) != config.ExpectedChannels {
		return Dataset{}, &ParseError{Filename: path,
			Reason: fmt.Sprintf("expected %d channels, found %d", config.ExpectedChannels, len(mod.Channels))}
	}
	if refName, ok := config.RefChannels[mod.Name]; ok {
		for i, ch := range mod.Channels {
			if ch.Name == refName {
				mod.RefIndex = i
				break
			}
		}
		if mod.RefIndex < 0 {
			return Dataset{}, &ParseError{Filename: path,
				Reason: fmt.Sprintf("configured reference channel %q not present in module %q", refName, mod.Name)}
		}
	}

	return Dataset{
		Time:    datasetTimestamp(path, config.TimestampLayout),
		Modules: []Module{mod},
		Source:  path,
	}, nil
}

type mergedChannel struct {
	name   string
	counts []float64
}

// mergeSubChannels sums A0/A1 column pairs into their base channel,
// preserving the order of first appearance in the header. order maps the
// sorted row position back to the raw row index.
func mergeSubChannels(columns []string, counts [][]float64, order []int) []mergedChannel {
	var names []string
	byName := make(map[string][]float64)
	for ci, col := range columns {
		base := col
		if strings.HasSuffix(col, "A0") || strings.HasSuffix(col, "A1") {
			base = col[:len(col)-2]
		}
		sorted, seen := byName[base]
		if !seen {
			names = append(names, base)
			sorted = make([]float64, len(order))
			byName[base] = sorted
		}
		for pos, idx := range order {
			sorted[pos] += counts[ci][idx]
		}
	}
	merged := make([]mergedChannel, 0, len(names))
	for _, name := range names {
		merged = append(merged, mergedChannel{name: name, counts: byName[name]})
	}
	return merged
}
