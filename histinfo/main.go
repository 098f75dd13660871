package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	ageing "github.com/fit-exp/ageing_go/pkg"
)

// histinfo lists the content of FIT histogram export files: channels, bin
// counts and bin ranges. Useful for checking a folder before running the
// full ageing analysis.
func main() {
	path := flag.String("path", "", "Histogram file or folder")
	layout := flag.String("layout", "2006-01-02", "Timestamp layout in file names")
	flag.Parse()

	if *path == "" {
		fmt.Println("Usage: histinfo -path <file-or-folder> [-layout <go-time-layout>]")
		os.Exit(1)
	}

	config := ageing.Configuration{
		Path:            *path,
		TimestampLayout: *layout,
		NumWorkers:      1,
		Tolerance:       1e-6,
		MaxIterations:   1,
		BackgroundModel: ageing.BackgroundConstant,
		NormMode:        ageing.NormModeArea,
	}

	parser := ageing.NewParser(config)
	datasets, failures, err := parser.ParsePath(*path)
	if err != nil {
		fmt.Println("Error reading path:", err)
		os.Exit(1)
	}

	for _, dataset := range datasets {
		fmt.Println("File:", dataset.Source)
		fmt.Println("  Format:", dataset.Format)
		fmt.Println("  Timestamp:", dataset.Time.Format(time.RFC3339))
		for _, mod := range dataset.Modules {
			fmt.Printf("  Module %s: %d channels\n", mod.Name, len(mod.Channels))
			for _, ch := range mod.Channels {
				bins := ch.Hist.Bins
				if len(bins) == 0 {
					fmt.Printf("    %s: empty\n", ch.Name)
					continue
				}
				fmt.Printf("    %s: %d bins, range %.1f to %.1f, total counts %.0f\n",
					ch.Name, len(bins), bins[0], bins[len(bins)-1], ch.Hist.TotalCount())
			}
		}
	}

	for _, failure := range failures {
		fmt.Printf("Unreadable file %s: %v\n", failure.Filename, failure.Err)
	}
	fmt.Printf("Total files parsed: %d, failed: %d\n", len(datasets), len(failures))
}
