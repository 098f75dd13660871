package main

import (
	"encoding/json"
	"fmt"
	"os"

	ageing "github.com/fit-exp/ageing_go/pkg"
)

func LoadConfiguration(filename string) (ageing.Configuration, error) {
	var config ageing.Configuration

	// Set default values
	config.NoDB = true
	config.Host = "fit-conditions.cern.ch"
	config.User = "fitreader"
	config.Passwd = "readonly"
	config.DBName = "FITCOND"
	config.NumWorkers = 1
	config.Verbosity = 0
	config.MaxDatasets = 0
	config.Skip = 0
	config.TimestampLayout = "2006-01-02"
	config.WindowMargin = 20
	config.BackgroundModel = ageing.BackgroundConstant
	config.Tolerance = 1e-6
	config.MaxIterations = 200
	config.FitTimeoutMs = 5000
	config.GoodFitChi2 = 2.0
	config.NormMode = ageing.NormModeArea
	config.CompressionLevel = 4
	config.WriteData = true

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, err
	}
	return config, nil
}

func printConfiguration(config ageing.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("Path: %s", config.Path), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.FileOut), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Run number: %d", config.RunNumber), "config")
	logger.Info(fmt.Sprintf("Skip: %d", config.Skip), "config")
	logger.Info(fmt.Sprintf("Max datasets: %d", config.MaxDatasets), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("Timestamp layout: %s", config.TimestampLayout), "config")
	logger.Info(fmt.Sprintf("Background model: %s", config.BackgroundModel), "config")
	logger.Info(fmt.Sprintf("Normalization mode: %s", config.NormMode), "config")
	logger.Info(fmt.Sprintf("Tolerance: %g", config.Tolerance), "config")
	logger.Info(fmt.Sprintf("Max iterations: %d", config.MaxIterations), "config")
	logger.Info(fmt.Sprintf("Fit timeout (ms): %d", config.FitTimeoutMs), "config")
	logger.Info(fmt.Sprintf("Good fit chi2: %g", config.GoodFitChi2), "config")
	logger.Info(fmt.Sprintf("Write data: %t", config.WriteData), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
}
