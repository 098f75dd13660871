package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	sqlx "github.com/jmoiron/sqlx"

	ageing "github.com/fit-exp/ageing_go/pkg"
)

var dbConn *sqlx.DB
var configuration ageing.Configuration

var (
	logger         Logger
	VerbosityLevel int
)

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handlerStdOut := NewHandler(os.Stdout, opts)
	handlerStdErr := slog.NewJSONHandler(os.Stderr, opts)
	logger = Logger{
		InfoLog:  slog.New(handlerStdOut),
		ErrorLog: slog.New(handlerStdErr),
	}
}

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	flag.Parse()

	var err error
	configuration, err = LoadConfiguration(*configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}
	if err := configuration.Validate(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	ageing.SetLogger(logger)

	VerbosityLevel = configuration.Verbosity
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", *configFilename)
		logger.Info(message, "main")
		printConfiguration(configuration, logger)
	}

	if !configuration.NoDB {
		dbConn, err = ageing.ConnectToDatabase(configuration.User, configuration.Passwd, configuration.Host, configuration.DBName)
		if err != nil {
			message := fmt.Errorf("Error connecting to database: %w", err)
			logger.Error(message.Error())
			os.Exit(1)
		}
		defer dbConn.Close()

		configuration, err = ageing.LoadConditions(dbConn, configuration)
		if err != nil {
			message := fmt.Errorf("Error loading run conditions: %w", err)
			logger.Error(message.Error())
			os.Exit(1)
		}
	}

	parser := ageing.NewParser(configuration)
	datasets, parseFailures, err := parser.ParsePath(configuration.Path)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	for _, failure := range parseFailures {
		message := fmt.Sprintf("Skipped file %s: %v", failure.Filename, failure.Err)
		logger.Info(message, "parser")
	}
	if len(datasets) == 0 {
		logger.Error("No datasets could be parsed from the input path")
		os.Exit(1)
	}
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Number of datasets: %d", len(datasets))
		logger.Info(message, "main")
	}

	start := time.Now()
	calculator := ageing.NewCalculator(configuration)
	bundle, err := calculator.Run(context.Background(), datasets)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	duration := time.Since(start)
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Analysis time: %d ms", duration.Milliseconds())
		logger.Info(message, "main")
	}

	message := fmt.Sprintf("Channels analyzed: %d, failures: %d", len(bundle.Records), len(bundle.Failures))
	logger.Info(message, "main")
	for _, failure := range bundle.Failures {
		message := fmt.Sprintf("Failure in module %s channel %s (dataset %s): %v",
			failure.Module, failure.Channel, failure.Source, failure.Err)
		logger.Info(message, "main")
	}

	if configuration.WriteData {
		writer, err := ageing.NewWriter(configuration.FileOut, configuration.CompressionLevel)
		if err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
		start := time.Now()
		if err := writer.WriteBundle(bundle, configuration.RunNumber); err != nil {
			logger.Error(err.Error())
			writer.Close()
			os.Exit(1)
		}
		writer.Close()
		duration := time.Since(start)
		if VerbosityLevel > 0 {
			message := fmt.Sprintf("Total time writing: %d ms", duration.Milliseconds())
			logger.Info(message, "main")
		}
	}
}
