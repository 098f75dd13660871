package ageing

import (
	"errors"
	"testing"
)

func validConfig() Configuration {
	config := testConfig()
	config.Path = "/data/histograms"
	return config
}

func TestConfigurationValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Configuration)
		field  string
	}{
		{"empty path", func(c *Configuration) { c.Path = "" }, "path"},
		{"write_data without file_out", func(c *Configuration) { c.WriteData = true }, "file_out"},
		{"zero workers", func(c *Configuration) { c.NumWorkers = 0 }, "num_workers"},
		{"zero tolerance", func(c *Configuration) { c.Tolerance = 0 }, "tolerance"},
		{"negative iterations", func(c *Configuration) { c.MaxIterations = -1 }, "max_iterations"},
		{"bad background model", func(c *Configuration) { c.BackgroundModel = "quadratic" }, "background_model"},
		{"bad normalization mode", func(c *Configuration) { c.NormMode = "median" }, "normalization_mode"},
		{"inverted fit window", func(c *Configuration) { c.FitWindowLow = 10; c.FitWindowHigh = 5 }, "fit_window_high"},
		{"inverted integration window", func(c *Configuration) { c.IntegrationLow = 10; c.IntegrationHigh = 5 }, "integration_high"},
		{"db without credentials", func(c *Configuration) { c.NoDB = false }, "host"},
	}

	for _, tc := range cases {
		config := validConfig()
		tc.mutate(&config)
		err := config.Validate()
		if err == nil {
			t.Fatalf("%s: expected a validation error", tc.name)
		}
		var validation *ConfigValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("%s: expected *ConfigValidationError, got %T", tc.name, err)
		}
		if validation.Field != tc.field {
			t.Fatalf("%s: expected field %q, got %q", tc.name, tc.field, validation.Field)
		}
	}
}

func TestConfigurationValidateAccepts(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid configuration rejected: %v", err)
	}

	config := validConfig()
	config.NoDB = false
	config.Host = "fit-conditions.cern.ch"
	config.User = "fitreader"
	config.DBName = "FITCOND"
	if err := config.Validate(); err != nil {
		t.Fatalf("valid DB configuration rejected: %v", err)
	}

	config = validConfig()
	config.WriteData = true
	config.FileOut = "/data/ageing.h5"
	if err := config.Validate(); err != nil {
		t.Fatalf("valid write configuration rejected: %v", err)
	}
}
