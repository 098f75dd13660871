package ageing

// Background models for the Gaussian fit.
const (
	BackgroundNone     = "none"
	BackgroundConstant = "constant"
	BackgroundLinear   = "linear"
)

// Normalization response metrics (which per-channel quantity is compared to
// the reference channel).
const (
	NormModeArea      = "area"
	NormModeAmplitude = "amplitude"
)

type Configuration struct {
	Path             string            `json:"path"`
	FileOut          string            `json:"file_out"`
	NoDB             bool              `json:"no_db"`
	Host             string            `json:"host"`
	User             string            `json:"user"`
	Passwd           string            `json:"pass"`
	DBName           string            `json:"dbname"`
	RunNumber        int               `json:"run_number"`
	NumWorkers       int               `json:"num_workers"`
	Verbosity        int               `json:"verbosity"`
	MaxDatasets      int               `json:"max_datasets"`
	Skip             int               `json:"skip"`
	DefaultModule    string            `json:"default_module"`
	TimestampLayout  string            `json:"timestamp_layout"`
	ExpectedChannels int               `json:"expected_channels"`
	RefChannels      map[string]string `json:"reference_channels"`
	FitWindowLow     float64           `json:"fit_window_low"`
	FitWindowHigh    float64           `json:"fit_window_high"`
	WindowMargin     int               `json:"window_margin_bins"`
	BackgroundModel  string            `json:"background_model"`
	DefaultSigma     float64           `json:"default_sigma"`
	SigmaFloor       float64           `json:"sigma_floor"`
	Tolerance        float64           `json:"tolerance"`
	MaxIterations    int               `json:"max_iterations"`
	FitTimeoutMs     int               `json:"fit_timeout_ms"`
	IntegrationLow   float64           `json:"integration_low"`
	IntegrationHigh  float64           `json:"integration_high"`
	GoodFitChi2      float64           `json:"good_fit_chi2"`
	NormMode         string            `json:"normalization_mode"`
	CompressionLevel int               `json:"compression_level"`
	WriteData        bool              `json:"write_data"`
}

// Validate checks the configuration before any processing starts. The
// returned error is always a *ConfigValidationError.
func (c Configuration) Validate() error {
	if c.Path == "" {
		return &ConfigValidationError{Field: "path", Reason: "no input path given"}
	}
	if c.WriteData && c.FileOut == "" {
		return &ConfigValidationError{Field: "file_out", Reason: "no output file given with write_data set"}
	}
	if c.NumWorkers < 1 {
		return &ConfigValidationError{Field: "num_workers", Reason: "must be at least 1"}
	}
	if c.Tolerance <= 0 {
		return &ConfigValidationError{Field: "tolerance", Reason: "must be positive"}
	}
	if c.MaxIterations <= 0 {
		return &ConfigValidationError{Field: "max_iterations", Reason: "must be positive"}
	}
	switch c.BackgroundModel {
	case BackgroundNone, BackgroundConstant, BackgroundLinear:
	default:
		return &ConfigValidationError{Field: "background_model", Reason: "must be none, constant or linear"}
	}
	switch c.NormMode {
	case NormModeArea, NormModeAmplitude:
	default:
		return &ConfigValidationError{Field: "normalization_mode", Reason: "must be area or amplitude"}
	}
	if c.FitWindowLow != 0 || c.FitWindowHigh != 0 {
		if c.FitWindowHigh <= c.FitWindowLow {
			return &ConfigValidationError{Field: "fit_window_high", Reason: "window is inverted"}
		}
	}
	if c.IntegrationLow != 0 || c.IntegrationHigh != 0 {
		if c.IntegrationHigh <= c.IntegrationLow {
			return &ConfigValidationError{Field: "integration_high", Reason: "window is inverted"}
		}
	}
	if !c.NoDB {
		if c.Host == "" || c.User == "" || c.DBName == "" {
			return &ConfigValidationError{Field: "host", Reason: "database access needs host, user and dbname"}
		}
	}
	return nil
}
