package ageing

// Normalization relates every channel of one module to its reference channel
// for a single dataset.
type Normalization struct {
	RefIndex    int
	RefResponse float64
	// Factors maps channel index to the ratio of that channel's response to
	// the reference channel's, the default ratio-to-reference strategy.
	Factors map[int]float64
}

// channelResponse is the per-channel quantity compared against the
// reference: the integrated charge (area mode) or the fitted amplitude.
func channelResponse(ch *Channel, mode string) (float64, bool) {
	switch mode {
	case NormModeAmplitude:
		if ch.Fit == nil || !ch.Fit.Valid {
			return 0, false
		}
		return ch.Fit.Amplitude, true
	default:
		if ch.Charge == nil || ch.Charge.Value <= 0 {
			return 0, false
		}
		return ch.Charge.Value, true
	}
}

// NormalizeModule validates the reference channel of a module and computes
// the normalization factors for one dataset. It is a pure function of the
// module's fit and charge results: the same inputs always produce the same
// factors. The error, when non-nil, is a *ReferenceUnavailableError and
// means every channel of this module is unnormalizable for this dataset.
func NormalizeModule(mod *Module, config Configuration) (Normalization, error) {
	norm := Normalization{RefIndex: mod.RefIndex, Factors: make(map[int]float64)}
	if mod.RefIndex < 0 || mod.RefIndex >= len(mod.Channels) {
		return norm, &ReferenceUnavailableError{Module: mod.Name, Reason: "no reference channel configured"}
	}
	ref := &mod.Channels[mod.RefIndex]
	if ref.Fit == nil || !ref.Fit.Valid {
		reason := "reference channel has no fit"
		if ref.Fit != nil {
			reason = ref.Fit.Reason
		}
		return norm, &ReferenceUnavailableError{Module: mod.Name, Reason: reason}
	}
	refResponse, ok := channelResponse(ref, config.NormMode)
	if !ok || refResponse <= 0 {
		return norm, &ReferenceUnavailableError{Module: mod.Name, Reason: "reference response is not positive"}
	}
	norm.RefResponse = refResponse

	for i := range mod.Channels {
		response, ok := channelResponse(&mod.Channels[i], config.NormMode)
		if !ok {
			continue
		}
		norm.Factors[i] = response / refResponse
	}
	return norm, nil
}
