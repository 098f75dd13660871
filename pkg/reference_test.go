package ageing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeModule(refIndex int, charges ...float64) Module {
	mod := Module{Name: "FT0A", RefIndex: refIndex}
	for i, value := range charges {
		mod.Channels = append(mod.Channels, Channel{
			Module: mod.Name,
			Index:  i,
			Name:   "Ch0" + string(rune('1'+i)),
			Fit:    &FitResult{Valid: true, Amplitude: value / 10, Mean: 100, StdDev: 8},
			Charge: &ChargeResult{Value: value, Method: ChargeFromFit},
		})
	}
	return mod
}

func TestNormalizeModuleFactors(t *testing.T) {
	mod := makeModule(0, 100, 50, 200)

	norm, err := NormalizeModule(&mod, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, norm.RefIndex)
	assert.Equal(t, 100.0, norm.RefResponse)
	assert.InDelta(t, 1.0, norm.Factors[0], 1e-12)
	assert.InDelta(t, 0.5, norm.Factors[1], 1e-12)
	assert.InDelta(t, 2.0, norm.Factors[2], 1e-12)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	mod := makeModule(1, 80, 160, 40)
	config := testConfig()

	first, err := NormalizeModule(&mod, config)
	require.NoError(t, err)
	second, err := NormalizeModule(&mod, config)
	require.NoError(t, err)
	assert.Equal(t, first.RefResponse, second.RefResponse)
	assert.Equal(t, first.Factors, second.Factors)
}

func TestNormalizeAmplitudeMode(t *testing.T) {
	mod := makeModule(0, 100, 50)
	config := testConfig()
	config.NormMode = NormModeAmplitude

	norm, err := NormalizeModule(&mod, config)
	require.NoError(t, err)
	assert.Equal(t, 10.0, norm.RefResponse)
	assert.InDelta(t, 0.5, norm.Factors[1], 1e-12)
}

func TestNormalizeWithoutReferenceChannel(t *testing.T) {
	mod := makeModule(-1, 100, 50)

	_, err := NormalizeModule(&mod, testConfig())
	require.Error(t, err)
	var unavailable *ReferenceUnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "FT0A", unavailable.Module)
}

func TestNormalizeFailedReferenceFit(t *testing.T) {
	mod := makeModule(0, 100, 50)
	mod.Channels[0].Fit = &FitResult{Valid: false, Reason: "fit did not converge"}

	_, err := NormalizeModule(&mod, testConfig())
	require.Error(t, err)
	var unavailable *ReferenceUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestNormalizeSkipsChannelsWithoutResponse(t *testing.T) {
	mod := makeModule(0, 100, 50)
	mod.Channels[1].Charge = &ChargeResult{Value: 0, Method: ChargeFromSum}

	norm, err := NormalizeModule(&mod, testConfig())
	require.NoError(t, err)
	_, ok := norm.Factors[1]
	assert.False(t, ok)
	assert.Contains(t, norm.Factors, 0)
}
