package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bengfarrell/thelearningtablet/internal/classifier"
	"github.com/bengfarrell/thelearningtablet/internal/config"
	"github.com/bengfarrell/thelearningtablet/internal/mockdev"
	"github.com/bengfarrell/thelearningtablet/internal/protocol"
)

// runStep は1ジェスチャーステップを最初から最後まで実行する
func runStep(t *testing.T, svc *LearnService, channel, gesture string, kind protocol.Type, labels []string) protocol.Mapping {
	t.Helper()
	require.NoError(t, svc.BeginStep(channel, gesture))
	require.NoError(t, svc.PlayGesture(gesture))
	m, err := svc.CompleteStep(kind, labels)
	require.NoError(t, err)
	return m
}

func TestLearnSessionLifecycle(t *testing.T) {
	svc := NewLearnService(config.DefaultConfig())

	t.Run("steps before start are rejected", func(t *testing.T) {
		assert.Error(t, svc.BeginStep("x", "horizontal-sweep"))
	})

	require.NoError(t, svc.Start("mock"))
	t.Cleanup(func() { _ = svc.Stop() })

	t.Run("double start is rejected", func(t *testing.T) {
		assert.Error(t, svc.Start("mock"))
	})

	t.Run("session carries an identifier", func(t *testing.T) {
		assert.True(t, svc.IsRunning())
		assert.NotEmpty(t, svc.SessionID())
	})

	t.Run("complete without a step is rejected", func(t *testing.T) {
		_, err := svc.CompleteStep(protocol.TypeRange, nil)
		assert.Error(t, err)
	})

	t.Run("unknown gesture is rejected", func(t *testing.T) {
		assert.Error(t, svc.PlayGesture("wiggle"))
	})
}

func TestLearnSessionWizardFlow(t *testing.T) {
	svc := NewLearnService(config.DefaultConfig())
	require.NoError(t, svc.Start("mock"))
	t.Cleanup(func() { _ = svc.Stop() })

	x := runStep(t, svc, "x", "horizontal-sweep", protocol.TypeMultiByteRange, nil)
	assert.Equal(t, []int{1, 2}, x.ByteIndexes())

	y := runStep(t, svc, "y", "vertical-sweep", protocol.TypeMultiByteRange, nil)
	assert.Equal(t, []int{3, 4}, y.ByteIndexes())

	pressure := runStep(t, svc, "pressure", "pressure-press", protocol.TypeMultiByteRange, nil)
	assert.Equal(t, []int{5, 6}, pressure.ByteIndexes())

	tilt := runStep(t, svc, "tiltX", "tilt-rock", protocol.TypeBipolarRange, nil)
	assert.Equal(t, []int{7}, tilt.ByteIndexes())

	buttons := runStep(t, svc, "tabletButtons", "button-chord", protocol.TypeBitFlags, nil)
	require.IsType(t, &protocol.BitFlagsMapping{}, buttons)
	assert.Equal(t, 4, buttons.(*protocol.BitFlagsMapping).ButtonCount)

	status := runStep(t, svc, "status", "status-states", protocol.TypeCode,
		[]string{"hover", "contact", "primary-button-pressed"})
	require.IsType(t, &protocol.CodeMapping{}, status)
	codes := status.(*protocol.CodeMapping)
	assert.Equal(t, "hover", codes.Values[mockdev.StatusHover].State)
	assert.Equal(t, "primary-button-pressed", codes.Values[mockdev.StatusButton].State)

	t.Run("decoded monitor follows the accumulated mappings", func(t *testing.T) {
		require.NoError(t, svc.PlayGesture("idle"))
		decoded := svc.LatestDecoded()
		assert.InDelta(t, 0.5, decoded["x"], 0.001)
		assert.InDelta(t, 0.0, decoded["pressure"], 0.001)
		assert.Equal(t, false, decoded["button1"])
		assert.Equal(t, protocol.CodeValue{State: "hover"}, decoded["status"])
	})

	t.Run("finalize builds a complete mapping config", func(t *testing.T) {
		cfg, err := svc.Finalize(protocol.Metadata{
			Name:         "mock-tablet",
			Manufacturer: "thelearningtablet",
			Model:        "MOCK-01",
			Description:  "組み込みの模擬タブレット",
		})
		require.NoError(t, err)

		assert.Equal(t, mockdev.ReportID, cfg.ReportID)
		assert.Equal(t, "Mock Learning Tablet", cfg.DeviceInfo.ProductName)
		assert.True(t, cfg.Capabilities.HasPressure)
		assert.True(t, cfg.Capabilities.HasTilt)
		assert.True(t, cfg.Capabilities.HasButtons)
		assert.Equal(t, 4, cfg.Capabilities.ButtonCount)
		assert.Equal(t, mockdev.MaxPressure+1, cfg.Capabilities.PressureLevels)
		assert.Equal(t, mockdev.MaxCoord, cfg.Capabilities.Resolution.X)
		assert.Equal(t, mockdev.MaxCoord, cfg.Capabilities.Resolution.Y)
		assert.Len(t, cfg.ByteCodeMappings, 6)

		data, err := cfg.ToJSON(true)
		require.NoError(t, err)
		parsed, err := protocol.ParseConfig(data)
		require.NoError(t, err)
		assert.Equal(t, cfg.ReportID, parsed.ReportID)
	})
}

func TestLearnSessionStepRecovery(t *testing.T) {
	svc := NewLearnService(config.DefaultConfig())
	require.NoError(t, svc.Start("mock"))
	t.Cleanup(func() { _ = svc.Stop() })

	t.Run("reset discards the window and recaptures", func(t *testing.T) {
		require.NoError(t, svc.BeginStep("x", "horizontal-sweep"))
		require.NoError(t, svc.PlayGesture("idle"))
		require.NoError(t, svc.ResetStep())
		require.NoError(t, svc.PlayGesture("horizontal-sweep"))

		m, err := svc.CompleteStep(protocol.TypeMultiByteRange, nil)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, m.ByteIndexes())
	})

	t.Run("an idle window surfaces an ambiguous step", func(t *testing.T) {
		require.NoError(t, svc.BeginStep("pressure", "idle"))
		require.NoError(t, svc.PlayGesture("idle"))

		_, err := svc.CompleteStep(protocol.TypeRange, nil)
		var ambiguous *classifier.AmbiguousError
		require.ErrorAs(t, err, &ambiguous)
		assert.Equal(t, "pressure", ambiguous.Channel)
	})

	t.Run("claimed bytes never serve a second channel", func(t *testing.T) {
		require.NoError(t, svc.BeginStep("y", "horizontal-sweep"))
		require.NoError(t, svc.PlayGesture("horizontal-sweep"))

		_, err := svc.CompleteStep(protocol.TypeMultiByteRange, nil)
		var ambiguous *classifier.AmbiguousError
		assert.ErrorAs(t, err, &ambiguous)
	})

	t.Run("empty window surfaces the capture error", func(t *testing.T) {
		require.NoError(t, svc.BeginStep("pressure", "none"))
		_, err := svc.CompleteStep(protocol.TypeRange, nil)
		assert.Error(t, err)
	})
}
