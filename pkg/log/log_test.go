package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})

	Logger.Info().Msg("below threshold")
	Logger.Warn().Msg("at threshold")

	out := buf.String()
	assert.NotContains(t, out, "below threshold")
	assert.Contains(t, out, "at threshold")
}

func TestInitUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "verbose", JSONOutput: true, Output: &buf})

	Logger.Debug().Msg("debug line")
	Logger.Info().Msg("info line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.Contains(t, out, "info line")
}

func TestChildLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	componentLogger := WithComponent("store")
	componentLogger.Info().Msg("a")
	taskLogger := WithTask("crawl")
	taskLogger.Info().Msg("b")
	sourceLogger := WithSource("proxyscrape")
	sourceLogger.Info().Msg("c")
	workerLogger := WithWorkerID("worker-1")
	workerLogger.Info().Msg("d")

	out := buf.String()
	assert.Contains(t, out, `"component":"store"`)
	assert.Contains(t, out, `"task":"crawl"`)
	assert.Contains(t, out, `"source":"proxyscrape"`)
	assert.Contains(t, out, `"worker_id":"worker-1"`)
}
