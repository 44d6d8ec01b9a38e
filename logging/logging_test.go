package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestObservedSublogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	sub := logger.Sublogger("fusion")
	sub.Infow("fused frame", "valid", 12)
	sub.WithFields("rig", "a").Debug("held")

	test.That(t, logs.Len(), test.ShouldEqual, 2)
	entries := logs.All()
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "fusion")
	test.That(t, entries[0].Message, test.ShouldEqual, "fused frame")
	test.That(t, entries[0].ContextMap()["valid"], test.ShouldEqual, int64(12))
	test.That(t, entries[1].Level, test.ShouldEqual, zapcore.DebugLevel)
	test.That(t, entries[1].ContextMap()["rig"], test.ShouldEqual, "a")
}

func TestSetLevel(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.SetLevel(WARN)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)
	logger.Info("dropped")
	logger.Warn("kept")
	test.That(t, logs.Len(), test.ShouldEqual, 1)
	test.That(t, logs.All()[0].Message, test.ShouldEqual, "kept")
}

func TestLevelStrings(t *testing.T) {
	for _, tc := range []struct {
		in    string
		level Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.level)
		test.That(t, LevelFromZap(level.AsZap()), test.ShouldEqual, level)
	}
	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, json.Unmarshal([]byte(`"error"`), &level), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, ERROR)
	md, err := json.Marshal(DEBUG)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(md), test.ShouldEqual, `"debug"`)
}

func TestBlankLogger(t *testing.T) {
	logger := NewBlankLogger("quiet")
	logger.Errorw("nothing", "k", 1)
	test.That(t, logger.Sublogger("x"), test.ShouldNotBeNil)
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandscape.log")
	logger, closer := NewFileLogger("rig", path, 1, INFO)
	logger.Debug("dropped")
	logger.Sublogger("terrain").Infow("grid built", "rows", 3)
	test.That(t, closer.Close(), test.ShouldBeNil)

	md, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(string(md)), "\n")
	test.That(t, lines, test.ShouldHaveLength, 1)

	var entry map[string]interface{}
	test.That(t, json.Unmarshal([]byte(lines[0]), &entry), test.ShouldBeNil)
	test.That(t, entry["msg"], test.ShouldEqual, "grid built")
	test.That(t, entry["logger"], test.ShouldEqual, "rig.terrain")
	test.That(t, entry["level"], test.ShouldEqual, "info")
	test.That(t, entry["rows"], test.ShouldEqual, 3.)
}
