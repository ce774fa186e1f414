package xlog

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestLog(t *testing.T) {
	t.Run("LogTest", func(t *testing.T) {
		Write().Info("test log info.")
		Write().Debug("test log debug.", zap.String("tag", "ActivateGadgetRequest"))

		dir := t.TempDir()
		Load(&XLogConf{
			ServiceName: "test",
			Path:        dir,
			Filename:    "gadget.log",
			Mode:        FileMode,
			Encoding:    EncodingJson,
			Level:       "info",
		})
		t.Cleanup(func() { Load(&XLogConf{Level: "error"}) })

		Write().Error("test file log error.")
		_ = Sync()

		if _, err := os.Stat(filepath.Join(dir, "gadget.log")); err != nil {
			t.Fatalf("expected rotated log file: %v", err)
		}
	})
}

func TestParseLevel(t *testing.T) {
	if lvl, ok := ParseLevel(" WARN "); !ok || lvl != zap.WarnLevel {
		t.Fatalf("unexpected level: %v ok=%v", lvl, ok)
	}
	if lvl, ok := ParseLevel("verbose"); ok || lvl != zap.InfoLevel {
		t.Fatalf("unknown level should fall back to info: %v ok=%v", lvl, ok)
	}
}

func TestNop(t *testing.T) {
	Nop().Error("discarded")
}
