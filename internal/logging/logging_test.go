package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_CriticalLevelName(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, envDev)
	log.Log(context.Background(), LevelCritical, "scrape list not found", "path", "data/x.json")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}
	if entry["level"] != "CRITICAL" {
		t.Errorf("level = %v, want CRITICAL", entry["level"])
	}
	if entry["path"] != "data/x.json" {
		t.Errorf("path = %v, want data/x.json", entry["path"])
	}
}

func TestNew_ProdDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, envProd)
	log.Debug("noisy")
	log.Info("kept")

	out := buf.String()
	if strings.Contains(out, "noisy") {
		t.Errorf("prod logger emitted a debug line: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("prod logger dropped an info line: %s", out)
	}
}

func TestNew_LocalIsText(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, envLocal).Warn("selector miss", "site", "Nykaa")

	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "site=Nykaa") {
		t.Errorf("unexpected text output: %s", buf.String())
	}
}
