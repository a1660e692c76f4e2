package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO, false)
	l.now = fixedClock

	l.Debug("hidden")
	l.WithField("plan", "sweep").Info("step done", Fields{"label": "match", "seconds": 0.2})

	assert.Equal(t, "[2024-05-02 08:30:00] INFO: step done label=match plan=sweep seconds=0.2\n", buf.String())
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG, true)
	l.now = fixedClock

	l.Warn("slow step", Fields{"label": "icp"})

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "slow step", entry.Message)
	assert.Equal(t, "2024-05-02T08:30:00Z", entry.Timestamp)
	assert.Equal(t, "icp", entry.Fields["label"])
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(&buf, INFO, false)
	parent.now = fixedClock
	_ = parent.WithField("child", true)

	parent.Info("plain")
	assert.False(t, strings.Contains(buf.String(), "child"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"", INFO, false},
		{"warning", WARN, false},
		{"error", ERROR, false},
		{"loud", INFO, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "regtimer.log")
	l, err := NewFileLogger(path, INFO, false)
	require.NoError(t, err)

	l.Info("written to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO: written to file")
}

func TestDiscard(t *testing.T) {
	l := Discard()
	assert.False(t, l.Enabled(ERROR))
	l.Error("nothing")
}
