package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHelpers(t *testing.T) {
	RecordGridPoint(50, 0.005, 0.02, 0.91)
	if got := testutil.ToFloat64(CFGridRMSE.WithLabelValues("50", "0.005", "0.02")); got != 0.91 {
		t.Errorf("grid gauge = %v", got)
	}

	before := testutil.ToFloat64(RemoteTransfers.WithLabelValues("upload", "failure"))
	RecordTransfer("upload", errors.New("timeout"))
	if got := testutil.ToFloat64(RemoteTransfers.WithLabelValues("upload", "failure")); got != before+1 {
		t.Errorf("failure counter = %v, want %v", got, before+1)
	}
}

func TestWriteTextfile(t *testing.T) {
	RecordStage("load", 20*time.Millisecond, nil)
	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "recpipe_stage_duration_seconds") {
		t.Errorf("textfile missing stage histogram:\n%s", data)
	}
}
