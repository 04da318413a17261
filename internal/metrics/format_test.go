package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/common/expfmt"

	"github.com/quotascope/quotascope/internal/afs"
)

func TestFormatEmpty(t *testing.T) {
	if got := Format(nil); got != "" {
		t.Fatalf("Format(nil) = %q, want empty string", got)
	}
}

func TestFormatGroupsByName(t *testing.T) {
	records := []Record{
		Gauge("afs_capacity_used_bytes", 100,
			map[string]string{"dir_path": "/a"}, "Used storage capacity in bytes"),
		Gauge("afs_collection_total", 3, nil, "Total number of collection cycles"),
		Gauge("afs_capacity_used_bytes", 200,
			map[string]string{"dir_path": "/b"}, "Used storage capacity in bytes"),
	}

	out := Format(records)
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("output missing trailing newline")
	}

	want := []string{
		"# HELP afs_capacity_used_bytes Used storage capacity in bytes",
		"# TYPE afs_capacity_used_bytes gauge",
		`afs_capacity_used_bytes{dir_path="/a"} 100`,
		`afs_capacity_used_bytes{dir_path="/b"} 200`,
		"# HELP afs_collection_total Total number of collection cycles",
		"# TYPE afs_collection_total gauge",
		"afs_collection_total 3",
	}
	got := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(got), len(want), out)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFormatSortsLabelKeys(t *testing.T) {
	r := Gauge("afs_directory_state", 1, map[string]string{
		"zone":      "cn-east",
		"dir_path":  "/d",
		"volume_id": "vol-001",
	}, "Directory state (1=active, 0=inactive)")

	out := Format([]Record{r})
	want := `afs_directory_state{dir_path="/d",volume_id="vol-001",zone="cn-east"} 1`
	if !strings.Contains(out, want) {
		t.Fatalf("output missing %q:\n%s", want, out)
	}
}

func TestFormatEscapesLabelValues(t *testing.T) {
	r := Gauge("afs_collection_error", 1, map[string]string{
		"error_message": `dial "backend\main" failed` + "\nretrying",
	}, "Indicates an error occurred during volume collection")

	out := Format([]Record{r})
	want := `error_message="dial \"backend\\main\" failed\nretrying"`
	if !strings.Contains(out, want) {
		t.Fatalf("output missing %q:\n%s", want, out)
	}
}

// The emitted text must be accepted by the standard Prometheus parser with
// values intact.
func TestFormatRoundTripsThroughParser(t *testing.T) {
	out := Format(Transform([]afs.DirQuota{{
		VolumeID:              "vol-001",
		Zone:                  "cn-east",
		DirPath:               "/data/projects",
		FileQuantityQuota:     200,
		FileQuantityUsedQuota: 50,
		CapacityQuota:         1000,
		CapacityUsedQuota:     500,
		State:                 1,
	}}))

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(strings.NewReader(out))
	if err != nil {
		t.Fatalf("exposition does not parse: %v\n%s", err, out)
	}
	if len(families) != 7 {
		t.Fatalf("parsed %d families, want 7", len(families))
	}

	mf, ok := families["afs_capacity_utilization_percent"]
	if !ok {
		t.Fatal("afs_capacity_utilization_percent family missing")
	}
	m := mf.GetMetric()[0]
	if got := m.GetGauge().GetValue(); got != 50.0 {
		t.Fatalf("parsed utilization = %v, want exactly 50", got)
	}

	labels := make(map[string]string)
	for _, lp := range m.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	if labels["volume_id"] != "vol-001" || labels["zone"] != "cn-east" {
		t.Fatalf("parsed labels = %v", labels)
	}
}
