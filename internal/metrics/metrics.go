package metrics

// Record is a single sample with its exposition metadata. Records are plain
// values; collection code builds them and the formatter renders them.
type Record struct {
	Name   string
	Value  float64
	Labels map[string]string
	Help   string
	Type   string
}

// Gauge builds a gauge Record, the only metric type the exporter emits for
// quota data.
func Gauge(name string, value float64, labels map[string]string, help string) Record {
	return Record{Name: name, Value: value, Labels: labels, Help: help, Type: "gauge"}
}
