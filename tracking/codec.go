package tracking

import (
	"encoding/json"
	"errors"
	"math"
)

// CurrentSchemaVersion tags stored runs so incompatible records are
// rejected instead of misread
const CurrentSchemaVersion = 1

var ErrSchemaVersion = errors.New("run schema version mismatch")

func EncodeRun(r Run) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (Run, error) {
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return Run{}, err
	}
	if run.SchemaVersion != CurrentSchemaVersion {
		return Run{}, ErrSchemaVersion
	}
	return run, nil
}

// EncodeEpochMetrics serializes one epoch of metrics. NaN and infinite
// values cannot be represented in JSON and are dropped.
func EncodeEpochMetrics(em EpochMetrics) ([]byte, error) {
	values := make(map[string]float64, len(em.Values))
	for name, value := range em.Values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		values[name] = value
	}
	em.Values = values
	return json.Marshal(em)
}

func DecodeEpochMetrics(data []byte) (EpochMetrics, error) {
	var em EpochMetrics
	if err := json.Unmarshal(data, &em); err != nil {
		return EpochMetrics{}, err
	}
	return em, nil
}
