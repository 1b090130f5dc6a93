package mldetect

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Baseline holds the fixed mean/std pair a score is z-normalized against,
// tied to one trained model release (spec.md §4.4).
type Baseline struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Artifacts is everything the ML detector loads once at startup: the
// point-anomaly ensemble and its scaler, the sequence reconstruction
// network and its (possibly absent) scaler, and the baseline statistics
// both scores are z-normalized against.
type Artifacts struct {
	ModelVersion   string        `json:"model_version"`
	FeatureScaler  Scaler        `json:"feature_scaler"`
	SequenceScaler *Scaler       `json:"sequence_scaler"`
	Forest         Forest        `json:"isolation_forest"`
	Sequence       SequenceModel `json:"sequence_model"`
	IsoBaseline    Baseline      `json:"iso_baseline"`
	LSTMBaseline   Baseline      `json:"lstm_baseline"`
}

// defaultBaselines matches spec.md §4.4's hardcoded constants, used when
// the artifact file omits them (they are a property of the training run,
// not something every artifact build necessarily re-states).
var (
	defaultIsoBaseline  = Baseline{Mean: -0.14, Std: 0.012}
	defaultLSTMBaseline = Baseline{Mean: 13.99, Std: 2.68}
)

// Load reads a zstd-compressed JSON artifact bundle from path. A missing
// file is a fatal startup error per spec.md §6/§7 ("ML artifact missing").
func Load(path string) (*Artifacts, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ml artifacts %q: %w", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("initializing zstd reader: %w", err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompressing ml artifacts: %w", err)
	}

	var a Artifacts
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("parsing ml artifacts json: %w", err)
	}

	if a.SequenceScaler == nil {
		a.SequenceScaler = &a.FeatureScaler
	}
	if a.IsoBaseline == (Baseline{}) {
		a.IsoBaseline = defaultIsoBaseline
	}
	if a.LSTMBaseline == (Baseline{}) {
		a.LSTMBaseline = defaultLSTMBaseline
	}
	if a.ModelVersion == "" {
		a.ModelVersion = "v1.0"
	}
	return &a, nil
}
