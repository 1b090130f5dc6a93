package mldetect

import "math"

// gate bundles the input/recurrent weight matrices and bias for one LSTM
// gate, stored row-major: Wx has one row per hidden unit, each row of
// length 9 (the feature count); Wh has one row per hidden unit, each row
// of length HiddenSize.
type gate struct {
	Wx [][]float64 `json:"wx"`
	Wh [][]float64 `json:"wh"`
	B  []float64   `json:"b"`
}

func (g gate) forward(x [9]float64, hPrev []float64, activate func(float64) float64) []float64 {
	hidden := len(g.B)
	out := make([]float64, hidden)
	for i := 0; i < hidden; i++ {
		sum := g.B[i]
		for j, xj := range x {
			sum += g.Wx[i][j] * xj
		}
		for j, hj := range hPrev {
			sum += g.Wh[i][j] * hj
		}
		out[i] = activate(sum)
	}
	return out
}

func sigmoid(v float64) float64 { return 1.0 / (1.0 + math.Exp(-v)) }

// SequenceModel is a single-layer LSTM reconstruction network: it reads a
// fixed-length window of feature vectors and its output layer predicts the
// feature vector of the window's own last timestep, matching the
// original's autoencoder-style "reconstruction error" sequence score.
type SequenceModel struct {
	HiddenSize int       `json:"hidden_size"`
	Input      gate      `json:"input_gate"`
	Forget     gate      `json:"forget_gate"`
	Cell       gate      `json:"cell_gate"`
	Output     gate      `json:"output_gate"`
	Wy         [][]float64 `json:"wy"` // 9 rows, HiddenSize columns
	By         []float64   `json:"by"` // length 9
}

// Reconstruct runs the LSTM forward across window (oldest first) and
// projects the final hidden state back into feature space, the model's
// best guess at window's own last element.
func (m SequenceModel) Reconstruct(window [][9]float64) [9]float64 {
	h := make([]float64, m.HiddenSize)
	c := make([]float64, m.HiddenSize)

	for _, x := range window {
		i := m.Input.forward(x, h, sigmoid)
		f := m.Forget.forward(x, h, sigmoid)
		g := m.Cell.forward(x, h, math.Tanh)
		o := m.Output.forward(x, h, sigmoid)

		for k := range c {
			c[k] = f[k]*c[k] + i[k]*g[k]
			h[k] = o[k] * math.Tanh(c[k])
		}
	}

	var pred [9]float64
	for i := 0; i < 9; i++ {
		sum := m.By[i]
		for j, hj := range h {
			sum += m.Wy[i][j] * hj
		}
		pred[i] = sum
	}
	return pred
}

// mseLastStep is the mean squared error between the window's actual last
// element and the model's reconstruction of it.
func mseLastStep(actual, predicted [9]float64) float64 {
	sum := 0.0
	for i := range actual {
		d := actual[i] - predicted[i]
		sum += d * d
	}
	return sum / float64(len(actual))
}
