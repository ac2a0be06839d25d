package tensor

// Adapt reshapes m to the model's expected input shape (batch dimension
// excluded) and returns a tensor with a leading batch dimension of 1.
//
// Branches on the rank of expected:
//
//	nil / rank 0   mean over time               → [1, C]
//	rank 1 (size)  flatten, pad/truncate tail   → [1, size]
//	rank 2 (T, F)  columns to F, then rows to T → [1, T, F]
//	other          mean over time               → [1, C]
//
// Padding is always zero-fill at the end; truncation keeps the leading
// elements. In the rank-2 case the coefficient axis is adapted before the
// time axis. The result never aliases m.
func Adapt(m *FeatureMatrix, expected Shape) *Tensor {
	switch len(expected) {
	case 1:
		return adaptFlat(m, expected[0])
	case 2:
		return adaptSequence(m, expected[0], expected[1])
	default:
		return meanOverTime(m)
	}
}

// meanOverTime averages the frames into a single [1, C] vector. An empty
// matrix yields zeros.
func meanOverTime(m *FeatureMatrix) *Tensor {
	vec := make([]float32, m.Coeffs)
	if n := len(m.Frames); n > 0 {
		sums := make([]float64, m.Coeffs)
		for _, row := range m.Frames {
			for c := 0; c < m.Coeffs && c < len(row); c++ {
				sums[c] += float64(row[c])
			}
		}
		for c, s := range sums {
			vec[c] = float32(s / float64(n))
		}
	}
	return &Tensor{Shape: Shape{1, m.Coeffs}, Data: vec}
}

// adaptFlat flattens m row-major into a vector of exactly size elements.
func adaptFlat(m *FeatureMatrix, size int) *Tensor {
	if size < 0 {
		size = 0
	}
	vec := make([]float32, size)
	pos := 0
	for _, row := range m.Frames {
		if pos >= size {
			break
		}
		pos += copy(vec[pos:], row)
	}
	return &Tensor{Shape: Shape{1, size}, Data: vec}
}

// adaptSequence fits m into a [timesteps, features] grid.
func adaptSequence(m *FeatureMatrix, timesteps, features int) *Tensor {
	if timesteps < 0 {
		timesteps = 0
	}
	if features < 0 {
		features = 0
	}

	// Coefficient axis first.
	rows := fitColumns(m.Frames, features)

	// Then the time axis into a zero grid.
	data := make([]float32, timesteps*features)
	for t := 0; t < timesteps && t < len(rows); t++ {
		copy(data[t*features:(t+1)*features], rows[t])
	}
	return &Tensor{Shape: Shape{1, timesteps, features}, Data: data}
}

// fitColumns returns rows zero-padded or truncated to exactly width columns.
func fitColumns(frames [][]float32, width int) [][]float32 {
	out := make([][]float32, len(frames))
	for t, row := range frames {
		r := make([]float32, width)
		copy(r, row)
		out[t] = r
	}
	return out
}
