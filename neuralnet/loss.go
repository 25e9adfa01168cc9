package neuralnet

import (
	"strconv"
	"strings"
)

// squaredError returns sum_j (output[j] - onehot(class)[j])^2 for one row.
func squaredError(output []float64, class int) float64 {
	var loss float64
	for j, o := range output {
		if j == class {
			o -= 1
		}
		loss += o * o
	}
	return loss
}

// squaredErrorGradient writes output - onehot(class) into dst.
func squaredErrorGradient(dst, output []float64, class int) {
	for j, o := range output {
		if j == class {
			o -= 1
		}
		dst[j] = o
	}
}

// argmax returns the index of the largest value. Later indices win ties.
func argmax(row []float64) int {
	best := 0
	for j := 1; j < len(row); j++ {
		if row[j] >= row[best] {
			best = j
		}
	}
	return best
}

// Confusion counts (true class, predicted class) pairs over an evaluation
// set.
type Confusion struct {
	Matrix [][]int // Matrix[true][predicted]
	Hits   int
	Total  int
}

func newConfusion(nClasses int) *Confusion {
	m := make([][]int, nClasses)
	for i := range m {
		m[i] = make([]int, nClasses)
	}
	return &Confusion{Matrix: m}
}

func (c *Confusion) add(truth, predicted int) {
	c.Matrix[truth][predicted]++
	c.Total++
	if truth == predicted {
		c.Hits++
	}
}

// Accuracy is Hits / Total, or 0 for an empty set.
func (c *Confusion) Accuracy() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Hits) / float64(c.Total)
}

// Rows renders each true-class row as comma separated counts.
func (c *Confusion) Rows() []string {
	rows := make([]string, len(c.Matrix))
	for i, row := range c.Matrix {
		var sb strings.Builder
		for _, v := range row {
			sb.WriteString(strconv.Itoa(v))
			sb.WriteByte(',')
		}
		rows[i] = sb.String()
	}
	return rows
}
