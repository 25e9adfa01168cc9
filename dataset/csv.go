package dataset

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultMaxRows caps how many records a single source contributes.
const DefaultMaxRows = 20000000

// ReadCSV reads `label,p0,p1,...` records. labelOffset is added to every
// label so several sources can share one id space. Lines whose label does not
// parse are skipped; a pixel field that does not parse reads as 0. At most
// maxRows records are returned (maxRows <= 0 means DefaultMaxRows).
func ReadCSV(r io.Reader, labelOffset, maxRows int) ([]Sample, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var samples []Sample
	for len(samples) < maxRows && scanner.Scan() {
		values := strings.Split(strings.TrimRight(scanner.Text(), "\r"), ",")
		label, err := strconv.Atoi(strings.TrimSpace(values[0]))
		if err != nil {
			continue
		}
		pixels := make([]int, len(values)-1)
		for i, v := range values[1:] {
			p, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				p = 0
			}
			pixels[i] = p
		}
		samples = append(samples, Sample{Label: label + labelOffset, Pixels: pixels})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read csv")
	}
	return samples, nil
}

// WriteRecord appends one sample as a CSV line in the format ReadCSV accepts.
func WriteRecord(w io.Writer, label int, pixels []int) error {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(label))
	for _, p := range pixels {
		sb.WriteByte(',')
		sb.WriteString(strconv.Itoa(p))
	}
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return errors.Wrap(err, "write record")
}
