package dataset

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthonyKot/glyphnet/random"
)

var quiet = log.New(io.Discard, "", 0)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func tinyDataset(t *testing.T, rng random.Source) *Dataset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiny.csv")
	mustWrite(t, path, "0,1,1,1,1\n1,0,0,0,0\n0,1,0,1,0\n1,0,1,0,1\n")

	d := New(rng, Options{InputSize: 2, TargetSize: 2, Threshold: 0}, quiet)
	require.NoError(t, d.Load([]string{path}, []int{0}))
	require.Len(t, d.Samples, 4)
	return d
}

func TestReadCSV(t *testing.T) {
	in := "3,0,255,x\nlabel,1,2,3\n\n7,10,,20\r\n"
	samples, err := ReadCSV(strings.NewReader(in), 10, 0)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, Sample{Label: 13, Pixels: []int{0, 255, 0}}, samples[0])
	assert.Equal(t, Sample{Label: 17, Pixels: []int{10, 0, 20}}, samples[1])

	limited, err := ReadCSV(strings.NewReader(in), 0, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestWriteRecordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, 4, []int{0, 255, 255}))
	require.NoError(t, WriteRecord(&buf, 5, []int{1, 2, 3}))
	assert.Equal(t, "4,0,255,255\n5,1,2,3\n", buf.String())

	samples, err := ReadCSV(&buf, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []Sample{{4, []int{0, 255, 255}}, {5, []int{1, 2, 3}}}, samples)
}

func TestLoadOffsetsAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	digits := filepath.Join(dir, "digits.csv")
	letters := filepath.Join(dir, "letters.csv")
	mustWrite(t, digits, "3,0,0,0,200\n")
	mustWrite(t, letters, "0,10,20,30,40\n1,0,0,0,0\n")

	d := New(random.New(1), Options{InputSize: 2, TargetSize: 2, Threshold: 25}, quiet)
	require.NoError(t, d.Load([]string{digits, letters}, []int{0, 10}))
	require.Len(t, d.Samples, 3)

	// the lone pixel fills the whole canvas after cropping
	assert.Equal(t, Sample{Label: 3, Pixels: []int{1, 1, 1, 1}}, d.Samples[0])
	assert.Equal(t, Sample{Label: 10, Pixels: []int{0, 0, 1, 1}}, d.Samples[1])
	assert.Equal(t, Sample{Label: 11, Pixels: []int{0, 0, 0, 0}}, d.Samples[2])
	assert.Equal(t, map[int]int{3: 1, 10: 1, 11: 1}, d.Counts())
}

func TestLoadMismatchedOffsets(t *testing.T) {
	d := New(random.New(1), DefaultOptions(), quiet)
	err := d.Load([]string{"a.csv", "b.csv"}, []int{0})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestLoadWrongImageSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	mustWrite(t, path, "1,0,0,0\n")
	d := New(random.New(1), Options{InputSize: 2, TargetSize: 2}, quiet)
	require.ErrorIs(t, d.Load([]string{path}, []int{0}), ErrInvalidInput)
}

func TestSplitIdentity(t *testing.T) {
	d := tinyDataset(t, random.Identity{})

	train, valid, test, err := d.Split(0.5, 0.25)
	require.NoError(t, err)
	assert.Len(t, train, 2)
	assert.Len(t, valid, 1)
	assert.Len(t, test, 1)
	assert.Equal(t, []Sample{{0, []int{1, 1, 1, 1}}, {1, []int{0, 0, 0, 0}}}, train)
}

func TestSplitSizes(t *testing.T) {
	d := New(random.New(5), DefaultOptions(), quiet)
	for i := 0; i < 37; i++ {
		d.Samples = append(d.Samples, Sample{Label: i % 3, Pixels: []int{i}})
	}
	ratios := [][2]float64{{0.8, 0.1}, {0.5, 0.5}, {1, 0}, {0, 0}, {0.33, 0.33}}
	for _, r := range ratios {
		train, valid, test, err := d.Split(r[0], r[1])
		require.NoError(t, err)
		assert.Equal(t, 37, len(train)+len(valid)+len(test))
		assert.Equal(t, int(37*r[0]), len(train))
		assert.Equal(t, int(37*r[1]), len(valid))
	}
}

func TestSplitDeterministic(t *testing.T) {
	build := func() *Dataset {
		d := New(random.New(9), DefaultOptions(), quiet)
		for i := 0; i < 20; i++ {
			d.Samples = append(d.Samples, Sample{Label: i, Pixels: []int{i}})
		}
		return d
	}
	a1, b1, c1, _ := build().Split(0.6, 0.2)
	a2, b2, c2, _ := build().Split(0.6, 0.2)
	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
	assert.Equal(t, c1, c2)
}

func TestSplitRejectsRatios(t *testing.T) {
	d := New(random.New(1), DefaultOptions(), quiet)
	_, _, _, err := d.Split(0.8, 0.3)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, _, _, err = d.Split(-0.1, 0.3)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestShufflePreservesPairs(t *testing.T) {
	samples := func() []Sample {
		s := make([]Sample, 30)
		for i := range s {
			s[i] = Sample{Label: i, Pixels: []int{i * 10}}
		}
		return s
	}
	d := New(random.New(3), DefaultOptions(), quiet)
	got := samples()
	d.Shuffle(got)

	for _, s := range got {
		assert.Equal(t, s.Label*10, s.Pixels[0])
	}
	sorted := append([]Sample(nil), got...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Label < sorted[j].Label })
	assert.Equal(t, samples(), sorted)

	again := samples()
	New(random.New(3), DefaultOptions(), quiet).Shuffle(again)
	assert.Equal(t, got, again)

	identity := samples()
	New(random.Identity{}, DefaultOptions(), quiet).Shuffle(identity)
	assert.Equal(t, samples(), identity)
}

func TestAugmentMinority(t *testing.T) {
	opts := Options{InputSize: 24, TargetSize: 24, Threshold: 50}
	d := New(random.New(11), opts, quiet)

	glyph := make([]int, 24*24)
	for y := 6; y < 18; y++ {
		glyph[y*24+12] = 1
	}
	var samples []Sample
	for i := 0; i < 5; i++ {
		samples = append(samples, Sample{Label: 11, Pixels: glyph})
		samples = append(samples, Sample{Label: 3, Pixels: glyph})
	}
	original := append([]Sample(nil), samples...)

	out, err := d.Augment(samples, []int{11})
	require.NoError(t, err)
	require.Len(t, out, len(samples)+2*5)
	assert.Equal(t, original, out[:len(samples)])
	assert.Equal(t, original, samples)
	for _, s := range out[len(samples):] {
		assert.Equal(t, 11, s.Label)
		assert.Len(t, s.Pixels, 24*24)
	}

	none, err := d.Augment(samples, nil)
	require.NoError(t, err)
	assert.Equal(t, original, none)
}

func TestMatrix(t *testing.T) {
	m, labels := Matrix([]Sample{{2, []int{1, 0}}, {5, []int{0, 1}}})
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, []int{2, 5}, labels)
	assert.Equal(t, 1.0, m.At(1, 1))

	empty, none := Matrix(nil)
	assert.Nil(t, empty)
	assert.Nil(t, none)
}

func TestOptions(t *testing.T) {
	d := tinyDataset(t, random.Identity{})
	assert.Equal(t, Options{InputSize: 2, TargetSize: 2, Threshold: 0}, d.Options())
	assert.Equal(t, DefaultOptions(), New(random.Identity{}, DefaultOptions(), quiet).Options())
}
