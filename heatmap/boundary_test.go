package heatmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rssiOnly(positions []Point, values []Reading) *DataSet {
	return NewDataSetFromSeries(positions, nil, map[Metric][]Reading{SensorRSSI: values}, 100, 100)
}

func TestAugment_Policies(t *testing.T) {
	positions := []Point{{20, 20}, {80, 40}, {50, 70}}
	values := []Reading{Some(-80), Some(-60), Some(-55)}

	tests := []struct {
		policy      BoundaryPolicy
		wantCorners int
		wantValue   float64
	}{
		{BoundaryMin, 4, -80},
		{BoundaryMean, 4, -65},
		{BoundaryNone, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			aug := Augment(rssiOnly(positions, values), Corners(100, 100), tt.policy)

			assert.Equal(t, 3, aug.Measured)
			assert.Len(t, aug.Positions, 3+tt.wantCorners)
			assert.Equal(t, positions, aug.Positions[:3], "measured points come first")

			pos, vals, err := aug.Samples(SensorRSSI)
			require.NoError(t, err)
			assert.Len(t, pos, 3+tt.wantCorners)
			for _, v := range vals[3:] {
				assert.InDelta(t, tt.wantValue, v, 1e-12)
			}
		})
	}
}

func TestAugment_CoincidentCornerNotAdded(t *testing.T) {
	positions := []Point{{0, 0}, {100, 100}, {50, 50}}
	values := []Reading{Some(-80), Some(-50), Some(-60)}

	aug := Augment(rssiOnly(positions, values), Corners(100, 100), BoundaryMin)

	pos, vals, err := aug.Samples(SensorRSSI)
	require.NoError(t, err)
	assert.Equal(t, []Point{{0, 0}, {100, 100}, {50, 50}, {0, 100}, {100, 0}}, pos,
		"only (0,100) and (100,0) are new knots")
	assert.Equal(t, []float64{-80, -50, -60, -80, -80}, vals)
}

func TestAugment_CornerOverNullReadingKept(t *testing.T) {
	positions := []Point{{0, 0}, {50, 50}, {20, 80}}
	ds := NewDataSetFromSeries(positions, nil, map[Metric][]Reading{
		SensorRSSI: {{}, Some(-60), Some(-50)},
		SensorSNR:  {Some(4), Some(6), Some(8)},
	}, 100, 100)

	aug := Augment(ds, Corners(100, 100), BoundaryMin)

	pos, vals, err := aug.Samples(SensorRSSI)
	require.NoError(t, err)
	assert.Equal(t, []Point{{50, 50}, {20, 80}, {0, 0}, {0, 100}, {100, 0}, {100, 100}}, pos,
		"a null reading at (0,0) leaves the corner anchored")
	assert.Equal(t, []float64{-60, -50, -60, -60, -60, -60}, vals)

	pos, _, err = aug.Samples(SensorSNR)
	require.NoError(t, err)
	assert.Len(t, pos, 6, "the measured snr at (0,0) replaces its corner")
	count := 0
	for _, p := range pos {
		if p == (Point{0, 0}) {
			count++
		}
	}
	assert.Equal(t, 1, count, "no duplicate knot at (0,0)")
}

func TestAugment_NullReadingsExcluded(t *testing.T) {
	positions := []Point{{20, 20}, {80, 40}, {50, 70}}
	values := []Reading{Some(-80), {}, Some(-40)}

	aug := Augment(rssiOnly(positions, values), Corners(100, 100), BoundaryMean)

	pos, vals, err := aug.Samples(SensorRSSI)
	require.NoError(t, err)
	assert.NotContains(t, pos, Point{80, 40})
	assert.Len(t, vals, 2+4)
	assert.InDelta(t, -60, vals[len(vals)-1], 1e-12, "mean ignores the null reading")
}

func TestAugment_Skips(t *testing.T) {
	positions := []Point{{20, 20}, {80, 40}}
	ds := NewDataSetFromSeries(positions, nil, map[Metric][]Reading{
		SensorRSSI:  {Some(-70), Some(-60)},
		SensorSNR:   {{}, {}},
		GatewayRSSI: {Some(-90)},
	}, 100, 100)

	aug := Augment(ds, Corners(100, 100), BoundaryMin)

	assert.NoError(t, aug.Skipped(SensorRSSI))
	assert.True(t, errors.Is(aug.Skipped(SensorSNR), ErrInsufficientData), "all-null metric")
	assert.True(t, errors.Is(aug.Skipped(GatewayRSSI), ErrHolePattern), "short series")
	assert.True(t, errors.Is(aug.Skipped(GatewaySNR), ErrInsufficientData), "absent metric")

	_, _, err := aug.Samples(GatewayRSSI)
	assert.ErrorIs(t, err, ErrHolePattern)
}

func TestParseBoundaryPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    BoundaryPolicy
		wantErr bool
	}{
		{"", BoundaryMin, false},
		{"min", BoundaryMin, false},
		{"MEAN", BoundaryMean, false},
		{" none ", BoundaryNone, false},
		{"median", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseBoundaryPolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCorners(t *testing.T) {
	assert.Equal(t, []Point{{0, 0}, {0, 60}, {80, 0}, {80, 60}}, Corners(80, 60))
}
