package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/slo-ranker/internal/table"
)

func TestAlignColumns(t *testing.T) {
	common, onlyNormal, onlyAbnormal := alignColumns(
		[]string{"PetSite", "ServiceA", "ServiceB"},
		[]string{"ServiceC", "ServiceB", "PetSite"},
	)
	assert.Equal(t, []string{"PetSite", "ServiceB"}, common)
	assert.Equal(t, []string{"ServiceA"}, onlyNormal)
	assert.Equal(t, []string{"ServiceC"}, onlyAbnormal)
}

func TestMinMaxScale(t *testing.T) {
	tbl, err := table.FromColumns(
		[]string{"rising", "flat", "gappy"},
		[][]float64{
			{2, 4, 6},
			{7, 7, 7},
			{1, math.NaN(), 3},
		},
	)
	require.NoError(t, err)

	scaled, flat, err := minMaxScale(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"flat"}, flat)

	rising, _ := scaled.Column("rising")
	assert.InDeltaSlice(t, []float64{0, 0.5, 1}, rising, 1e-12)

	constant, _ := scaled.Column("flat")
	assert.Equal(t, []float64{0, 0, 0}, constant)

	gappy, _ := scaled.Column("gappy")
	assert.Equal(t, 0.0, gappy[0])
	assert.True(t, math.IsNaN(gappy[1]))
	assert.Equal(t, 1.0, gappy[2])
}

func TestMinMaxScaleAllMissingColumn(t *testing.T) {
	tbl, _ := table.FromColumns([]string{"empty"}, [][]float64{{math.NaN(), math.NaN()}})
	scaled, flat, err := minMaxScale(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"empty"}, flat)
	col, _ := scaled.Column("empty")
	assert.True(t, math.IsNaN(col[0]) && math.IsNaN(col[1]))
}

func TestPercentChanges(t *testing.T) {
	window, _ := table.FromColumns(
		[]string{"up", "down", "zero"},
		[][]float64{
			{0.5, 0.75, 1},
			{1, 0.5, 0.5},
			{0, 0.2, 0.4},
		},
	)

	changes, zeroStart := percentChanges(window, HigherIsWorse)
	require.Len(t, changes, 3)
	assert.InDelta(t, 100, changes[0].Change, 1e-9)
	assert.InDelta(t, -50, changes[1].Change, 1e-9)
	assert.Equal(t, 0.0, changes[2].Change)
	assert.Equal(t, []string{"zero"}, zeroStart)

	changes, _ = percentChanges(window, LowerIsWorse)
	assert.InDelta(t, -100, changes[0].Change, 1e-9)
	assert.InDelta(t, 50, changes[1].Change, 1e-9)
}

func TestTopCandidates(t *testing.T) {
	changes := []ColumnChange{
		{Column: "a", Change: 5},
		{Column: "nan", Change: math.NaN()},
		{Column: "b", Change: 50},
		{Column: "c", Change: 5},
		{Column: "d", Change: -10},
	}

	top := topCandidates(changes, 10)
	names := make([]string, 0, len(top))
	for _, c := range top {
		names = append(names, c.Column)
	}
	assert.Equal(t, []string{"b", "a", "c", "d", "nan"}, names)

	assert.Len(t, topCandidates(changes, 2), 2)
	assert.Equal(t, "a", changes[0].Column, "input order must be preserved")
}

func TestKSDistance(t *testing.T) {
	a := []float64{0, 0.25, 0.5, 0.75, 1}
	assert.Equal(t, 0.0, ksDistance(a, []float64{1, 0.75, 0.5, 0.25, 0}))
	assert.InDelta(t, 0.6, ksDistance(a, []float64{0, 0, 0, 0, 1}), 1e-12)
	assert.Equal(t, 1.0, ksDistance([]float64{0, 0.1}, []float64{0.5, 0.9}))
	assert.Equal(t, 1.0, ksDistance(a, []float64{math.NaN()}))
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, a, "inputs must not be reordered")
}

func TestSimilarityBounds(t *testing.T) {
	assert.Equal(t, 1.0, similarity(0))
	assert.InDelta(t, 0.5, similarity(1), 1e-12)
	assert.Greater(t, similarity(0.2), similarity(0.3))
}
