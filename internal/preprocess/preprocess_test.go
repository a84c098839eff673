package preprocess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/slo-ranker/internal/table"
)

var nan = math.NaN()

func rawTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New(
		[]string{
			Key("PetSite", "latency", "Average"),
			Key("PetSite", "latency", "p99"),
			Key("ServiceA", "latency", "Average"),
			Key("ServiceA", "availability", "Average"),
			"unstructured",
		},
		[][]float64{
			{1, 10, 2, 1, 7},
			{2, 20, 3, 1, 7},
		},
	)
	require.NoError(t, err)
	return tbl
}

func TestParseKey(t *testing.T) {
	key, ok := ParseKey("pet::site::latency::Average")
	require.True(t, ok)
	assert.Equal(t, ColumnKey{Node: "pet::site", Metric: "latency", Statistic: "Average"}, key)
	assert.Equal(t, "pet::site::latency::Average", key.String())

	for _, bad := range []string{"PetSite", "PetSite::latency", "::latency::Average", "PetSite::::Average"} {
		_, ok := ParseKey(bad)
		assert.False(t, ok, bad)
	}
}

func TestReduce(t *testing.T) {
	reduced, err := Reduce(rawTable(t), "latency", "Average")
	require.NoError(t, err)

	assert.Equal(t, []string{"PetSite", "ServiceA"}, reduced.Columns())
	col, _ := reduced.Column("ServiceA")
	assert.Equal(t, []float64{2, 3}, col)
}

func TestReduceUnknownMetricYieldsEmptyTable(t *testing.T) {
	reduced, err := Reduce(rawTable(t), "cpu", "Average")
	require.NoError(t, err)
	assert.Zero(t, reduced.NumColumns())
}

func TestReduceRejectsDuplicateNode(t *testing.T) {
	tbl, err := table.New([]string{"A::latency::Average", "A ::latency::Average"}, [][]float64{{1, 2}})
	require.NoError(t, err)

	_, err = Reduce(tbl, "latency", "Average")
	require.Error(t, err)
}

func TestMarginalize(t *testing.T) {
	marginal, err := Marginalize(rawTable(t), "ServiceA")
	require.NoError(t, err)
	assert.Equal(t, []string{"latency::Average", "availability::Average"}, marginal.Columns())
}

func TestNodes(t *testing.T) {
	assert.Equal(t, []string{"PetSite", "ServiceA"}, Nodes(rawTable(t)))
}

func TestImpute(t *testing.T) {
	cases := []struct {
		method ImputeMethod
		input  []float64
		want   []float64
	}{
		{ImputeMean, []float64{1, nan, 3}, []float64{1, 2, 3}},
		{ImputeMedian, []float64{1, nan, 9, 4}, []float64{1, 4, 9, 4}},
		{ImputeMedian, []float64{4, 2, nan, 1, 3}, []float64{4, 2, 2.5, 1, 3}},
		{ImputeZero, []float64{nan, 5}, []float64{0, 5}},
		{ImputeForward, []float64{nan, 1, nan, 3, nan}, []float64{1, 1, 1, 3, 3}},
		{ImputeBackward, []float64{nan, 1, nan, 3, nan}, []float64{1, 1, 3, 3, 3}},
		{ImputeInterpolate, []float64{nan, 1, nan, nan, 4, nan}, []float64{1, 1, 2, 3, 4, 4}},
		{ImputeMean, []float64{nan, nan}, []float64{0, 0}},
	}
	for _, tc := range cases {
		t.Run(string(tc.method), func(t *testing.T) {
			tbl, err := table.FromColumns([]string{"x"}, [][]float64{tc.input})
			require.NoError(t, err)

			filled, err := Impute(tbl, tc.method)
			require.NoError(t, err)

			got, _ := filled.Column("x")
			assert.InDeltaSlice(t, tc.want, got, 1e-9)
			assert.Equal(t, 0, filled.Missing())

			orig, _ := tbl.Column("x")
			assert.True(t, math.IsNaN(orig[0]) || math.IsNaN(orig[1]), "source table must keep its gaps")
		})
	}
}

func TestImputeNoneReturnsInput(t *testing.T) {
	tbl, _ := table.FromColumns([]string{"x"}, [][]float64{{nan}})
	out, err := Impute(tbl, ImputeNone)
	require.NoError(t, err)
	assert.Same(t, tbl, out)
}

func TestParseImputeMethod(t *testing.T) {
	m, err := ParseImputeMethod(" Mean ")
	require.NoError(t, err)
	assert.Equal(t, ImputeMean, m)

	m, err = ParseImputeMethod("")
	require.NoError(t, err)
	assert.Equal(t, ImputeNone, m)

	_, err = ParseImputeMethod("knn")
	require.Error(t, err)

	_, err = Impute(table.Empty(), ImputeMethod("knn"))
	require.Error(t, err)
}
