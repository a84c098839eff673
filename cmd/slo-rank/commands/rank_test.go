package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/slo-ranker/internal/models"
)

const normalCSV = `timestamp,PetSite::latency::Average,ServiceA::latency::Average,ServiceB::latency::Average
2024-03-01T09:00:00Z,100,10,50
2024-03-01T09:01:00Z,100,10,50
2024-03-01T09:02:00Z,100,10,50
2024-03-01T09:03:00Z,100,10,50
2024-03-01T09:04:00Z,100,10,50
`

const abnormalCSV = `timestamp,PetSite::latency::Average,ServiceA::latency::Average,ServiceB::latency::Average
2024-03-01T10:00:00Z,120,12,50
2024-03-01T10:01:00Z,140,14,50
2024-03-01T10:02:00Z,160,16,50
2024-03-01T10:03:00Z,180,18,50
2024-03-01T10:04:00Z,180,18,60
`

const graphYAML = `edges:
  - source: PetSite
    target: ServiceA
  - source: PetSite
    target: ServiceB
`

func writeFixtures(t *testing.T) (normal, abnormal, graph string) {
	t.Helper()
	dir := t.TempDir()
	normal = filepath.Join(dir, "normal.csv")
	abnormal = filepath.Join(dir, "abnormal.csv")
	graph = filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(normal, []byte(normalCSV), 0o600))
	require.NoError(t, os.WriteFile(abnormal, []byte(abnormalCSV), 0o600))
	require.NoError(t, os.WriteFile(graph, []byte(graphYAML), 0o600))
	return normal, abnormal, graph
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SLO_RANKER_CONFIG", "")
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRankTextOutput(t *testing.T) {
	normal, abnormal, graph := writeFixtures(t)

	out, _, err := run(t, "rank",
		"--normal", normal, "--abnormal", abnormal, "--graph", graph,
		"--target-node", "PetSite", "--metric", "latency", "--statistic", "Average")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Contains(t, lines[0], "(kstest) target PetSite latency/Average")
	assert.Contains(t, lines[1], "NODE")
	assert.Contains(t, lines[2], "ServiceA")
	assert.Contains(t, lines[2], "1.0000")
	assert.Contains(t, lines[3], "ServiceB")
	assert.Contains(t, out, "note: degenerate_change")
}

func TestRankJSONOutputWithHollow(t *testing.T) {
	normal, abnormal, _ := writeFixtures(t)

	out, _, err := run(t, "rank",
		"--normal", normal, "--abnormal", abnormal,
		"--target-node", "PetSite", "--metric", "latency", "--statistic", "Average",
		"--analyzer", "hollow", "--top-k", "2", "--seed", "11", "-o", "json")
	require.NoError(t, err)

	var result models.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "hollow", result.Analyzer)
	require.Len(t, result.RootCauses, 2)
	for _, c := range result.RootCauses {
		assert.Equal(t, "PetSite", c.Node)
		assert.Greater(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
	}
}

func TestRankReferenceMissing(t *testing.T) {
	normal, abnormal, _ := writeFixtures(t)

	out, stderr, err := run(t, "rank",
		"--normal", normal, "--abnormal", abnormal,
		"--target-node", "PetSite", "--metric", "latency", "--statistic", "Average",
		"--reference", "Frontend")
	require.NoError(t, err)
	assert.Contains(t, out, "no root causes found")
	assert.Contains(t, out, "reference_missing")
	assert.Contains(t, stderr, "reference column not found")
}

func TestRankValidatesFlags(t *testing.T) {
	normal, abnormal, _ := writeFixtures(t)

	_, _, err := run(t, "rank", "--normal", normal)
	require.Error(t, err)

	_, _, err = run(t, "rank",
		"--normal", normal, "--abnormal", abnormal,
		"--target-node", "PetSite", "--metric", "latency", "--statistic", "Average",
		"-o", "yaml")
	require.Error(t, err)

	_, _, err = run(t, "rank",
		"--normal", normal, "--abnormal", abnormal,
		"--target-node", "PetSite", "--metric", "latency", "--statistic", "Average",
		"--analyzer", "granger")
	require.Error(t, err)

	_, _, err = run(t, "rank",
		"--normal", filepath.Join(t.TempDir(), "missing.csv"), "--abnormal", abnormal,
		"--target-node", "PetSite", "--metric", "latency", "--statistic", "Average")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "slo-rank "+Version+"\n", out)
}
