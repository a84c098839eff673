// Package preprocess turns raw per-service metrics tables into the shapes consumed by the
// ranking engine.
//
// Raw tables carry one column per (node, metric, statistic) triple, encoded as
// "node::metric::statistic". Reduce collapses such a table to one column per node for a
// single metric and statistic, Marginalize collapses it to the columns of a single node, and
// Impute fills missing observations.
package preprocess

import (
	"fmt"
	"strings"

	"github.com/miradorstack/slo-ranker/internal/table"
)

// KeySeparator joins the node, metric and statistic parts of a raw column name.
const KeySeparator = "::"

// ColumnKey identifies a raw metrics column.
type ColumnKey struct {
	Node      string
	Metric    string
	Statistic string
}

// String encodes the key as a raw column name.
func (k ColumnKey) String() string {
	return Key(k.Node, k.Metric, k.Statistic)
}

// Key builds a raw column name.
func Key(node, metric, statistic string) string {
	return node + KeySeparator + metric + KeySeparator + statistic
}

// ParseKey splits a raw column name. Node names may themselves contain the separator; the
// metric and statistic are always the last two parts.
func ParseKey(name string) (ColumnKey, bool) {
	last := strings.LastIndex(name, KeySeparator)
	if last <= 0 {
		return ColumnKey{}, false
	}
	statistic := name[last+len(KeySeparator):]
	rest := name[:last]
	mid := strings.LastIndex(rest, KeySeparator)
	if mid <= 0 {
		return ColumnKey{}, false
	}
	key := ColumnKey{
		Node:      strings.TrimSpace(rest[:mid]),
		Metric:    strings.TrimSpace(rest[mid+len(KeySeparator):]),
		Statistic: strings.TrimSpace(statistic),
	}
	if key.Node == "" || key.Metric == "" || key.Statistic == "" {
		return ColumnKey{}, false
	}
	return key, true
}

// Reduce keeps the columns holding metric/statistic and renames them to their node. Column
// order follows the raw table. Columns that do not follow the key convention are ignored.
func Reduce(raw *table.Table, metric, statistic string) (*table.Table, error) {
	if raw == nil {
		return nil, fmt.Errorf("reduce: nil table")
	}
	var (
		selected []string
		nodes    = make(map[string]string)
		owners   = make(map[string]string)
	)
	for _, name := range raw.Columns() {
		key, ok := ParseKey(name)
		if !ok || key.Metric != metric || key.Statistic != statistic {
			continue
		}
		if prev, dup := owners[key.Node]; dup {
			return nil, fmt.Errorf("reduce: node %q has columns %q and %q", key.Node, prev, name)
		}
		owners[key.Node] = name
		nodes[name] = key.Node
		selected = append(selected, name)
	}

	reduced, err := raw.Select(selected)
	if err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}
	renamed, err := reduced.Rename(func(name string) string { return nodes[name] })
	if err != nil {
		return nil, fmt.Errorf("reduce %s/%s: %w", metric, statistic, err)
	}
	return renamed, nil
}

// Marginalize keeps the columns that belong to node and renames them to
// "metric::statistic".
func Marginalize(raw *table.Table, node string) (*table.Table, error) {
	if raw == nil {
		return nil, fmt.Errorf("marginalize: nil table")
	}
	var selected []string
	renames := make(map[string]string)
	for _, name := range raw.Columns() {
		key, ok := ParseKey(name)
		if !ok || key.Node != node {
			continue
		}
		selected = append(selected, name)
		renames[name] = key.Metric + KeySeparator + key.Statistic
	}
	marginal, err := raw.Select(selected)
	if err != nil {
		return nil, fmt.Errorf("marginalize: %w", err)
	}
	return marginal.Rename(func(name string) string { return renames[name] })
}

// Nodes lists the distinct nodes present in a raw table, in column order.
func Nodes(raw *table.Table) []string {
	seen := make(map[string]struct{})
	var nodes []string
	for _, name := range raw.Columns() {
		key, ok := ParseKey(name)
		if !ok {
			continue
		}
		if _, dup := seen[key.Node]; dup {
			continue
		}
		seen[key.Node] = struct{}{}
		nodes = append(nodes, key.Node)
	}
	return nodes
}
