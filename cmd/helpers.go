package cmd

import (
	"strings"
	"time"

	"github.com/mj1618/uitransfer/internal/metrics"
	"github.com/mj1618/uitransfer/internal/model"
	"github.com/mj1618/uitransfer/internal/output"
	"github.com/mj1618/uitransfer/internal/transfer"
)

// transferOptions turns the loaded config into producer and consumer options.
func transferOptions(m *metrics.Transfer) []transfer.Option {
	return []transfer.Option{
		transfer.WithChunkSize(cfg.Transfer.ChunkSize),
		transfer.WithReadyTimeout(cfg.Transfer.ReadyTimeout),
		transfer.WithLogger(logger),
		transfer.WithMetrics(m),
	}
}

// viewOptions are the shared tree-shaping flags of commands that print a
// snapshot.
type viewOptions struct {
	flat  bool
	text  string
	roles string
}

// shape applies the text and role filters and builds the printable result.
func (v viewOptions) shape(source string, snap *model.Snapshot, stats *transfer.Stats) interface{} {
	ts := time.Now().Unix()
	if v.text != "" {
		for _, w := range snap.Windows {
			if kept := model.FilterByText([]*model.Node{w.Root}, v.text); len(kept) > 0 {
				w.Root = kept[0]
			} else {
				w.Root = nil
			}
		}
		windows := snap.Windows[:0]
		for _, w := range snap.Windows {
			if w.Root != nil {
				windows = append(windows, w)
			}
		}
		snap.Windows = windows
	}

	if !v.flat && v.roles == "" {
		return output.SnapshotResult{Source: source, TS: ts, Stats: stats, Windows: snap.Windows}
	}
	nodes := model.Flatten(snap)
	if v.roles != "" {
		nodes = model.FilterFlatByRoles(nodes, strings.Split(v.roles, ","))
	}
	return output.FlatResult{Source: source, TS: ts, Stats: stats, Nodes: nodes}
}
