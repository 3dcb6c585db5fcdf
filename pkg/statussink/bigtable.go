package statussink

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"cloud.google.com/go/bigtable"
)

// BigTable is the wide-column status-sink variant: one row per
// "network#member". Each flush reads the current row's latest cells and
// writes only the columns whose values changed, plus always-write
// last_seen. Failures are logged, never retried.
type BigTable struct {
	tbl     *bigtable.Table
	family  string
	pending *pendingBuffer
}

func NewBigTable(client *bigtable.Client, tableID, columnFamily string) *BigTable {
	return &BigTable{
		tbl:     client.Open(tableID),
		family:  columnFamily,
		pending: newPendingBuffer(),
	}
}

func (b *BigTable) UpdateNodeStatus(networkID, memberID, os, arch, version, address string, lastSeen int64) {
	b.pending.add(networkID, memberID, os, arch, version, address, lastSeen)
}

func (b *BigTable) QueueLength() int {
	return b.pending.len()
}

func rowKey(networkID, memberID string) string {
	return networkID + "#" + memberID
}

func (b *BigTable) WritePending() error {
	entries := b.pending.swap()
	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error
	for _, e := range entries {
		key := rowKey(e.NetworkID, e.MemberID)
		current, err := b.readLatest(ctx, key)
		if err != nil {
			log.Printf("statussink/bigtable: read %s failed: %v", key, err)
			current = map[string]string{}
		}

		mut := bigtable.NewMutation()
		now := bigtable.Now()
		mut.Set(b.family, "last_seen", now, []byte(strconv.FormatInt(e.LastSeen, 10)))
		if current["address"] != e.Address {
			mut.Set(b.family, "address", now, []byte(e.Address))
		}
		if current["os"] != e.OS {
			mut.Set(b.family, "os", now, []byte(e.OS))
		}
		if current["arch"] != e.Arch {
			mut.Set(b.family, "arch", now, []byte(e.Arch))
		}
		if current["version"] != e.Version {
			mut.Set(b.family, "version", now, []byte(e.Version))
		}

		if err := b.tbl.Apply(ctx, key, mut); err != nil {
			log.Printf("statussink/bigtable: apply %s failed: %v", key, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("statussink/bigtable: apply %s: %w", key, err)
			}
		}
	}
	return firstErr
}

// readLatest fetches the latest cell of every column in this sink's
// column family for one row, returning an empty map if the row does not
// yet exist.
func (b *BigTable) readLatest(ctx context.Context, key string) (map[string]string, error) {
	row, err := b.tbl.ReadRow(ctx, key, bigtable.RowFilter(bigtable.LatestNFilter(1)))
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, item := range row[b.family] {
		col := item.Column
		if idx := indexAfterColon(col); idx >= 0 {
			col = col[idx:]
		}
		out[col] = string(item.Value)
	}
	return out, nil
}

func indexAfterColon(col string) int {
	for i := 0; i < len(col); i++ {
		if col[i] == ':' {
			return i + 1
		}
	}
	return -1
}
