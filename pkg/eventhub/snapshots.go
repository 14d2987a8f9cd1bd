package eventhub

import (
	"context"
	"errors"
	"time"

	"github.com/randalmurphal/eventhub/pkg/eventhub/observability"
	"github.com/randalmurphal/eventhub/pkg/eventhub/snapshot"
)

// restoreSnapshot seeds a new container's store with the state saved by an
// earlier hub under the same ID. Restored state is written at version 0 so
// every reader sees it. Failures are logged and leave the store empty.
func (h *Hub) restoreSnapshot(ctx context.Context, c *container) {
	if h.snapshots == nil {
		return
	}
	data, err := h.snapshots.Load(ctx, h.id, c.name)
	if errors.Is(err, snapshot.ErrNotFound) {
		return
	}
	if err != nil {
		observability.LogSnapshotError(h.logger, c.name, "load", err)
		return
	}
	rec, err := snapshot.Decode(data)
	if err != nil {
		observability.LogSnapshotError(h.logger, c.name, "decode", err)
		return
	}
	if err := c.store.Set(0, rec.Data); err != nil {
		observability.LogSnapshotError(h.logger, c.name, "restore", err)
	}
}

// saveSnapshots persists the latest SET state of each container.
func (h *Hub) saveSnapshots(ctx context.Context, containers []*container) {
	if h.snapshots == nil {
		return
	}
	for _, c := range containers {
		latest, ok := c.store.LatestSet()
		if !ok {
			continue
		}
		data, err := snapshot.Encode(snapshot.Record{
			Extension: c.name,
			Version:   latest.Version,
			Data:      latest.Data,
			SavedAt:   time.Now().UTC(),
		})
		if err != nil {
			observability.LogSnapshotError(h.logger, c.name, "encode", err)
			continue
		}
		if err := h.snapshots.Save(ctx, h.id, c.name, data); err != nil {
			observability.LogSnapshotError(h.logger, c.name, "save", err)
		}
	}
}
