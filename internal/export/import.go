package export

import (
	"context"

	"github.com/randalmurphal/hrdesk/internal/task"
)

// Store is the part of the engine an import needs.
type Store interface {
	Import(ctx context.Context, drafts []task.Draft) ([]*task.Task, error)
	UpdateTask(ctx context.Context, id int64, p task.Patch) (*task.Task, error)
}

// Import creates one task per row. Rows get fresh IDs and nothing is
// created when any row is rejected. Progress is restored afterwards. Below
// 100 the row's status is pinned, so a partly done pending row stays
// pending; a row at 100 is left to the store, which completes it.
func Import(ctx context.Context, s Store, rows []Row) ([]*task.Task, error) {
	drafts := make([]task.Draft, len(rows))
	for i, r := range rows {
		drafts[i] = r.Draft
	}
	created, err := s.Import(ctx, drafts)
	if err != nil {
		return nil, err
	}
	for i, t := range created {
		p := rows[i].Progress
		if p == 0 || p == t.Progress {
			continue
		}
		patch := task.Patch{Progress: &p}
		if p < 100 {
			status := t.Status
			patch.Status = &status
		}
		updated, err := s.UpdateTask(ctx, t.ID, patch)
		if err != nil {
			return created, err
		}
		created[i] = updated
	}
	return created, nil
}
