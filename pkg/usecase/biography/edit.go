package biography

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/utils/logging"
)

// EditResult reports the outcome of one edit in a batch. Err is nil
// on success; on failure it identifies the cause while Request keeps
// the edit's type and target for the report.
type EditResult struct {
	Request model.EditRequest
	Err     error
}

// ApplyEdits applies a batch of edit requests in ascending timestamp
// order. Each edit runs in its own session and persists immediately
// after success; a failed edit aborts only itself and later edits
// still run. Validation failures are rejected before any state is
// touched.
func (u *UseCase) ApplyEdits(ctx context.Context, userID string, edits []model.EditRequest) []EditResult {
	logger := logging.From(ctx)

	ordered := make([]model.EditRequest, len(edits))
	copy(ordered, edits)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	results := make([]EditResult, 0, len(ordered))
	for _, edit := range ordered {
		err := u.applyEdit(ctx, userID, edit)
		if err != nil {
			logger.Warn("edit failed",
				"user_id", userID,
				"type", edit.Type,
				"path", edit.Path,
				"error", err)
		}
		results = append(results, EditResult{Request: edit, Err: err})
	}

	return results
}

func (u *UseCase) applyEdit(ctx context.Context, userID string, edit model.EditRequest) error {
	if err := edit.Validate(); err != nil {
		return err
	}

	session, err := u.Open(ctx, userID)
	if err != nil {
		return err
	}

	if err := applyToTree(session.Biography(), edit); err != nil {
		session.Abort()
		return err
	}

	return session.Commit(ctx)
}

func applyToTree(bio *model.Biography, edit model.EditRequest) error {
	switch edit.Type {
	case model.EditTypeAdd:
		section, err := bio.AddSection(edit.Path, edit.Title, edit.Content)
		if err != nil {
			return err
		}
		section.MemoryIDs = appendRefs(section.MemoryIDs, edit.MemoryIDs)
		return nil

	case model.EditTypeContentChange:
		section, err := bio.UpdateSection(edit.Path, edit.Content)
		if err != nil {
			return err
		}
		section.MemoryIDs = appendRefs(section.MemoryIDs, edit.MemoryIDs)
		return nil

	case model.EditTypeRename:
		_, err := bio.RenameSection(edit.Path, edit.Title)
		return err

	case model.EditTypeDelete:
		return bio.RemoveSection(edit.Path)

	case model.EditTypeComment:
		_, err := bio.CommentSection(edit.Path, edit.Content)
		return err

	default:
		return goerr.Wrap(model.ErrInvalidEdit, "unknown edit type", goerr.V("type", edit.Type))
	}
}

// appendRefs merges new memory references, keeping order and dropping
// IDs the section already references
func appendRefs(existing, added []model.MemoryID) []model.MemoryID {
	seen := make(map[model.MemoryID]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	for _, id := range added {
		if _, ok := seen[id]; ok {
			continue
		}
		existing = append(existing, id)
		seen[id] = struct{}{}
	}
	return existing
}
