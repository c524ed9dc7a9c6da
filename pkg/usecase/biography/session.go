package biography

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/model"
)

var (
	ErrSessionClosed   = goerr.New("edit session already closed")
	ErrVersionConflict = goerr.New("biography was modified by another writer")
)

// Session is a versioned edit session against one user's biography:
// open reloads the full document from durable storage under the user
// lock, mutations go through the tree operations, and commit persists
// the whole snapshot with a bumped version. Two edits to the same
// user are always separated by a full persist+reload boundary.
type Session struct {
	uc          *UseCase
	userID      string
	bio         *model.Biography
	baseVersion int
	unlock      func()
	closed      bool
}

// Open starts an edit session: acquires the per-user lock and reloads
// the biography from durable storage. The lock is held until Commit
// or Abort.
func (u *UseCase) Open(ctx context.Context, userID string) (*Session, error) {
	unlock, err := u.repo.Lock(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to lock user", goerr.V("user_id", userID))
	}

	bio, err := u.repo.LoadBiography(ctx, userID)
	if err != nil {
		unlock()
		return nil, goerr.Wrap(err, "failed to load biography", goerr.V("user_id", userID))
	}
	bio.Configure(u.bioOpts...)

	return &Session{
		uc:          u,
		userID:      userID,
		bio:         bio,
		baseVersion: bio.Version,
		unlock:      unlock,
	}, nil
}

// Biography returns the document under edit
func (s *Session) Biography() *model.Biography {
	return s.bio
}

// Commit verifies the persisted version still matches the one the
// session was opened against, bumps the version, and persists the
// full-tree snapshot. The version check is redundant while the user
// lock is honored but catches writers that bypass it.
func (s *Session) Commit(ctx context.Context) error {
	if s.closed {
		return goerr.Wrap(ErrSessionClosed, "cannot commit")
	}

	current, err := s.uc.repo.LoadBiography(ctx, s.userID)
	if err != nil {
		return goerr.Wrap(err, "failed to reload biography for commit", goerr.V("user_id", s.userID))
	}
	if current.Version != s.baseVersion {
		return goerr.Wrap(ErrVersionConflict, "cannot commit",
			goerr.V("user_id", s.userID),
			goerr.V("base_version", s.baseVersion),
			goerr.V("current_version", current.Version))
	}

	s.bio.Version = s.baseVersion + 1
	if err := s.uc.repo.SaveBiography(ctx, s.bio); err != nil {
		// In-memory state stays authoritative; the caller may retry
		// the commit before the session is closed.
		s.bio.Version = s.baseVersion
		return goerr.Wrap(err, "failed to persist biography", goerr.V("user_id", s.userID))
	}

	s.close()
	return nil
}

// Abort discards the session without persisting
func (s *Session) Abort() {
	if s.closed {
		return
	}
	s.close()
}

func (s *Session) close() {
	s.closed = true
	if s.unlock != nil {
		s.unlock()
		s.unlock = nil
	}
}
