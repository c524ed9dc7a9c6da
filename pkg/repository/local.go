package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/gofrs/flock"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/model"
)

const (
	memoriesFile           = "memories.json"
	memoryEmbeddingsFile   = "memory_embeddings.json"
	questionsFile          = "questions.json"
	questionEmbeddingsFile = "question_embeddings.json"
	biographyFile          = "biography.json"
	lockFile               = ".lock"

	lockRetryInterval = 50 * time.Millisecond
)

// embeddingRecord pairs an entity ID with its vector in the
// embeddings file
type embeddingRecord struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"vector"`
}

// Local implements Repository on a local directory tree, one
// directory per user ID
type Local struct {
	baseDir string

	mu    sync.Mutex
	locks map[string]*flock.Flock
}

// NewLocal creates a filesystem repository rooted at baseDir
func NewLocal(baseDir string) *Local {
	return &Local{
		baseDir: baseDir,
		locks:   make(map[string]*flock.Flock),
	}
}

func (r *Local) userDir(userID string) string {
	return filepath.Join(r.baseDir, userID)
}

func (r *Local) ensureUserDir(userID string) (string, error) {
	dir := r.userDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", goerr.Wrap(err, "failed to create user directory", goerr.V("dir", dir))
	}
	return dir, nil
}

// Lock acquires a file lock on the user's directory. Blocks until
// the lock is held or the context is cancelled.
func (r *Local) Lock(ctx context.Context, userID string) (func(), error) {
	dir, err := r.ensureUserDir(userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	fl, ok := r.locks[userID]
	if !ok {
		fl = flock.New(filepath.Join(dir, lockFile))
		r.locks[userID] = fl
	}
	r.mu.Unlock()

	locked, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to acquire user lock", goerr.V("user_id", userID))
	}
	if !locked {
		return nil, goerr.New("user lock not acquired", goerr.V("user_id", userID))
	}

	return func() {
		_ = fl.Unlock()
	}, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal", goerr.V("path", path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return goerr.Wrap(err, "failed to write file", goerr.V("path", path))
	}
	return nil
}

// readJSON loads path into v; a missing file leaves v untouched and
// reports found=false without an error
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to read file", goerr.V("path", path))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, goerr.Wrap(err, "failed to unmarshal", goerr.V("path", path))
	}
	return true, nil
}

func (r *Local) SaveMemories(ctx context.Context, userID string, memories []*model.Memory) error {
	dir, err := r.ensureUserDir(userID)
	if err != nil {
		return err
	}

	// Content first, embeddings second. A crash between the two
	// leaves records without vectors, which load reconciles; the
	// reverse would leave orphan vectors.
	if err := writeJSON(filepath.Join(dir, memoriesFile), memories); err != nil {
		return err
	}

	embeddings := make([]embeddingRecord, 0, len(memories))
	for _, m := range memories {
		if len(m.Embedding) == 0 {
			continue
		}
		embeddings = append(embeddings, embeddingRecord{
			ID:     string(m.ID),
			Vector: m.Embedding,
		})
	}
	return writeJSON(filepath.Join(dir, memoryEmbeddingsFile), embeddings)
}

func (r *Local) LoadMemories(ctx context.Context, userID string) ([]*model.Memory, error) {
	dir := r.userDir(userID)

	var memories []*model.Memory
	if _, err := readJSON(filepath.Join(dir, memoriesFile), &memories); err != nil {
		return nil, err
	}
	if len(memories) == 0 {
		return []*model.Memory{}, nil
	}

	var embeddings []embeddingRecord
	if _, err := readJSON(filepath.Join(dir, memoryEmbeddingsFile), &embeddings); err != nil {
		return nil, err
	}

	vectors := make(map[string][]float32, len(embeddings))
	for _, e := range embeddings {
		vectors[e.ID] = e.Vector
	}
	for _, m := range memories {
		if vec, ok := vectors[string(m.ID)]; ok {
			m.Embedding = firestore.Vector32(vec)
		}
	}

	return memories, nil
}

func (r *Local) SaveQuestions(ctx context.Context, userID string, questions []*model.Question) error {
	dir, err := r.ensureUserDir(userID)
	if err != nil {
		return err
	}

	if err := writeJSON(filepath.Join(dir, questionsFile), questions); err != nil {
		return err
	}

	embeddings := make([]embeddingRecord, 0, len(questions))
	for _, q := range questions {
		if len(q.Embedding) == 0 {
			continue
		}
		embeddings = append(embeddings, embeddingRecord{
			ID:     string(q.ID),
			Vector: q.Embedding,
		})
	}
	return writeJSON(filepath.Join(dir, questionEmbeddingsFile), embeddings)
}

func (r *Local) LoadQuestions(ctx context.Context, userID string) ([]*model.Question, error) {
	dir := r.userDir(userID)

	var questions []*model.Question
	if _, err := readJSON(filepath.Join(dir, questionsFile), &questions); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return []*model.Question{}, nil
	}

	var embeddings []embeddingRecord
	if _, err := readJSON(filepath.Join(dir, questionEmbeddingsFile), &embeddings); err != nil {
		return nil, err
	}

	vectors := make(map[string][]float32, len(embeddings))
	for _, e := range embeddings {
		vectors[e.ID] = e.Vector
	}
	for _, q := range questions {
		if vec, ok := vectors[string(q.ID)]; ok {
			q.Embedding = firestore.Vector32(vec)
		}
	}

	return questions, nil
}

func (r *Local) SaveBiography(ctx context.Context, bio *model.Biography) error {
	dir, err := r.ensureUserDir(bio.UserID)
	if err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, biographyFile), bio)
}

func (r *Local) LoadBiography(ctx context.Context, userID string) (*model.Biography, error) {
	var bio model.Biography
	found, err := readJSON(filepath.Join(r.userDir(userID), biographyFile), &bio)
	if err != nil {
		return nil, err
	}
	if !found {
		return model.NewBiography(userID), nil
	}

	bio.UserID = userID
	bio.Relink()
	return &bio, nil
}
