package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/templui/sharebox/internal/db"
	"github.com/templui/sharebox/internal/metrics"
	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/validation"
)

type UploadStatus string

const (
	UploadPending  UploadStatus = "pending"
	UploadComplete UploadStatus = "complete"
)

// ChunkRequest is one piece of a chunked upload. UploadID doubles as the
// final filename inside Directory.
type ChunkRequest struct {
	Directory string
	UploadID  string
	Index     int
	Total     int
	Data      io.Reader
}

type UploadResult struct {
	Status   UploadStatus      `json:"status"`
	UploadID string            `json:"upload_id"`
	Received int               `json:"received"`
	Total    int               `json:"total"`
	Path     string            `json:"path,omitempty"`
	Record   *model.FileRecord `json:"-"`
}

type uploadState struct {
	total    int
	received map[int]struct{}
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// UploadService stages chunks on disk and assembles them into the shared
// folder once every index has arrived. Chunks of one upload are serialized
// through a per-upload lock; distinct uploads proceed independently.
type UploadService struct {
	files        *FileService
	stagingRoot  string
	maxChunkSize int64
	maxChunks    int
	stagingTTL   time.Duration

	mu     sync.Mutex
	locks  map[string]*keyLock
	states map[string]*uploadState
}

func NewUploadService(files *FileService, stagingRoot string, maxChunkSize int64, maxChunks int, stagingTTL time.Duration) *UploadService {
	return &UploadService{
		files:        files,
		stagingRoot:  stagingRoot,
		maxChunkSize: maxChunkSize,
		maxChunks:    maxChunks,
		stagingTTL:   stagingTTL,
		locks:        make(map[string]*keyLock),
		states:       make(map[string]*uploadState),
	}
}

// stagingKey identifies an upload by its destination so that two folders can
// receive uploads with the same id at the same time.
func stagingKey(dir, uploadID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(dir+"\x00"+uploadID)).String()
}

func chunkName(index int) string {
	return strconv.Itoa(index) + validation.PartSuffix
}

func (s *UploadService) acquire(key string) *keyLock {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return l
}

func (s *UploadService) release(key string, l *keyLock) {
	l.mu.Unlock()

	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}

func (s *UploadService) validate(req ChunkRequest) error {
	err := validation.ValidateFilename(req.UploadID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChunk, err)
	}
	if req.Total < 1 || req.Total > s.maxChunks {
		return fmt.Errorf("%w: total chunks must be between 1 and %d", ErrInvalidChunk, s.maxChunks)
	}
	if req.Index < 0 || req.Index >= req.Total {
		return fmt.Errorf("%w: chunk index %d out of range [0, %d)", ErrInvalidChunk, req.Index, req.Total)
	}
	if req.Data == nil {
		return fmt.Errorf("%w: missing chunk data", ErrInvalidChunk)
	}
	return nil
}

// AcceptChunk stores one chunk. When it completes the set, the file is
// assembled, registered, and the staging area is removed.
func (s *UploadService) AcceptChunk(ctx context.Context, actor *model.User, req ChunkRequest) (*UploadResult, error) {
	err := s.validate(req)
	if err != nil {
		return nil, err
	}

	dir, err := s.files.Resolve(req.Directory)
	if err != nil {
		return nil, err
	}

	err = s.files.requireDir(dir)
	if err != nil {
		return nil, err
	}

	err = s.files.access.Require(ctx, dir, actor.ID, model.PermissionWrite)
	if err != nil {
		return nil, err
	}

	key := stagingKey(dir, req.UploadID)
	staging := filepath.Join(s.stagingRoot, key)
	target := filepath.Join(dir, req.UploadID)

	_, err = os.Lstat(target)
	if err == nil {
		lock := s.acquire(key)
		s.discard(key)
		s.release(key, lock)
		return nil, fmt.Errorf("%w: %s", ErrFileExists, s.files.rel(target))
	}

	err = s.checkTotal(key, staging, req.Total)
	if err != nil {
		return nil, err
	}

	err = s.writeChunk(staging, req.Index, req.Data)
	if err != nil {
		return nil, err
	}
	metrics.UploadChunks.Inc()

	return s.commitChunk(ctx, actor, key, staging, target, req)
}

// commitChunk records a staged chunk and assembles the upload once the set is
// complete. The chunk file is checked again under the lock: a concurrent
// request may have finished the upload and removed the staging directory
// after this chunk was written.
func (s *UploadService) commitChunk(ctx context.Context, actor *model.User, key, staging, target string, req ChunkRequest) (*UploadResult, error) {
	lock := s.acquire(key)
	defer s.release(key, lock)

	_, err := os.Stat(filepath.Join(staging, chunkName(req.Index)))
	if err != nil {
		s.forgetIfGone(key, staging)
		_, statErr := os.Lstat(target)
		if statErr == nil {
			return nil, fmt.Errorf("%w: %s", ErrFileExists, s.files.rel(target))
		}
		return nil, fmt.Errorf("%w: chunk %d was discarded, restart the upload", ErrInvalidChunk, req.Index)
	}

	state := s.state(key, staging, req.Total)
	state.received[req.Index] = struct{}{}

	result := &UploadResult{
		Status:   UploadPending,
		UploadID: req.UploadID,
		Received: len(state.received),
		Total:    state.total,
	}
	if len(state.received) < state.total {
		slog.Debug("chunk staged", "upload_id", req.UploadID, "index", req.Index, "received", result.Received, "total", result.Total)
		return result, nil
	}

	record, err := s.assemble(ctx, actor, staging, target, state.total)
	s.discard(key)
	if err != nil {
		metrics.Uploads.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.Uploads.WithLabelValues("complete").Inc()

	result.Status = UploadComplete
	result.Path = s.files.rel(target)
	result.Record = record
	return result, nil
}

// checkTotal rejects a chunk whose total disagrees with earlier chunks of the same upload.
func (s *UploadService) checkTotal(key, staging string, total int) error {
	lock := s.acquire(key)
	defer s.release(key, lock)

	state := s.state(key, staging, total)
	if state.total != total {
		return fmt.Errorf("%w: upload was started with %d chunks, got %d", ErrInvalidChunk, state.total, total)
	}
	return nil
}

// state returns the in-memory progress for key, rebuilding it from the staging
// directory after a restart. Callers hold the key lock.
func (s *UploadService) state(key, staging string, total int) *uploadState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[key]
	if ok {
		return st
	}

	st = &uploadState{total: total, received: make(map[int]struct{})}
	entries, err := os.ReadDir(staging)
	if err == nil {
		for _, e := range entries {
			idx, err := strconv.Atoi(strings.TrimSuffix(e.Name(), validation.PartSuffix))
			if err != nil || !strings.HasSuffix(e.Name(), validation.PartSuffix) {
				continue
			}
			if idx >= 0 && idx < total {
				st.received[idx] = struct{}{}
			}
		}
	}
	s.states[key] = st
	return st
}

// writeChunk streams data to a temporary file and renames it into place, so a
// chunk is either complete on disk or absent.
func (s *UploadService) writeChunk(staging string, index int, data io.Reader) error {
	err := os.MkdirAll(staging, 0o700)
	if err != nil {
		return fsError("mkdir", filepath.Base(staging), err)
	}

	tmp, err := os.CreateTemp(staging, chunkName(index)+".*"+validation.TempSuffix)
	if err != nil {
		return fsError("create", filepath.Base(staging), err)
	}

	n, err := io.Copy(tmp, io.LimitReader(data, s.maxChunkSize+1))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fsError("write", chunkName(index), err)
	}
	if n > s.maxChunkSize {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: chunk exceeds %s", ErrInvalidChunk, humanize.IBytes(uint64(s.maxChunkSize)))
	}

	err = os.Rename(tmp.Name(), filepath.Join(staging, chunkName(index)))
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fsError("rename", chunkName(index), err)
	}
	return nil
}

// assemble concatenates chunks in index order into a hidden temporary file
// beside the target, renames it into place, and registers it.
func (s *UploadService) assemble(ctx context.Context, actor *model.User, staging, target string, total int) (*model.FileRecord, error) {
	rel := s.files.rel(target)

	out, err := os.CreateTemp(filepath.Dir(target), validation.ReassemblyPrefix+"*")
	if err != nil {
		return nil, fsError("create", rel, err)
	}
	tmpName := out.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmpName)
		}
	}()

	var size int64
	for i := 0; i < total; i++ {
		err = ctx.Err()
		if err != nil {
			_ = out.Close()
			return nil, err
		}

		n, err := appendFile(out, filepath.Join(staging, chunkName(i)))
		if err != nil {
			_ = out.Close()
			return nil, fsError("assemble", rel, err)
		}
		size += n
	}

	err = out.Sync()
	if err == nil {
		err = out.Close()
	} else {
		_ = out.Close()
	}
	if err != nil {
		return nil, fsError("assemble", rel, err)
	}

	err = os.Chmod(tmpName, 0o644)
	if err != nil {
		return nil, fsError("chmod", rel, err)
	}

	_, err = os.Lstat(target)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileExists, rel)
	}

	err = os.Rename(tmpName, target)
	if err != nil {
		return nil, fsError("rename", rel, err)
	}
	renamed = true

	var record *model.FileRecord
	err = db.WithTx(ctx, s.files.db, func(tx *sqlx.Tx) error {
		var err error
		record, err = s.files.registerTx(ctx, tx, target, actor.ID)
		if err != nil {
			return err
		}

		details := fmt.Sprintf("Uploaded %s (%s)", rel, humanize.IBytes(uint64(size)))
		return s.files.activity.Record(ctx, tx, NewActivity(actor, model.ActivityCategoryFile, "file_uploaded", details))
	})
	if err != nil {
		rmErr := os.Remove(target)
		if rmErr != nil {
			slog.Error("failed to remove upload after registration failure", "error", rmErr, "path", target)
		}
		return nil, err
	}

	metrics.UploadBytes.Add(float64(size))
	s.files.replicate(ctx, target)

	slog.Info("upload complete", "path", rel, "size", size, "chunks", total, "user", actor.Username)
	return record, nil
}

func appendFile(dst io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	return io.Copy(dst, f)
}

// forgetIfGone drops the in-memory progress for key when its staging
// directory no longer exists. Callers hold the key lock.
func (s *UploadService) forgetIfGone(key, staging string) bool {
	_, err := os.Stat(staging)
	if !errors.Is(err, fs.ErrNotExist) {
		return false
	}

	s.mu.Lock()
	_, ok := s.states[key]
	delete(s.states, key)
	s.mu.Unlock()
	return ok
}

// discard forgets an upload and removes its staging directory.
func (s *UploadService) discard(key string) {
	s.mu.Lock()
	delete(s.states, key)
	s.mu.Unlock()

	err := os.RemoveAll(filepath.Join(s.stagingRoot, key))
	if err != nil {
		slog.Warn("failed to remove staging directory", "error", err, "key", key)
	}
}

// CleanupStale removes staging directories untouched for longer than the
// staging TTL and returns how many were removed.
func (s *UploadService) CleanupStale(now time.Time) int {
	entries, err := os.ReadDir(s.stagingRoot)
	if errors.Is(err, fs.ErrNotExist) {
		return 0
	}
	if err != nil {
		slog.Error("failed to read staging root", "error", err, "path", s.stagingRoot)
		return 0
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		key := e.Name()

		lock := s.acquire(key)
		info, err := os.Stat(filepath.Join(s.stagingRoot, key))
		if err == nil && now.Sub(info.ModTime()) > s.stagingTTL {
			s.discard(key)
			removed++
			metrics.StagingCleaned.Inc()
		}
		s.release(key, lock)
	}

	s.mu.Lock()
	keys := make([]string, 0, len(s.states))
	for key := range s.states {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		lock := s.acquire(key)
		if s.forgetIfGone(key, filepath.Join(s.stagingRoot, key)) {
			slog.Debug("dropped upload state without staging directory", "key", key)
		}
		s.release(key, lock)
	}

	if removed > 0 {
		slog.Info("stale uploads removed", "count", removed)
	}
	return removed
}

// Start runs CleanupStale periodically until ctx is cancelled.
func (s *UploadService) Start(ctx context.Context) {
	interval := s.stagingTTL / 4
	if interval > 15*time.Minute {
		interval = 15 * time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.CleanupStale(now)
			}
		}
	}()
}
