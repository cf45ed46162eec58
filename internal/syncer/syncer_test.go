package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkstone-app/inkstone/internal/crypto"
	"github.com/inkstone-app/inkstone/internal/drive"
	"github.com/inkstone-app/inkstone/internal/models"
	"github.com/inkstone-app/inkstone/internal/store"
	"github.com/inkstone-app/inkstone/internal/store/sqlite"
)

// fakeDatabase serves a fixed export and records imports.
type fakeDatabase struct {
	exportData []byte
	exportErr  error
	exportGate chan struct{} // when set, Export blocks until closed

	imported [][]byte
}

func (f *fakeDatabase) Export(ctx context.Context) ([]byte, error) {
	if f.exportGate != nil {
		<-f.exportGate
	}
	return f.exportData, f.exportErr
}

func (f *fakeDatabase) Import(ctx context.Context, data []byte) error {
	f.imported = append(f.imported, data)
	return nil
}

// fakeRemote is an in-memory drive.Provider.
type fakeRemote struct {
	mu            sync.Mutex
	objects       map[string][]byte
	authenticated bool
	authCalls     int
	uploads       int
	uploadErr     error
}

func newFakeRemote(authenticated bool) *fakeRemote {
	return &fakeRemote{objects: map[string][]byte{}, authenticated: authenticated}
}

func (f *fakeRemote) Authenticate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	f.authenticated = true
	return nil
}

func (f *fakeRemote) IsAuthenticated(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated
}

func (f *fakeRemote) Upload(ctx context.Context, name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[name] = data
	return nil
}

func (f *fakeRemote) Download(ctx context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[name]
	if !ok {
		return nil, drive.ErrNotFound
	}
	return data, nil
}

func (f *fakeRemote) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}

func TestOrchestrator_BackupEncryptsAndUploads(t *testing.T) {
	ctx := context.Background()
	db := &fakeDatabase{exportData: []byte(`{"version":2}`)}
	remote := newFakeRemote(true)
	o := New(db, remote, nil)

	require.NoError(t, o.Backup(ctx, "correct horse"))

	stored, ok := remote.objects[BackupObjectName]
	require.True(t, ok)
	assert.NotContains(t, string(stored), "version")

	plaintext, err := crypto.Decrypt(string(stored), "correct horse")
	require.NoError(t, err)
	assert.Equal(t, db.exportData, plaintext)
}

func TestOrchestrator_BackupAuthenticatesFirst(t *testing.T) {
	db := &fakeDatabase{exportData: []byte("{}")}
	remote := newFakeRemote(false)
	o := New(db, remote, nil)

	require.NoError(t, o.Backup(context.Background(), "pw"))
	assert.Equal(t, 1, remote.authCalls)
}

func TestOrchestrator_RestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := &fakeDatabase{exportData: []byte(`{"version":2,"books":[]}`)}
	remote := newFakeRemote(true)
	o := New(db, remote, nil)

	require.NoError(t, o.Backup(ctx, "pw"))

	outcome, err := o.Restore(ctx, "pw")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRestored, outcome)
	require.Len(t, db.imported, 1)
	assert.Equal(t, db.exportData, db.imported[0])
}

func TestOrchestrator_RestoreNoBackup(t *testing.T) {
	db := &fakeDatabase{}
	o := New(db, newFakeRemote(true), nil)

	outcome, err := o.Restore(context.Background(), "pw")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoBackup, outcome)
	assert.Empty(t, db.imported)
}

func TestOrchestrator_RestoreWrongPassword(t *testing.T) {
	ctx := context.Background()
	db := &fakeDatabase{exportData: []byte("{}")}
	remote := newFakeRemote(true)
	o := New(db, remote, nil)

	require.NoError(t, o.Backup(ctx, "right"))

	outcome, err := o.Restore(ctx, "wrong")
	require.NoError(t, err)
	assert.Equal(t, OutcomeWrongPassword, outcome)
	assert.Empty(t, db.imported)
}

func TestOrchestrator_SingleFlight(t *testing.T) {
	gate := make(chan struct{})
	db := &fakeDatabase{exportData: []byte("{}"), exportGate: gate}
	remote := newFakeRemote(true)
	o := New(db, remote, nil)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- o.Backup(context.Background(), "pw")
	}()

	// Wait for the first backup to take the lock and block in Export.
	require.Eventually(t, func() bool {
		if o.mu.TryLock() {
			o.mu.Unlock()
			return false
		}
		return true
	}, time.Second, time.Millisecond)

	err := o.Backup(context.Background(), "pw")
	assert.ErrorIs(t, err, ErrSyncBusy)

	_, err = o.Restore(context.Background(), "pw")
	assert.ErrorIs(t, err, ErrSyncBusy)

	close(gate)
	require.NoError(t, <-firstDone)
}

func TestOrchestrator_AutoSyncBacksUpAndStops(t *testing.T) {
	db := &fakeDatabase{exportData: []byte("{}")}
	remote := newFakeRemote(true)
	o := New(db, remote, nil)

	stop := o.StartAutoSync("pw", 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return remote.uploadCount() >= 2
	}, time.Second, time.Millisecond)

	stop()
	stop() // idempotent

	settled := remote.uploadCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, remote.uploadCount())
}

func TestOrchestrator_AutoSyncContinuesAfterFailure(t *testing.T) {
	db := &fakeDatabase{exportData: []byte("{}")}
	remote := newFakeRemote(true)
	remote.uploadErr = errors.New("quota exceeded")
	o := New(db, remote, nil)

	stop := o.StartAutoSync("pw", 5*time.Millisecond)
	defer stop()

	// More than one attempt: a failed tick does not kill the schedule.
	require.Eventually(t, func() bool {
		return remote.uploadCount() >= 2
	}, time.Second, time.Millisecond)
}

// Backup, wipe, restore against a real store: the restored database must
// export byte-for-byte (modulo JSON ordering) what was backed up.
func TestOrchestrator_FullBackupWipeRestore(t *testing.T) {
	ctx := context.Background()

	engine, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	st := store.New(engine, nil)

	seed := models.Snapshot{
		Version: models.SnapshotVersion,
		Books:   []models.Book{{ID: "book-1", Title: "Tidelands", CreatedAt: 1, UpdatedAt: 2}},
		Chapters: []models.Chapter{
			{ID: "ch-1", BookID: "book-1", Title: "The Storm", Content: "Rain.", SortOrder: 1},
		},
		WikiPages: [][]any{{"wiki-1", "book-1", "The Lighthouse", "Granite.", "location", 3}},
	}
	seedJSON, err := json.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, st.Import(ctx, seedJSON))

	remote := newFakeRemote(true)
	o := New(st, remote, nil)
	require.NoError(t, o.Backup(ctx, "pw"))

	// Wipe the local database.
	empty, err := json.Marshal(models.Snapshot{Version: models.SnapshotVersion})
	require.NoError(t, err)
	require.NoError(t, st.Import(ctx, empty))

	outcome, err := o.Restore(ctx, "pw")
	require.NoError(t, err)
	require.Equal(t, OutcomeRestored, outcome)

	exported, err := st.Export(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, string(seedJSON), string(exported))
}
