// Package syncer orchestrates cloud backup and restore: export, encrypt,
// upload on one side; download, decrypt, import on the other. At most one
// sync operation runs at a time.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inkstone-app/inkstone/internal/crypto"
	"github.com/inkstone-app/inkstone/internal/drive"
)

// BackupObjectName is the fixed remote object name. One backup per account;
// every upload replaces the previous one.
const BackupObjectName = "inkstone-backup.enc"

// ErrSyncBusy is returned when a backup or restore is already in flight.
var ErrSyncBusy = errors.New("sync already in progress")

// Outcome is the result of a restore attempt. NoBackup and WrongPassword are
// expected states the caller presents to the user, not errors.
type Outcome int

const (
	// OutcomeRestored means the local database now matches the backup.
	OutcomeRestored Outcome = iota
	// OutcomeNoBackup means no backup object exists for this account.
	OutcomeNoBackup
	// OutcomeWrongPassword means the backup exists but did not decrypt
	// with the given password.
	OutcomeWrongPassword
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRestored:
		return "restored"
	case OutcomeNoBackup:
		return "no backup"
	case OutcomeWrongPassword:
		return "wrong password"
	}
	return "unknown"
}

// Database is the slice of the store the orchestrator needs.
type Database interface {
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, data []byte) error
}

// Orchestrator wires the store, the cipher, and the remote provider into the
// two user-facing operations.
type Orchestrator struct {
	db     Database
	remote drive.Provider
	logger *slog.Logger

	mu sync.Mutex // held for the duration of one Backup or Restore
}

// New builds an orchestrator. A nil logger disables logging.
func New(db Database, remote drive.Provider, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{db: db, remote: remote, logger: logger}
}

// Backup exports the whole database, encrypts it with the password, and
// uploads it under the fixed backup name. Returns ErrSyncBusy when another
// sync operation is already running.
func (o *Orchestrator) Backup(ctx context.Context, password string) error {
	if !o.mu.TryLock() {
		return ErrSyncBusy
	}
	defer o.mu.Unlock()

	if err := o.ensureAuthenticated(ctx); err != nil {
		return err
	}

	data, err := o.db.Export(ctx)
	if err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}

	ciphertext, err := crypto.Encrypt(data, password)
	if err != nil {
		return fmt.Errorf("failed to encrypt backup: %w", err)
	}

	if err := o.remote.Upload(ctx, BackupObjectName, []byte(ciphertext)); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	o.logger.Info("backup complete", "plaintext_bytes", len(data))
	return nil
}

// Restore downloads the backup, decrypts it, and replaces the local database
// with its contents. The two expected non-error endings (no backup yet, wrong
// password) come back as Outcome values; transfer, auth, and import failures
// are errors.
func (o *Orchestrator) Restore(ctx context.Context, password string) (Outcome, error) {
	if !o.mu.TryLock() {
		return 0, ErrSyncBusy
	}
	defer o.mu.Unlock()

	if err := o.ensureAuthenticated(ctx); err != nil {
		return 0, err
	}

	ciphertext, err := o.remote.Download(ctx, BackupObjectName)
	if err != nil {
		if errors.Is(err, drive.ErrNotFound) {
			return OutcomeNoBackup, nil
		}
		return 0, fmt.Errorf("failed to download backup: %w", err)
	}

	data, err := crypto.Decrypt(string(ciphertext), password)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			return OutcomeWrongPassword, nil
		}
		return 0, fmt.Errorf("failed to decrypt backup: %w", err)
	}

	if err := o.db.Import(ctx, data); err != nil {
		return 0, fmt.Errorf("failed to import backup: %w", err)
	}

	o.logger.Info("restore complete", "plaintext_bytes", len(data))
	return OutcomeRestored, nil
}

func (o *Orchestrator) ensureAuthenticated(ctx context.Context) error {
	if o.remote.IsAuthenticated(ctx) {
		return nil
	}
	if err := o.remote.Authenticate(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	return nil
}

// StartAutoSync runs Backup on a fixed interval until the returned stop
// function is called. Failures are logged and the schedule continues; a
// backup already dispatched when stop is called runs to completion. Stop is
// idempotent.
func (o *Orchestrator) StartAutoSync(password string, interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := o.Backup(context.Background(), password); err != nil {
					if errors.Is(err, ErrSyncBusy) {
						o.logger.Debug("auto backup skipped, sync in progress")
						continue
					}
					o.logger.Error("auto backup failed", "error", err)
					continue
				}
				o.logger.Debug("auto backup complete")
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
