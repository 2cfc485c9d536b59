// Package keys holds the key hierarchy: the password-derived master key,
// the user's keypair it unlocks, and the active collection's symmetric
// key the keypair unlocks.
//
// Every teardown of the master key also tears down the keypair and any
// resolved collection key. Generation counters make sure that an unlock
// or fetch which started before a teardown can never install keys after
// it.
package keys

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alexjbarnes/sealbox/internal/async"
	"github.com/alexjbarnes/sealbox/internal/crypto"
	apperrors "github.com/alexjbarnes/sealbox/internal/errors"
	"github.com/alexjbarnes/sealbox/internal/models"
)

//go:generate mockgen -destination=mock_remote_test.go -package=keys . Remote

// Remote is the subset of the API client the resolver needs.
type Remote interface {
	GetKeypair(ctx context.Context) (*models.KeypairRecord, error)
	GetEncryptionKey(ctx context.Context, collectionID string) (*models.EncryptionKeyRecord, error)
}

// State is the logical position in the hierarchy.
type State int

const (
	Locked State = iota
	KeypairReady
	CollectionKeyReady
)

func (s State) String() string {
	switch s {
	case Locked:
		return "locked"
	case KeypairReady:
		return "keypair_ready"
	case CollectionKeyReady:
		return "collection_key_ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// unlockParams keys the keypair cell. It never holds the password.
type unlockParams struct {
	EmailHash string
}

func (p unlockParams) Key() string { return p.EmailHash }

// collectionParams keys the collection key cell.
type collectionParams struct {
	CollectionID string
}

func (p collectionParams) Key() string { return p.CollectionID }

type keypair struct {
	publicKey  string
	privateKey string
}

// Snapshot is a secret-free view of the resolver.
type Snapshot struct {
	State            State
	KeypairStatus    async.Status
	KeypairErr       error
	ActiveCollection string
	CollectionStatus async.Status
	CollectionID     string
	KeyVersion       int
	CollectionErr    error
}

// Resolver owns the key hierarchy. It is safe for concurrent use.
type Resolver struct {
	provider crypto.Provider
	remote   Remote
	logger   *slog.Logger

	mu        sync.RWMutex
	epoch     uint64
	collEpoch uint64
	master    []byte
	keys      *keypair
	keypair   async.Cell[unlockParams, struct{}]
	active    string
	collKey   async.Cell[collectionParams, models.CollectionEncryptionKey]
}

// NewResolver creates a locked resolver.
func NewResolver(provider crypto.Provider, remote Remote, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Resolver{
		provider: provider,
		remote:   remote,
		logger:   logger,
	}
}

// Unlock derives the master key, decrypts the keypair and, if an active
// collection is set, resolves its key. Any previously held keys are torn
// down before derivation starts. On failure everything stays locked.
func (r *Resolver) Unlock(ctx context.Context, password, emailHash string) error {
	params := unlockParams{EmailHash: emailHash}

	r.mu.Lock()
	r.teardownLocked()
	epoch := r.epoch
	r.keypair = r.keypair.Start(params)
	r.mu.Unlock()

	master, pair, err := r.openKeypair(ctx, password, emailHash)
	if err != nil {
		r.mu.Lock()
		if r.epoch == epoch {
			r.teardownLocked()
			r.keypair = r.keypair.Fail(params, err)
		}
		r.mu.Unlock()

		r.logger.Warn("unlock failed", slog.String("error", err.Error()))

		return err
	}

	r.mu.Lock()
	if r.epoch != epoch {
		r.mu.Unlock()
		crypto.ZeroKey(master)

		return apperrors.Newf(apperrors.KeypairNotReady, "unlock", "superseded by a newer unlock or lock")
	}

	r.master = master
	r.keys = pair
	r.keypair = r.keypair.Finish(params, struct{}{})
	active := r.active
	r.mu.Unlock()

	r.logger.Info("keypair unlocked")

	if active != "" {
		if _, err := r.fetchCollectionKey(ctx, active); err != nil {
			r.logger.Warn("resolving active collection key",
				slog.String("collection_id", active),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

func (r *Resolver) openKeypair(ctx context.Context, password, emailHash string) ([]byte, *keypair, error) {
	master, err := crypto.DeriveMasterKey(password, emailHash)
	if err != nil {
		return nil, nil, fmt.Errorf("deriving master key: %w", err)
	}

	rec, err := r.remote.GetKeypair(ctx)
	if err != nil {
		crypto.ZeroKey(master)
		return nil, nil, fmt.Errorf("fetching keypair: %w", err)
	}

	if rec == nil {
		crypto.ZeroKey(master)
		return nil, nil, apperrors.Newf(apperrors.KeypairNotReady, "unlock", "no keypair stored for this account")
	}

	priv, err := crypto.OpenPrivateKey(ctx, r.provider, master, rec.EncryptedPrivateKey)
	if err != nil {
		crypto.ZeroKey(master)
		return nil, nil, apperrors.Wrap(apperrors.KeypairNotReady, "unlock", err)
	}

	return master, &keypair{publicKey: rec.PublicKey, privateKey: priv}, nil
}

// Lock tears down the master key, the keypair and any collection key.
// The active collection selection is kept so a later Unlock resolves it.
func (r *Resolver) Lock() {
	r.mu.Lock()
	r.teardownLocked()
	r.mu.Unlock()

	r.logger.Info("keys locked")
}

// teardownLocked must be called with mu held.
func (r *Resolver) teardownLocked() {
	r.epoch++
	r.collEpoch++

	crypto.ZeroKey(r.master)
	r.master = nil
	r.keys = nil
	r.keypair = r.keypair.Reset()
	r.collKey = r.collKey.Reset()
}

// SetActiveCollection selects the collection whose key should be held.
// Any key for a previous collection is dropped. When the keypair is
// ready the new key is fetched and decrypted before returning; otherwise
// it is resolved by the next Unlock. An empty id clears the selection.
func (r *Resolver) SetActiveCollection(ctx context.Context, collectionID string) error {
	r.mu.Lock()
	r.active = collectionID
	r.collEpoch++
	r.collKey = r.collKey.Reset()
	ready := r.keys != nil
	r.mu.Unlock()

	if collectionID == "" || !ready {
		return nil
	}

	_, err := r.fetchCollectionKey(ctx, collectionID)

	return err
}

// ActiveCollection returns the selected collection id.
func (r *Resolver) ActiveCollection() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.active
}

// EnsureCollectionKey returns the key for collectionID, switching the
// active collection to it first when needed.
func (r *Resolver) EnsureCollectionKey(ctx context.Context, collectionID string) (models.CollectionEncryptionKey, error) {
	if key, err := r.CollectionKey(collectionID); err == nil {
		return key, nil
	}

	if err := r.SetActiveCollection(ctx, collectionID); err != nil {
		return models.CollectionEncryptionKey{}, err
	}

	return r.CollectionKey(collectionID)
}

func (r *Resolver) fetchCollectionKey(ctx context.Context, collectionID string) (models.CollectionEncryptionKey, error) {
	params := collectionParams{CollectionID: collectionID}

	r.mu.Lock()
	if r.keys == nil {
		r.mu.Unlock()
		return models.CollectionEncryptionKey{}, apperrors.New(apperrors.KeypairNotReady, "resolve collection key")
	}

	r.collEpoch++
	epoch := r.collEpoch
	privateKey := r.keys.privateKey
	r.collKey = r.collKey.Start(params)
	r.mu.Unlock()

	key, err := r.decryptCollectionKey(ctx, collectionID, privateKey)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.collEpoch != epoch {
		return models.CollectionEncryptionKey{}, apperrors.Newf(apperrors.CollectionKeyNotSet, "resolve collection key", "superseded")
	}

	if err != nil {
		r.collKey = r.collKey.Fail(params, err)
		return models.CollectionEncryptionKey{}, err
	}

	r.collKey = r.collKey.Finish(params, key)

	r.logger.Info("collection key resolved",
		slog.String("collection_id", collectionID),
		slog.Int("version", key.Version),
	)

	return key, nil
}

func (r *Resolver) decryptCollectionKey(ctx context.Context, collectionID, privateKey string) (models.CollectionEncryptionKey, error) {
	rec, err := r.remote.GetEncryptionKey(ctx, collectionID)
	if err != nil {
		return models.CollectionEncryptionKey{}, fmt.Errorf("fetching collection key: %w", err)
	}

	if rec == nil {
		return models.CollectionEncryptionKey{}, apperrors.Newf(apperrors.CollectionKeyNotSet, "resolve collection key", "collection %s", collectionID)
	}

	plain, err := r.provider.AsymmetricDecrypt(ctx, rec.EncryptedKey, privateKey)
	if err != nil {
		return models.CollectionEncryptionKey{}, fmt.Errorf("decrypting collection key: %w", err)
	}

	return models.CollectionEncryptionKey{
		CollectionID: collectionID,
		Key:          plain,
		Version:      rec.Version,
	}, nil
}

// CollectionKey returns the resolved key for collectionID.
func (r *Resolver) CollectionKey(collectionID string) (models.CollectionEncryptionKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.keys == nil {
		return models.CollectionEncryptionKey{}, apperrors.New(apperrors.KeypairNotReady, "collection key")
	}

	c := r.collKey
	if !c.Matches(collectionParams{CollectionID: collectionID}) {
		return models.CollectionEncryptionKey{}, apperrors.Newf(apperrors.CollectionKeyNotSet, "collection key", "collection %s is not resolved", collectionID)
	}

	switch c.Status {
	case async.Finished:
		return c.Data, nil
	case async.Failed:
		return models.CollectionEncryptionKey{}, c.Err
	default:
		return models.CollectionEncryptionKey{}, apperrors.Newf(apperrors.CollectionKeyNotSet, "collection key", "collection %s is still resolving", collectionID)
	}
}

// PublicKey returns the unlocked keypair's public key.
func (r *Resolver) PublicKey() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.keys == nil {
		return "", apperrors.New(apperrors.KeypairNotReady, "public key")
	}

	return r.keys.publicKey, nil
}

// State returns the logical hierarchy position.
func (r *Resolver) State() State {
	return r.Snapshot().State
}

// Snapshot returns a view without key material.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		KeypairStatus:    r.keypair.Status,
		KeypairErr:       r.keypair.Err,
		ActiveCollection: r.active,
		CollectionStatus: r.collKey.Status,
		CollectionID:     r.collKey.Params.CollectionID,
		CollectionErr:    r.collKey.Err,
	}

	switch {
	case r.keys == nil:
		s.State = Locked
	case r.collKey.Status == async.Finished:
		s.State = CollectionKeyReady
		s.KeyVersion = r.collKey.Data.Version
	default:
		s.State = KeypairReady
	}

	return s
}
