package explorertest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/sealbox/internal/crypto"
	"github.com/alexjbarnes/sealbox/internal/models"
)

const (
	Email        = "Someone@Example.com"
	Password     = "correct horse battery staple"
	CollectionID = "c1"
)

// Account is the key material of the test user.
type Account struct {
	Keypair      models.KeypairRecord
	EncryptedKey string
	// CollectionKey is the plaintext key of CollectionID, for leak checks.
	CollectionKey string
}

var (
	accountOnce sync.Once
	account     Account
	accountErr  error
)

// LoadAccount builds the keypair and collection key once per test binary;
// RSA generation and scrypt dominate test time otherwise.
func LoadAccount(t testing.TB) Account {
	t.Helper()

	accountOnce.Do(func() {
		account, accountErr = newAccount(context.Background())
	})

	require.NoError(t, accountErr)

	return account
}

func newAccount(ctx context.Context) (Account, error) {
	p := crypto.NewNative()

	pub, priv, err := crypto.GenerateKeyPair(crypto.DefaultRSABits)
	if err != nil {
		return Account{}, err
	}

	emailHash, err := crypto.EmailHash(ctx, p, Email)
	if err != nil {
		return Account{}, err
	}

	master, err := crypto.DeriveMasterKey(Password, emailHash)
	if err != nil {
		return Account{}, err
	}
	defer crypto.ZeroKey(master)

	sealed, err := crypto.SealPrivateKey(ctx, p, master, priv)
	if err != nil {
		return Account{}, err
	}

	collKey, err := crypto.NewCollectionKey(ctx, p)
	if err != nil {
		return Account{}, err
	}

	enc, err := p.AsymmetricEncrypt(ctx, collKey, pub)
	if err != nil {
		return Account{}, err
	}

	return Account{
		Keypair:       models.KeypairRecord{PublicKey: pub, EncryptedPrivateKey: sealed},
		EncryptedKey:  enc,
		CollectionKey: collKey,
	}, nil
}

// NewRemote returns a store seeded with the test account and one empty
// collection, CollectionID.
func NewRemote(t testing.TB) *Remote {
	t.Helper()
	acc := LoadAccount(t)

	r := NewEmptyRemote()
	kp := acc.Keypair
	r.keypair = &kp
	r.collections[CollectionID] = models.Collection{ID: CollectionID, Name: "Main", EncryptionKeyVersion: 1}
	r.keys[CollectionID] = &models.EncryptionKeyRecord{CollectionID: CollectionID, EncryptedKey: acc.EncryptedKey, Version: 1}

	return r
}
