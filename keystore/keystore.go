package keystore

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	smpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/egaotan/solana-token2022/config"
	"github.com/egaotan/solana-token2022/utils"
	"github.com/gagliardetto/solana-go"
)

var ErrInvalidKey = errors.New("keystore: invalid private key")

// SecretSource reads a secret payload by resource name.
type SecretSource interface {
	Access(ctx context.Context, name string) ([]byte, error)
}

// SecretManager reads secrets from GCP Secret Manager.
type SecretManager struct{}

func (SecretManager) Access(ctx context.Context, name string) ([]byte, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secretmanager.NewClient: %w", err)
	}
	defer client.Close()

	res, err := client.AccessSecretVersion(ctx, &smpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return nil, fmt.Errorf("access secret version %s: %w", name, err)
	}
	return res.Payload.Data, nil
}

// Source names where a key comes from. The first non empty field wins.
type Source struct {
	Key    string
	File   string
	Secret string
}

func (s Source) Empty() bool {
	return s.Key == "" && s.File == "" && s.Secret == ""
}

type Keystore struct {
	logger  *log.Logger
	secrets SecretSource
}

func NewKeystore(secrets SecretSource) *Keystore {
	if secrets == nil {
		secrets = SecretManager{}
	}
	return &Keystore{
		logger:  utils.NewLog(config.LogPath, config.KeystoreLog),
		secrets: secrets,
	}
}

// Resolve loads the key named by source. It returns nil when source is empty.
func (ks *Keystore) Resolve(ctx context.Context, source Source) (*solana.PrivateKey, error) {
	if source.Empty() {
		return nil, nil
	}
	var (
		data []byte
		err  error
		from string
	)
	switch {
	case source.Key != "":
		data, from = []byte(source.Key), "config"
	case source.File != "":
		data, err = os.ReadFile(source.File)
		from = source.File
	default:
		from = SecretName(source.Secret)
		data, err = ks.secrets.Access(ctx, from)
	}
	if err != nil {
		return nil, err
	}
	key, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", from, err)
	}
	ks.logger.Printf("loaded key %s from %s", key.PublicKey(), from)
	return &key, nil
}

// SecretName completes a secret resource name with the latest version.
func SecretName(name string) string {
	if strings.Contains(name, "/versions/") {
		return name
	}
	return strings.TrimSuffix(name, "/") + "/versions/latest"
}

// Decode accepts a keypair as a JSON byte array ([12,34,...]) or a base58
// string.
func Decode(data []byte) (solana.PrivateKey, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if data[0] == '[' {
		var ints []int
		if err := json.Unmarshal(data, &ints); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
		}
		if len(ints) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(ints), ed25519.PrivateKeySize)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: byte %d out of range", ErrInvalidKey, i)
			}
			b[i] = byte(v)
		}
		return check(solana.PrivateKey(b))
	}
	key, err := solana.PrivateKeyFromBase58(strings.Trim(string(data), "\""))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}
	return check(key)
}

// check rejects keypairs whose public half does not match the seed.
func check(key solana.PrivateKey) (solana.PrivateKey, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), ed25519.PrivateKeySize)
	}
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !bytes.Equal(derived[32:], key[32:]) {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidKey)
	}
	return key, nil
}
