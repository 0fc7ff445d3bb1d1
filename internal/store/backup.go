package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"tgstate/internal/crypto"
)

// BackupFormatVersion is written into every sealed backup.
const BackupFormatVersion = 2

var (
	// ErrWrongPassphrase is returned when the passphrase is incorrect or the
	// backup has been modified.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted backup")

	backupFiles = []string{AuthFile, CursorFile, SecretFile}
)

// kdfParams are the scrypt settings a backup was sealed with.
type kdfParams struct {
	Salt []byte `json:"salt"`
	N    int    `json:"n"`
	R    int    `json:"r"`
	P    int    `json:"p"`
}

func newKDFParams() (kdfParams, error) {
	k := kdfParams{Salt: make([]byte, 16), N: 1 << 15, R: 8, P: 1}
	if _, err := rand.Read(k.Salt); err != nil {
		return kdfParams{}, err
	}
	return k, nil
}

func (k kdfParams) key(passphrase string) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), k.Salt, k.N, k.R, k.P, chacha20poly1305.KeySize)
}

// sealedBackup is the JSON document a backup file holds. Its version and
// KDF parameters are bound to the ciphertext as associated data.
type sealedBackup struct {
	Version int       `json:"version"`
	KDF     kdfParams `json:"kdf"`
	Nonce   []byte    `json:"nonce"`
	Data    []byte    `json:"data"`
}

func (b sealedBackup) additionalData() []byte {
	return fmt.Appendf(nil, "tgstate-backup v%d n=%d r=%d p=%d salt=%x", b.Version, b.KDF.N, b.KDF.R, b.KDF.P, b.KDF.Salt)
}

// SealBackup bundles the store files found in dir and seals them with a key
// derived from passphrase. Missing files are left out.
func SealBackup(dir, passphrase string) ([]byte, int, error) {
	files := make(map[string][]byte, len(backupFiles))
	for _, name := range backupFiles {
		b, err := loadFile(dir, name)
		if err != nil {
			return nil, 0, err
		}
		if b != nil {
			files[name] = b
		}
	}
	raw, err := json.Marshal(files)
	if err != nil {
		return nil, 0, err
	}
	defer crypto.Wipe(raw)

	kdf, err := newKDFParams()
	if err != nil {
		return nil, 0, err
	}
	aead, err := backupAEAD(kdf, passphrase)
	if err != nil {
		return nil, 0, err
	}
	sb := sealedBackup{Version: BackupFormatVersion, KDF: kdf, Nonce: make([]byte, aead.NonceSize())}
	if _, err := rand.Read(sb.Nonce); err != nil {
		return nil, 0, err
	}
	sb.Data = aead.Seal(nil, sb.Nonce, raw, sb.additionalData())

	out, err := json.Marshal(sb)
	return out, len(files), err
}

// OpenBackup decrypts a sealed backup and atomically writes each store file
// it contains into dir.
func OpenBackup(dir, passphrase string, sealed []byte) (int, error) {
	var sb sealedBackup
	if err := json.Unmarshal(sealed, &sb); err != nil {
		return 0, fmt.Errorf("decode backup: %w", err)
	}
	if sb.Version != BackupFormatVersion {
		return 0, fmt.Errorf("unsupported backup version %d", sb.Version)
	}
	aead, err := backupAEAD(sb.KDF, passphrase)
	if err != nil {
		return 0, err
	}
	if len(sb.Nonce) != aead.NonceSize() {
		return 0, ErrWrongPassphrase
	}
	raw, err := aead.Open(nil, sb.Nonce, sb.Data, sb.additionalData())
	if err != nil {
		return 0, ErrWrongPassphrase
	}
	defer crypto.Wipe(raw)

	var files map[string][]byte
	if err := json.Unmarshal(raw, &files); err != nil {
		return 0, fmt.Errorf("decode backup: %w", err)
	}
	n := 0
	for _, name := range backupFiles {
		b, ok := files[name]
		if !ok {
			continue
		}
		if err := replaceFile(dir, name, b); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func backupAEAD(kdf kdfParams, passphrase string) (cipher.AEAD, error) {
	key, err := kdf.key(passphrase)
	if err != nil {
		return nil, fmt.Errorf("derive backup key: %w", err)
	}
	defer crypto.Wipe(key)
	return chacha20poly1305.NewX(key)
}
