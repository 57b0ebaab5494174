package keystore

import (
	"ns-keys/internal/cose"
	crypto2 "ns-keys/internal/crypto"
	"ns-keys/internal/models"
)

const (
	// DefaultPassphrase is used to derive the KEK when the user sets no password.
	DefaultPassphrase = "NS:COSE/Derive.KEK"

	NSKeyPathPrefix  = "m/42'/0'/0'/1/"
	BTCKeyPathPrefix = "m/44'/0'/0'/1/"
)

var (
	transferKeyAAD = []byte("NS:COSE/Transfer.Key")
	signMessageAAD = []byte("NS:COSE/Sign.Mesage")
)

// KEKRequest is sent to the authentication service to obtain a KEK.
type KEKRequest struct {
	State []byte
	Sig   []byte
	Renew bool
}

// KEKResponse carries the Ed25519 KEK issued by the authentication service.
// NextKey and NextState are only set on renew.
type KEKResponse struct {
	Key       *cose.Key
	State     []byte
	IssAt     int64 // unix ms
	NextKey   *cose.Key
	NextState []byte
	SyncedAt  int64
}

// KeyPK addresses a derived key by seed public key and derivation path.
type KeyPK struct {
	PK   string
	Path string
}

// SeedInfo is the public view of a stored seed.
type SeedInfo struct {
	PK        string           `json:"pk"`
	CreatedAt int64            `json:"created_at"`
	UpdatedAt int64            `json:"updated_at"`
	Alias     string           `json:"alias"`
	NsPaths   []models.KeyPath `json:"ns_paths"`
	BtcPaths  []models.KeyPath `json:"btc_paths"`
}

// keysEntry is a seed opened for the duration of one operation.
type keysEntry struct {
	sealed  models.SeedEntry
	seedRaw []byte
	seedKey *cose.Key
}

// wipe zeroes the decrypted seed and the private key parsed from it.
func (e keysEntry) wipe() {
	crypto2.Zero(e.seedRaw)
	wipeKey(e.seedKey)
}

func wipeKey(k *cose.Key) {
	if k == nil {
		return
	}
	if d, ok := k.Params[cose.OKPParamD].([]byte); ok {
		crypto2.Zero(d)
	}
}

func wipeAll(seeds []keysEntry) {
	for _, e := range seeds {
		e.wipe()
	}
}

func toSeedInfo(e *models.SeedEntry) SeedInfo {
	return SeedInfo{
		PK:        e.PK,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		Alias:     e.Alias,
		NsPaths:   append([]models.KeyPath{}, e.NsPaths...),
		BtcPaths:  append([]models.KeyPath{}, e.BtcPaths...),
	}
}

func findPath(paths []models.KeyPath, path string) (models.KeyPath, bool) {
	for _, p := range paths {
		if p.Path == path {
			return p, true
		}
	}
	return models.KeyPath{}, false
}
