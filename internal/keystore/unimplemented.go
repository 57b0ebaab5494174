package keystore

import "context"

func (s *KeyStore) DeprecateEd25519(ctx context.Context, pk, path string) (SeedInfo, error) {
	return SeedInfo{}, ErrNotImplemented
}

func (s *KeyStore) DeprecateSecp256k1(ctx context.Context, pk, path string) (SeedInfo, error) {
	return SeedInfo{}, ErrNotImplemented
}

func (s *KeyStore) ImportCOSE(ctx context.Context, alias string) (SeedInfo, error) {
	return SeedInfo{}, ErrNotImplemented
}

func (s *KeyStore) ExportCOSE(ctx context.Context, pk string) (string, error) {
	return "", ErrNotImplemented
}

func (s *KeyStore) Secp256k1SignBTCTx(ctx context.Context, kp KeyPK, tx []byte) ([]byte, error) {
	return nil, ErrNotImplemented
}

func (s *KeyStore) Secp256k1SignBTCMessage(ctx context.Context, kp KeyPK, message string) (string, error) {
	return "", ErrNotImplemented
}

func (s *KeyStore) Secp256k1VerifyBTCMessage(ctx context.Context, kp KeyPK, message, signature string) (bool, error) {
	return false, ErrNotImplemented
}
