package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"ns-keys/internal/keystore"
)

func TestParseKeyPK(t *testing.T) {
	kp, err := parseKeyPK("abcd:m/42'/0'/0'/1/0")
	if err != nil {
		t.Fatalf("parseKeyPK: %v", err)
	}
	if kp.PK != "abcd" || kp.Path != "m/42'/0'/0'/1/0" {
		t.Fatalf("unexpected key %+v", kp)
	}
	for _, bad := range []string{"abcd", ":m/0", "abcd:"} {
		if _, err := parseKeyPK(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestAllCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range All() {
		names[c.Name] = true
	}
	for _, want := range []string{"seed", "sign", "kek"} {
		if !names[want] {
			t.Fatalf("command %s missing", want)
		}
	}
}

func TestWriteMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	ks := keystore.New(keystore.Options{Dir: t.TempDir(), Registerer: reg})
	if err := ks.Connect(ctx, "alice"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer ks.Close()
	if _, err := ks.GenerateSeed(ctx, "main"); !errors.Is(err, keystore.ErrNotOpened) {
		t.Fatalf("expected ErrNotOpened, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "ns_keys.prom")
	if err := writeMetrics(path, reg); err != nil {
		t.Fatalf("writeMetrics: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{
		`nskeys_keystore_ops_total{op="connect",result="ok"} 1`,
		`nskeys_keystore_ops_total{op="generate_seed",result="error"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("metrics file missing %q:\n%s", want, data)
		}
	}
}
