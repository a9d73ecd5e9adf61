package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"neptunewallet/internal/testutil"
)

func TestLoadConfigDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")
	if AppConfig.Network.Name != "main" {
		t.Fatalf("unexpected network name: %s", AppConfig.Network.Name)
	}
}

func TestLoadConfigOverride(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("bootstrap")
	if AppConfig.Network.Name != "testnet-mock" {
		t.Fatalf("expected network name testnet-mock, got %s", AppConfig.Network.Name)
	}
	if AppConfig.Storage.DataDir != "./bootstrap-data" {
		t.Fatalf("expected bootstrap data dir override")
	}
}

func TestLoadConfigSandbox(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	data := []byte("network:\n  name: sandbox\nsync:\n  num_future_keys: 7\n")
	if err := sb.WriteFile("config/default.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")

	if AppConfig.Network.Name != "sandbox" {
		t.Fatalf("expected network name sandbox, got %s", AppConfig.Network.Name)
	}
	if AppConfig.Sync.NumFutureKeys != 7 {
		t.Fatalf("expected NumFutureKeys 7, got %d", AppConfig.Sync.NumFutureKeys)
	}
}
