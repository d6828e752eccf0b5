package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sampleConfig struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

type validatedConfig struct {
	Port int `yaml:"port"`
}

func (c *validatedConfig) Validate() error {
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "name: jera\nport: 9090\n")

	var cfg sampleConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "jera" || cfg.Port != 9090 {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("JERA_TEST_NAME", "expanded")
	path := writeConfig(t, "name: ${JERA_TEST_NAME}\n")

	var cfg sampleConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "expanded" {
		t.Errorf("name = %q", cfg.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg sampleConfig
	if err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err == nil {
		t.Error("missing file should fail Load")
	}
}

func TestLoadRunsValidation(t *testing.T) {
	path := writeConfig(t, "port: 0\n")

	var cfg validatedConfig
	if err := Load(path, &cfg); err == nil {
		t.Error("validation failure should surface")
	}
}

func TestLoadIfExists(t *testing.T) {
	cfg := sampleConfig{Name: "defaults", Port: 8080}
	if err := LoadIfExists(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err != nil {
		t.Fatalf("missing file should be fine: %v", err)
	}
	if cfg.Name != "defaults" || cfg.Port != 8080 {
		t.Errorf("defaults clobbered: %+v", cfg)
	}

	path := writeConfig(t, "port: 9000\n")
	if err := LoadIfExists(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9000 {
		t.Errorf("port = %d", cfg.Port)
	}
}
