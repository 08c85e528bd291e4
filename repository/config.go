package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wit-vcs/wit/plumbing"
)

// Config is the repository's persisted configuration. Today it holds only
// the hash algorithm chosen at Init, so Open never requires the caller to
// remember and re-pass it (a SUPPLEMENTED FEATURE over the distilled spec,
// which left config format unspecified).
type Config struct {
	HashAlgo plumbing.HashAlgo
}

const configFile = "config"

func writeConfig(gitDir string, cfg Config) error {
	body := fmt.Sprintf("hashAlgo = %s\n", cfg.HashAlgo)
	tmp := filepath.Join(gitDir, configFile+".tmp")
	if err := os.WriteFile(tmp, []byte(body), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(gitDir, configFile))
}

func readConfig(gitDir string) (Config, error) {
	data, err := os.ReadFile(filepath.Join(gitDir, configFile))
	if err != nil {
		return Config{}, fmt.Errorf("open repository: %w", err)
	}
	cfg := Config{HashAlgo: plumbing.SHA1}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "hashAlgo" {
			algo, err := plumbing.ParseHashAlgo(v)
			if err != nil {
				return Config{}, err
			}
			cfg.HashAlgo = algo
		}
	}
	return cfg, nil
}
