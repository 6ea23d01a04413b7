package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// loadEnv returns the environment handed to the build: the project's .env
// file overlaid by the process environment. Neither is modified.
func loadEnv(root string) (map[string]string, error) {
	fileEnv := map[string]string{}

	path := filepath.Join(root, ".env")
	if _, err := os.Stat(path); err == nil {
		fileEnv, err = godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	return mergeEnv(fileEnv, os.Environ()), nil
}

// mergeEnv overlays KEY=value pairs from environ onto fileEnv.
func mergeEnv(fileEnv map[string]string, environ []string) map[string]string {
	env := make(map[string]string, len(fileEnv)+len(environ))
	for k, v := range fileEnv {
		env[k] = v
	}

	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}

	return env
}
