package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SaveCredentials writes username and token into the config file at path, keeping every other key.
// An empty token removes the token key.
func SaveCredentials(path, username, token string) error {
	doc := map[string]any{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return err
	}

	if username != "" {
		doc["username"] = username
	}
	if token == "" {
		delete(doc, "token")
	} else {
		doc["token"] = token
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}
