// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

var ErrSecretNotFound = errors.New("secret not found")

// SecretStore resolves a secret by name, e.g. the PEM encoded signing key
// of the GitHub App.
type SecretStore interface {
	GetSecret(ctx context.Context, name string) ([]byte, error)
}

// FileSecretStore reads every secret from a file named after it inside Dir.
type FileSecretStore struct {
	Dir string
}

func (s *FileSecretStore) GetSecret(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("invalid secret name %q", name)
	}

	b, err := ioutil.ReadFile(filepath.Join(s.Dir, name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", name, err)
	}
	return b, nil
}

// EnvSecretStore reads secrets from environment variables named Prefix
// followed by the upper-cased secret name. Escaped newlines are expanded so
// a PEM block fits in a single variable.
type EnvSecretStore struct {
	Prefix string
}

func (s *EnvSecretStore) GetSecret(_ context.Context, name string) ([]byte, error) {
	key := s.Prefix + strings.ToUpper(name)
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return []byte(strings.ReplaceAll(v, `\n`, "\n")), nil
}
