// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package credentials

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileSecretStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "GitHubPrivateKey"), []byte("pem"), 0600))
	s := &FileSecretStore{Dir: dir}

	t.Run("Should read a secret by name", func(t *testing.T) {
		b, err := s.GetSecret(context.Background(), "GitHubPrivateKey")
		require.NoError(t, err)
		require.Equal(t, "pem", string(b))
	})

	t.Run("Should report missing secrets", func(t *testing.T) {
		_, err := s.GetSecret(context.Background(), "Other")
		require.ErrorIs(t, err, ErrSecretNotFound)
	})

	t.Run("Should refuse names escaping the directory", func(t *testing.T) {
		_, err := s.GetSecret(context.Background(), "../GitHubPrivateKey")
		require.Error(t, err)
		_, err = s.GetSecret(context.Background(), "")
		require.Error(t, err)
	})
}

func TestEnvSecretStore(t *testing.T) {
	const key = "ISSUESYNC_TEST_GITHUBPRIVATEKEY"
	require.NoError(t, os.Setenv(key, `line1\nline2`))
	defer os.Unsetenv(key)

	s := &EnvSecretStore{Prefix: "ISSUESYNC_TEST_"}
	b, err := s.GetSecret(context.Background(), "GitHubPrivateKey")
	require.NoError(t, err)
	require.Equal(t, "line1\nline2", string(b))

	_, err = s.GetSecret(context.Background(), "Missing")
	require.ErrorIs(t, err, ErrSecretNotFound)
}
