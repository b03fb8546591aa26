package main

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

func TestWriteSecrets(t *testing.T) {
	var buf bytes.Buffer

	err := writeSecrets(&buf, rand.Reader)
	require.NoError(t, err)

	env, err := godotenv.Parse(&buf)
	require.NoError(t, err, "output has to be valid .env content")
	require.Len(t, env["ACCESS_TOKEN_SECRET"], 2*SecretKeyBytesLen)
	require.Len(t, env["REFRESH_TOKEN_SECRET"], 2*SecretKeyBytesLen)
	require.NotEqual(t, env["ACCESS_TOKEN_SECRET"], env["REFRESH_TOKEN_SECRET"])

	err = writeSecrets(&buf, strings.NewReader("short"))
	require.Error(t, err, "not enough random bytes")
}
