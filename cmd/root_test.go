package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	require.Equal(t, "modelwatch", root.Use)

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	require.Equal(t, "serve", serve.Use)

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
}
