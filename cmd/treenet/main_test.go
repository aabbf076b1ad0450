package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treenet/internal/config"
)

func TestEnvName(t *testing.T) {
	assert.Equal(t, "TREENET_RDNS_SERVER", envName("rdns-server"))
	assert.Equal(t, "TREENET_SERVER_ADDR", envName("server.addr"))
	assert.Equal(t, "TREENET_CONFIG", envName("config"))
}

func testCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	addInputFlags(cmd.Flags())
	cmd.Flags().String("addr", ":3000", "")
	cmd.Flags().Bool("watch", false, "")
	return cmd
}

func TestBindFlagsFromEnv(t *testing.T) {
	t.Setenv("TREENET_ADDR", ":9000")
	t.Setenv("TREENET_WATCH", "true")
	t.Setenv("TREENET_RDNS_TIMEOUT", "750ms")

	cmd := testCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--addr", ":8080"}))

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	require.NoError(t, bindFlags(cmd, v))

	// the command line wins over the environment
	addr, _ := cmd.Flags().GetString("addr")
	assert.Equal(t, ":8080", addr)

	watch, _ := cmd.Flags().GetBool("watch")
	assert.True(t, watch)

	c := config.DefaultConfig()
	require.NoError(t, applyFlags(c, cmd.Flags()))
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.True(t, c.Server.Watch)
	assert.Equal(t, 750*time.Millisecond, c.RDNS.Timeout.Duration())
	assert.False(t, c.RDNS.Enabled)
	assert.Equal(t, "127.0.0.1:53", c.RDNS.Server)
}

func TestBindFlagsInvalidEnv(t *testing.T) {
	t.Setenv("TREENET_WATCH", "maybe")

	cmd := testCmd()
	require.NoError(t, cmd.Flags().Parse(nil))
	v := viper.New()
	assert.ErrorContains(t, bindFlags(cmd, v), "TREENET_WATCH")
}

func TestApplyFlagsLeavesUnsetFields(t *testing.T) {
	cmd := testCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--input", "lab.yaml", "--format", "yaml"}))

	c := config.DefaultConfig()
	c.Server.Addr = ":4000"
	require.NoError(t, applyFlags(c, cmd.Flags()))
	assert.Equal(t, "lab.yaml", c.Input.Path)
	assert.Equal(t, "yaml", c.Input.Format)
	assert.Equal(t, ":4000", c.Server.Addr)
}

func TestBuildCommand(t *testing.T) {
	t.Setenv("TREENET_CONFIG", "")
	t.Chdir(t.TempDir())

	require.NoError(t, os.WriteFile("lab.yaml", []byte(`
subnets:
  - prefix: 10.0.0.0/24
    route: [10.0.0.1]
  - prefix: 10.1.0.0/24
    route: [10.0.0.1, 10.1.0.1]
`), 0o644))

	root := &cobra.Command{Use: "treenet", PersistentPreRunE: rootCmd.PersistentPreRunE}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "")
	root.AddCommand(newBuildCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"build", "lab.yaml", "--graph", "graph.json", "--graph-format", "json", "--db", "lab.db"})
	require.NoError(t, root.Execute())

	graph, err := os.ReadFile("graph.json")
	require.NoError(t, err)
	assert.Contains(t, string(graph), `"vertices"`)
	assert.NoFileExists(t, filepath.Join(".", "dump.txt"))
	assert.FileExists(t, "lab.db")
}
