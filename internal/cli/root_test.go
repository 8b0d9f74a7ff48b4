package cli

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteClosesLogOnCommandError(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dir := t.TempDir()
	logFile := filepath.Join(dir, "gafscrape.log")
	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(
		"metadata_url: "+srv.URL+"/go_annotation_metadata.all.js\n"+
			"deploy_dir: "+filepath.Join(dir, "web")+"\n"+
			"download_dir: "+filepath.Join(dir, "download")+"\n"+
			"log_file: "+logFile+"\n",
	), 0o644))

	err := execute(context.Background(), []string{"resources", "--config", cfgFile})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata")

	assert.Nil(t, logCleanup, "log file should be closed after a failed command")
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id"`)
}
