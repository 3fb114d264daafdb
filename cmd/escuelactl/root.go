package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sistema-escolar/escuela-backend/internal/client"
	"github.com/sistema-escolar/escuela-backend/internal/logger"
)

const defaultServerURL = "http://localhost:8080"

var (
	serverURL  string
	cachePath  string
	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "escuelactl",
	Short: "Session client for the escuela backend",
	Long: `escuelactl logs in to the escuela backend and keeps the session cookie and
cached user between runs.

Environment Variables:
  ESCUELA_URL    Server URL (default: http://localhost:8080)
  ESCUELA_CACHE  Session cache file (default: $XDG_CONFIG_HOME/escuela/session.json)`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL (overrides ESCUELA_URL)")
	rootCmd.PersistentFlags().StringVar(&cachePath, "cache", "", "Session cache file (overrides ESCUELA_CACHE)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log client activity to stderr")
}

func resolveServerURL() string {
	if serverURL != "" {
		return serverURL
	}
	if env := os.Getenv("ESCUELA_URL"); env != "" {
		return env
	}
	return defaultServerURL
}

func resolveCachePath() string {
	if cachePath != "" {
		return cachePath
	}
	if env := os.Getenv("ESCUELA_CACHE"); env != "" {
		return env
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "escuela", "session.json")
}

func newManager() (*client.Manager, error) {
	log := zerolog.Nop()
	if verbose {
		log = logger.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return client.New(client.Options{
		BaseURL:   resolveServerURL(),
		CachePath: resolveCachePath(),
		Log:       log,
	})
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}
