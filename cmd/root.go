// ABOUTME: Root command for the filemgr CLI
// ABOUTME: Handles global flags and configuration

package cmd

import (
	"github.com/AsafNachman/file-management-system/internal/config"
	"github.com/spf13/cobra"
)

var (
	apiURL     string
	jsonOutput bool
	configPath string
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "filemgr",
	Short: "Browse, upload and manage your stored files",
	Long: `filemgr is a terminal client for a personal file store.

Sign in once with "filemgr login", then list, upload, download and delete
your files from scripts, or run "filemgr browse" for the interactive view.

Environment Variables:
  FILEMGR_API_URL        Backend API URL (default: http://localhost:8000)
  FILEMGR_TOKEN_URL      OAuth2 token endpoint of the identity provider
  FILEMGR_CLIENT_ID      OAuth2 client id (default: filemgr)
  FILEMGR_CLIENT_SECRET  OAuth2 client secret
  FILEMGR_DOWNLOAD_DIR   Directory downloads are saved to (default: .)
  LOG_LEVEL              debug, info, warn, error (default: info)
  LOG_FORMAT             text, json (default: text)`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend API URL (overrides FILEMGR_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/filemgr/config.yaml)")
}

// LoadConfig reads configuration and applies the --api-url flag on top
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	return cfg, nil
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}
