package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plugin-registry/plugin-registry/internal/validation"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the plugin in the current directory to the registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPublish()
	},
}

func runPublish() error {
	token, err := authToken()
	if err != nil {
		return err
	}

	dir, err := os.Getwd()
	if err != nil {
		return err
	}

	m, err := readManifest(dir)
	if err != nil {
		return err
	}
	if _, err := validation.ParseVersion(m.Version); err != nil {
		return fmt.Errorf("version isn't valid")
	}

	files, err := collectFiles(dir, m)
	if err != nil {
		return err
	}

	tempDir, err := os.MkdirTemp("", "volt-publish-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	archivePath := filepath.Join(tempDir, "plugin.volt")
	if err := buildArchive(dir, archivePath, files); err != nil {
		return err
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer archive.Close()

	url := registryURL() + "/api/v1/me/plugins/new"
	req, err := http.NewRequest(http.MethodPut, url, archive)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/gzip")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		fmt.Printf("plugin %s %s published successfully\n", m.Name, m.Version)
		return nil
	}

	// The server message is the useful part; print it verbatim.
	return fmt.Errorf("failed to publish plugin: %s", strings.TrimSpace(string(body)))
}
