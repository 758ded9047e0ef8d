package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var yankCmd = &cobra.Command{
	Use:   "yank [name] <version>",
	Short: "Yank a version from the registry",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, version, err := nameAndVersion(args)
		if err != nil {
			return err
		}
		return setYanked(name, version, "yank", "plugin version yanked successfully")
	},
}

var unyankCmd = &cobra.Command{
	Use:   "unyank [name] <version>",
	Short: "Undo yanking a version from the registry",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, version, err := nameAndVersion(args)
		if err != nil {
			return err
		}
		return setYanked(name, version, "unyank", "plugin version unyanked successfully")
	},
}

// nameAndVersion resolves the plugin name from the arguments, falling back
// to the manifest in the working directory when only a version is given.
func nameAndVersion(args []string) (string, string, error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", "", err
	}
	m, err := readManifest(dir)
	if err != nil {
		return "", "", err
	}
	return m.Name, args[0], nil
}

func setYanked(name, version, action, successMessage string) error {
	token, err := authToken()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/me/plugins/%s/%s/%s", registryURL(), name, version, action)
	req, err := http.NewRequest(http.MethodPut, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		fmt.Println(successMessage)
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("failed to %s plugin version: %s", action, strings.TrimSpace(string(body)))
}
