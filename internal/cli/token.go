package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "plugin-registry"
	keyringAccount = "registry-api"
)

// authToken resolves the API token: the --token flag wins, then the system
// credential store, then an interactive prompt. Tokens obtained from the
// flag or the prompt are saved back to the credential store so later
// invocations need neither.
func authToken() (string, error) {
	if flagToken != "" {
		if _, err := keyring.Get(keyringService, keyringAccount); err != nil {
			if err := keyring.Set(keyringService, keyringAccount, flagToken); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to save token in system credential store: %v\n", err)
			}
		}
		return strings.TrimSpace(flagToken), nil
	}

	if stored, err := keyring.Get(keyringService, keyringAccount); err == nil {
		return strings.TrimSpace(stored), nil
	}

	fmt.Println("Please paste the API token you created on the registry")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", fmt.Errorf("token cannot be empty")
	}

	if err := keyring.Set(keyringService, keyringAccount, token); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save token in system credential store: %v\n", err)
	}

	return token, nil
}
