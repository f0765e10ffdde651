package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"interviewcoach/pkg/config"
)

const (
	promptYes = "Yes"
	promptNo  = "No"
)

var errAborted = errors.New("aborted")

func newSecretsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the encrypted provider credentials file",
	}
	cmd.AddCommand(newSecretsSetCmd(opts), newSecretsListCmd(opts))
	return cmd
}

func newSecretsSetCmd(opts *options) *cobra.Command {
	var (
		fromStdin bool
		yes       bool
	)
	cmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Store a credential such as GEMINI_API_KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.New("secret name is required")
			}

			password, err := secretsPassword("🔐 Secrets password: ")
			if err != nil {
				return err
			}
			secrets := map[string]string{}
			if config.SecretsFileExists(opts.projectDir) {
				if secrets, err = config.DecryptSecretsFile(opts.projectDir, password); err != nil {
					return err //nolint:wrapcheck // already descriptive
				}
			}

			if _, exists := secrets[name]; exists && !yes {
				if err := confirmOverwrite(name); err != nil {
					return err
				}
			}

			value, err := readSecretValue(cmd.InOrStdin(), name, fromStdin)
			if err != nil {
				return err
			}
			secrets[name] = value

			if err := config.EncryptSecretsFile(opts.projectDir, password, secrets); err != nil {
				return err //nolint:wrapcheck // already descriptive
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Stored %s in %s\n", name, config.SecretsFilePath(opts.projectDir))
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the value from the first line of stdin")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "overwrite an existing secret without asking")
	return cmd
}

func newSecretsListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credential names",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !config.SecretsFileExists(opts.projectDir) {
				fmt.Fprintln(cmd.OutOrStdout(), "No secrets file.")
				return nil
			}
			password, err := secretsPassword("🔐 Secrets password: ")
			if err != nil {
				return err
			}
			if err := config.LoadSecrets(opts.projectDir, password); err != nil {
				return err //nolint:wrapcheck // already descriptive
			}
			defer config.SetDecryptedSecrets(nil)
			for _, name := range config.GetDecryptedSecretNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// secretsPassword takes the password from the environment, or asks on a terminal.
func secretsPassword(label string) (string, error) {
	if password := os.Getenv(config.EnvSecretsPassword); password != "" {
		return password, nil
	}
	return readHidden(label)
}

// readHidden reads a line from the terminal without echo.
func readHidden(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("not a terminal: set %s or use --stdin", config.EnvSecretsPassword)
	}
	fmt.Fprint(os.Stderr, label)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	if len(raw) == 0 {
		return "", errors.New("input must not be empty")
	}
	return string(raw), nil
}

func readSecretValue(in io.Reader, name string, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read value: %w", err)
		}
		value := strings.TrimSpace(line)
		if value == "" {
			return "", errors.New("secret value is empty")
		}
		return value, nil
	}
	return readHidden(fmt.Sprintf("Value for %s: ", name))
}

func confirmOverwrite(name string) error {
	prompt := promptui.Select{
		Label: fmt.Sprintf("%s already exists. Overwrite?", name),
		Items: []string{promptYes, promptNo},
	}
	_, choice, err := prompt.Run()
	if err != nil {
		return fmt.Errorf("confirmation failed: %w", err)
	}
	if choice != promptYes {
		return errAborted
	}
	return nil
}
