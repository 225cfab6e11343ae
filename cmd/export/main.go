package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/iconidentify/xreply/internal/config"
	"github.com/iconidentify/xreply/internal/kvstore"
	"github.com/iconidentify/xreply/internal/repository"
	"github.com/iconidentify/xreply/internal/service"
	"github.com/iconidentify/xreply/pkg/crypto"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	dest := flag.String("dest", "", "Directory to write the export to (defaults to settings.export_dir)")
	importPath := flag.String("import", "", "Settings file to import instead of exporting")
	encrypt := flag.Bool("encrypt", false, "Seal the export with a passphrase")
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("xreply-export %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Storage.Path == "" {
		fmt.Fprintln(os.Stderr, "Error: storage.path is not set; there are no persisted settings to export")
		os.Exit(1)
	}

	store, err := kvstore.NewSQLiteStore(cfg.Storage.Path, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	settingsSvc := service.NewSettingsService(repository.NewKVConfigRepository(store), logger)

	// Setup context with cancellation
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *importPath != "" {
		if err := runImport(ctx, settingsSvc, *importPath); err != nil {
			fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Imported settings from %s\n", *importPath)
		return
	}

	dir := *dest
	if dir == "" {
		dir = cfg.Settings.ExportDir
	}
	if dir == "" {
		dir = "."
	}

	var passphrase string
	if *encrypt {
		passphrase, err = promptPassphrase("Export passphrase: ", true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	path, err := settingsSvc.ExportFile(ctx, dir, passphrase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Exported settings to %s\n", path)
	if passphrase == "" {
		fmt.Println("The file contains your license key in plain text. Use -encrypt to seal it.")
	}
}

func runImport(ctx context.Context, svc *service.SettingsService, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var passphrase string
	if crypto.IsSealed(data) {
		passphrase, err = promptPassphrase("Passphrase: ", false)
		if err != nil {
			return err
		}
	}
	return svc.Import(ctx, data, passphrase)
}

// promptPassphrase reads a passphrase without echo. confirm asks twice.
func promptPassphrase(prompt string, confirm bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		// Non-interactive: first line of stdin.
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		return nonEmpty(strings.TrimRight(line, "\r\n"))
	}

	fmt.Fprint(os.Stderr, prompt)
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if confirm {
		fmt.Fprint(os.Stderr, "Repeat passphrase: ")
		second, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passphrases do not match")
		}
	}
	return nonEmpty(string(first))
}

func nonEmpty(p string) (string, error) {
	if p == "" {
		return "", crypto.ErrEmptyPassphrase
	}
	return p, nil
}
