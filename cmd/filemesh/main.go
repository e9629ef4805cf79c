// filemesh is the metadata directory service of a distributed file store.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/filemesh/filemesh/internal/config"
	"github.com/filemesh/filemesh/internal/directory"
	badgerstore "github.com/filemesh/filemesh/internal/directory/badger"
	"github.com/filemesh/filemesh/internal/dirsvc"
	"github.com/filemesh/filemesh/internal/identity"
	"github.com/filemesh/filemesh/internal/ticket"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

var (
	cfgFile  string
	logLevel string

	// ticket mint flags
	mintClientID string
	mintTTL      time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "filemesh",
		Short: "Directory service for a distributed file store",
		Long: `filemesh is the metadata directory of a distributed file store: it maps
client identities to the files they hold and, for each file, the storage
nodes carrying a replica. It never stores file bytes.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "filemesh.yaml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the directory service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	ticketCmd := &cobra.Command{
		Use:   "ticket",
		Short: "Session ticket tooling",
	}

	mintCmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a session ticket for a client",
		Long: `Mint encrypts a session ticket under the configured server key. Ticket
minting normally lives in the authentication service; this command exists
for operators and integration tests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMint()
		},
	}
	mintCmd.Flags().StringVar(&mintClientID, "client", "", "client id to encode in the ticket (required)")
	mintCmd.Flags().DurationVar(&mintTTL, "ttl", 24*time.Hour, "ticket lifetime")
	_ = mintCmd.MarkFlagRequired("client")
	ticketCmd.AddCommand(mintCmd)

	keygenCmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a server key for the ticket cipher",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := config.GenerateServerKey()
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("filemesh %s (%s)\n", Version, Commit)
		},
	}

	rootCmd.AddCommand(serveCmd, ticketCmd, keygenCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func runServe() error {
	cfg, err := config.LoadServerConfig(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	records, err := badgerstore.NewStore(cfg.DataDir)
	if err != nil {
		return err
	}
	store := directory.NewStore(records)
	defer func() { _ = store.Close() }()

	var resolver dirsvc.IdentityResolver
	if cfg.Identity.URL != "" {
		timeout, _ := time.ParseDuration(cfg.Identity.Timeout)
		resolver = identity.NewClient(cfg.Identity.URL, timeout)
		log.Info().Str("url", cfg.Identity.URL).Msg("identity lookup enabled")
	}

	srv, err := dirsvc.NewServer(cfg, store, resolver)
	if err != nil {
		return err
	}

	log.Info().
		Int("coordinators", len(cfg.Coordinators)).
		Int("storage_nodes", len(cfg.StorageNodes)).
		Str("data_dir", cfg.DataDir).
		Msg("directory store opened")

	return srv.ListenAndServe()
}

func runMint() error {
	cfg, err := config.LoadServerConfig(cfgFile)
	if err != nil {
		return err
	}

	serverKey, err := config.DecodeServerKey(cfg.ServerKey)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	encoded, sessionKey, err := ticket.Mint(serverKey, mintClientID, mintTTL)
	if err != nil {
		return err
	}

	fmt.Printf("ticket:      %s\n", encoded)
	fmt.Printf("session_key: %s\n", hex.EncodeToString(sessionKey))
	return nil
}
