package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"hopper/internal/config"
	"hopper/internal/conversation"
	"hopper/internal/db"
	"hopper/internal/logging"
	"hopper/internal/models"
	"hopper/internal/openrouter"
	"hopper/internal/session"
	"hopper/internal/styles"
	"hopper/internal/ui"
)

var (
	dbPath   string
	logLevel string
	modelID  string
)

var rootCmd = &cobra.Command{
	Use:   "hopper",
	Short: "Terminal client for generating Grasshopper C# components",
	Long: `Hopper is a terminal client that generates Grasshopper C# script
components from natural language prompts, streaming the response as it
arrives. Conversations are kept in threads and persisted locally.

An OpenRouter API key is required; set it in the app (Ctrl+E) or via the
OPENROUTER_API_KEY environment variable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the sqlite database (default: per-user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.Flags().StringVar(&modelID, "model", "", "OpenRouter model id to use (persisted)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openDatabase() (*db.DB, error) {
	path := dbPath
	if path == "" {
		var err error
		path, err = db.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return db.Open(path)
}

func runTUI() error {
	closeLog, err := logging.Setup(logLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() {
		_ = database.Close()
	}()

	store := conversation.NewStore()
	if threads, err := database.LoadThreads(); err != nil {
		// A corrupt or unreadable table is not fatal, the app starts empty.
		log.Warn().Err(err).Msg("loading threads failed")
	} else {
		store.Replace(threads)
	}

	store.Subscribe(func(threads []models.Thread) {
		if err := database.ReplaceThreads(threads); err != nil {
			log.Warn().Err(err).Msg("persisting threads failed")
		}
	})

	settings := config.NewDBStore(database)
	if modelID != "" {
		if err := settings.SetModel(modelID); err != nil {
			return err
		}
	}
	client := openrouter.NewClient()
	sess := session.New(client, settings)
	orchestrator := conversation.NewOrchestrator(store, sess, settings)

	styles.InitTheme()
	p := ui.NewProgram(orchestrator, store, settings)
	_, err = p.Run()
	return err
}
