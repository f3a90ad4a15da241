// inspect is a developer diagnostic that opens a message box database and
// dumps the media dedup and chat list index tables. It resolves nothing
// from history storage, so chat-list message rows print as placeholders.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"messagebox/pkg/chatlist"
	"messagebox/pkg/config"
	"messagebox/pkg/keys"
	"messagebox/pkg/logger"
	"messagebox/pkg/media"
	"messagebox/pkg/models"
	"messagebox/pkg/store"
)

// offline stubs: the inspector has no history storage, no side tables and
// must never mutate metadata.

type nopMessages struct{}

func (nopMessages) TopMessage(int64) (models.Message, bool) { return models.Message{}, false }

func (nopMessages) GetMessage(models.MessageIndex) (models.Message, bool) {
	return models.Message{}, false
}

func (nopMessages) UnembedMedia(models.MessageIndex, models.MediaId) (models.Media, bool) {
	return models.Media{}, false
}
func (nopMessages) UpdateEmbeddedMedia(models.MessageIndex, models.MediaId, models.Media) {}

type nopIndexTable struct{}

func (nopIndexTable) Get(int64) (models.MessageIndex, bool) { return models.MessageIndex{}, false }
func (nopIndexTable) Set(int64, models.MessageIndex)        {}
func (nopIndexTable) Remove(int64)                          {}

type nopStates struct{}

func (nopStates) Get(int64) (models.InterfaceState, bool) { return models.InterfaceState{}, false }

type nopReadStates struct{}

func (nopReadStates) Get(int64) (models.CombinedReadState, bool) {
	return models.CombinedReadState{}, false
}

type initializedSeed struct{}

func (initializedSeed) IsInitializedChatList() bool { return true }
func (initializedSeed) SetInitializedChatList()     {}
func (initializedSeed) InitialHoles() []models.Hole { return nil }

func formatIndex(index models.MessageIndex) string {
	return fmt.Sprintf("peer=%d ns=%d id=%d ts=%d",
		index.Id.PeerId, index.Id.Namespace, index.Id.Id, index.Timestamp)
}

func dump(dbPath string) error {
	kv, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer kv.Close()

	mediaTable := media.NewTable(kv, nopMessages{})
	rows, err := mediaTable.DebugList()
	if err != nil {
		return err
	}
	fmt.Printf("media table (%d rows):\n", len(rows))
	for _, r := range rows {
		switch r.Row.Kind {
		case keys.MediaRowDirect:
			fmt.Printf("  ns=%d id=%d direct payload=%dB refcount=%d\n",
				r.Id.Namespace, r.Id.Id, len(r.Row.Media.Data), r.Row.RefCount)
		case keys.MediaRowReference:
			fmt.Printf("  ns=%d id=%d reference -> %s\n",
				r.Id.Namespace, r.Id.Id, formatIndex(r.Row.Reference))
		}
	}

	listTable := chatlist.NewTable(kv, nopIndexTable{}, nopMessages{}, nopStates{}, nopReadStates{}, initializedSeed{})
	entries, err := listTable.DebugList()
	if err != nil {
		return err
	}
	fmt.Printf("chat list table (%d rows):\n", len(entries))
	for _, e := range entries {
		switch e.Kind {
		case chatlist.EntryHole:
			fmt.Printf("  hole    %s\n", formatIndex(e.Index))
		default:
			fmt.Printf("  message %s\n", formatIndex(e.Index))
		}
	}
	return nil
}

func main() {
	var dbPath string
	var cfgPath string

	root := &cobra.Command{
		Use:   "inspect",
		Short: "Dump the media dedup and chat list index tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load(".env")
			level := os.Getenv("MESSAGEBOX_LOG_LEVEL")
			if cfgPath != "" {
				cfg, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				if dbPath == "" {
					dbPath = cfg.Storage.DBPath
				}
				if cfg.Logging.Level != "" {
					level = cfg.Logging.Level
				}
			}
			if dbPath == "" {
				return fmt.Errorf("--db or a config with storage.db_path is required")
			}
			logger.InitWithLevel(level)
			defer logger.Sync()
			return dump(dbPath)
		},
	}
	root.Flags().StringVar(&dbPath, "db", "", "path to the database directory")
	root.Flags().StringVar(&cfgPath, "config", "", "path to a yaml config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
