package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Andrandra1na/AMER-SMA/clients"
	"github.com/Andrandra1na/AMER-SMA/knowledge"
	"github.com/Andrandra1na/AMER-SMA/watch"
)

var profilesDir string

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage weight profiles",
}

var profilesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load every profile YAML file into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		dir := profilesDir
		if dir == "" {
			dir = conf.Profiles.Dir
		}
		names, err := watch.SyncDir(cmd.Context(), dir, st, log)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var (
	kbSource  string
	kbSize    int
	kbOverlap int
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the knowledge base used for grounded relevance",
}

var knowledgeIndexCmd = &cobra.Command{
	Use:   "index <file>",
	Short: "Chunk, embed and store a text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		emb, _ := backends(clients.NewHTTP(conf.JobTimeout()))
		source := kbSource
		if source == "" {
			source = filepath.Base(args[0])
		}
		ix := &knowledge.Indexer{Embedder: emb, Store: st, Size: kbSize, Overlap: kbOverlap, Log: log}
		n, err := ix.Index(cmd.Context(), source, string(data))
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d chunks\n", source, n)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		log.WithField("path", conf.Store.Path).Info("schema up to date")
		return st.Close()
	},
}

func init() {
	profilesSyncCmd.Flags().StringVar(&profilesDir, "dir", "", "profiles directory (default profiles.dir)")
	profilesCmd.AddCommand(profilesSyncCmd)

	knowledgeIndexCmd.Flags().StringVar(&kbSource, "source", "", "source name (default file name)")
	knowledgeIndexCmd.Flags().IntVar(&kbSize, "chunk-size", knowledge.DefaultChunkSize, "chunk size in characters")
	knowledgeIndexCmd.Flags().IntVar(&kbOverlap, "chunk-overlap", knowledge.DefaultChunkOverlap, "overlap between chunks")
	knowledgeCmd.AddCommand(knowledgeIndexCmd)
}
