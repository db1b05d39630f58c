package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"media-catalog/internal/catalog"
	"media-catalog/internal/duplicates"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/startup"
	"media-catalog/internal/storage"
	"media-catalog/internal/syncassets"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is an opened catalog.
type app struct {
	config *startup.Config
	repo   *catalog.Repository
	fs     filesystem.FS
}

// openApp reads the configuration and loads the catalog.
func openApp(envFile string) (*app, error) {
	config, err := startup.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if level, ok := logging.ParseLevel(config.LogLevel); ok {
		logging.SetLevel(level)
	}

	store := storage.New()
	if err := store.Initialize(config.DataDir, config.SeparatorRune(), config.TablesFolderName, config.BlobsFolderName); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	repo, err := catalog.NewRepository(store, config.RepositoryOptions())
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	return &app{
		config: config,
		repo:   repo,
		fs:     filesystem.NewOS(filesystem.DefaultRetryConfig()),
	}, nil
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Media catalog maintenance tool",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")

	open := func() (*app, error) { return openApp(envFile) }

	root.AddCommand(
		newCatalogCmd(open),
		newDuplicatesCmd(open),
		newBackupCmd(open),
		newSyncFoldersCmd(open),
		newDefinitionsCmd(open),
		newRecentCmd(open),
		newVersionCmd(),
	)
	return root
}

type opener func() (*app, error)

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newCatalogCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Run one catalog pass over the configured roots",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			if len(a.config.Roots) == 0 {
				return fmt.Errorf("no roots configured (set CATALOG_ROOTS or roots in the config file)")
			}

			var frames media.FrameExtractor
			if a.config.AnalyseVideos {
				frames = media.NewFFmpegExtractor(a.config.FFmpegPath, a.config.FFprobePath)
			}
			builder := media.NewAssetBuilder(a.fs, frames, a.config.BuilderOptions(), nil)
			idx := indexer.New(a.repo, a.fs, builder, a.config.IndexerOptions())

			ctx, cancel := signalContext(cmd)
			defer cancel()

			out := cmd.OutOrStdout()
			progress := newProgressPrinter(out)

			events := make(chan indexer.Event)
			errc := make(chan error, 1)
			go func() {
				errc <- idx.CatalogAssets(ctx, events)
				close(events)
			}()
			for e := range events {
				progress.handle(e)
			}
			progress.finish()

			if err := <-errc; err != nil {
				return err
			}
			fmt.Fprintf(out, "%d assets in %d folders\n", a.repo.GetAssetsCounter(), len(a.repo.GetFolders()))
			return nil
		},
	}
}

// progressPrinter shows catalog events, as one rewritten line on a
// terminal and one line per change otherwise.
type progressPrinter struct {
	out   io.Writer
	live  bool
	width int

	folders, added, updated, deleted int
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	p := &progressPrinter{out: out, width: 80}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.live = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			p.width = w
		}
	}
	return p
}

func (p *progressPrinter) handle(e indexer.Event) {
	switch e.Reason {
	case indexer.FolderInspected:
		p.folders++
	case indexer.AssetAdded:
		p.added++
	case indexer.AssetUpdated:
		p.updated++
	case indexer.AssetDeleted:
		p.deleted++
	}

	if !p.live {
		switch e.Reason {
		case indexer.FolderInspectionStarted, indexer.FolderInspected:
			return
		}
		fmt.Fprintf(p.out, "%-16s %s\n", e.Reason, e.Message)
		return
	}

	line := fmt.Sprintf("%d folders, %d added, %d updated, %d deleted  %s",
		p.folders, p.added, p.updated, p.deleted, e.Message)
	if r := []rune(line); len(r) > p.width-1 {
		line = string(r[:p.width-1])
	}
	fmt.Fprintf(p.out, "\r%-*s", p.width-1, line)
}

func (p *progressPrinter) finish() {
	if p.live {
		fmt.Fprintln(p.out)
	}
}

func newDuplicatesCmd(open opener) *cobra.Command {
	var similar int

	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "List duplicated assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			finder := duplicates.NewFinder(a.repo)

			var groups [][]catalog.Asset
			if cmd.Flags().Changed("similar") {
				if similar < 0 {
					return fmt.Errorf("--similar must not be negative")
				}
				groups = finder.GetSimilarAssets(similar)
			} else {
				groups = finder.GetDuplicatedAssets()
			}

			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintln(out, "No duplicates found.")
				return nil
			}

			folders := make(map[string]string)
			for _, f := range a.repo.GetFolders() {
				folders[f.ID] = f.Path
			}
			for i, group := range groups {
				fmt.Fprintf(out, "Set %d (%d assets)\n", i+1, len(group))
				for _, asset := range group {
					fmt.Fprintf(out, "  %s\n", filepath.Join(folders[asset.FolderID], asset.FileName))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&similar, "similar", 0, "group visually similar assets within this perceptual hash distance")
	return cmd
}

func newBackupCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write today's backup and prune old backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			existed := a.repo.BackupExists()
			if _, err := a.repo.WriteBackup(); err != nil {
				return fmt.Errorf("writing backup: %w", err)
			}
			if existed {
				fmt.Fprintln(out, "Backup updated.")
			} else {
				fmt.Fprintln(out, "Backup created.")
			}

			deleted, err := a.repo.DeleteOldBackups(a.config.BackupsToKeep)
			if err != nil {
				return fmt.Errorf("pruning backups: %w", err)
			}
			for _, name := range deleted {
				fmt.Fprintf(out, "Deleted old backup %s\n", name)
			}
			return nil
		},
	}
}

func newSyncFoldersCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-folders",
		Short: "Apply the stored sync definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defs := a.repo.GetSyncAssetsConfiguration()
			out := cmd.OutOrStdout()
			if len(defs) == 0 {
				fmt.Fprintln(out, "No sync definitions.")
				return nil
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			results, err := syncassets.New(a.fs).Execute(ctx, defs)
			for _, r := range results {
				fmt.Fprintf(out, "%s -> %s: %d copied, %d deleted\n",
					r.Definition.SourceDirectory, r.Definition.DestinationDirectory, len(r.Copied), len(r.Deleted))
				if r.Message != "" {
					fmt.Fprintf(out, "  %s\n", r.Message)
				}
				for _, e := range r.Errors {
					fmt.Fprintf(out, "  error: %s\n", e)
				}
			}
			return err
		},
	}
}

func newDefinitionsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definitions",
		Short: "Manage sync definitions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List sync definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			defs := a.repo.GetSyncAssetsConfiguration()
			if len(defs) == 0 {
				fmt.Fprintln(out, "No sync definitions.")
				return nil
			}
			for i, d := range defs {
				var opts []string
				if d.IncludeSubFolders {
					opts = append(opts, "sub-folders")
				}
				if d.DeleteAssetsNotInSource {
					opts = append(opts, "mirror deletions")
				}
				fmt.Fprintf(out, "%d. %s -> %s", i+1, d.SourceDirectory, d.DestinationDirectory)
				if len(opts) > 0 {
					fmt.Fprintf(out, " (%s)", strings.Join(opts, ", "))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	var def catalog.SyncAssetsDirectoriesDefinition
	add := &cobra.Command{
		Use:   "add <source> <destination>",
		Short: "Add a sync definition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			def.SourceDirectory, def.DestinationDirectory = args[0], args[1]
			defs := append(a.repo.GetSyncAssetsConfiguration(), def)
			if err := a.repo.SaveSyncAssetsConfiguration(defs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s -> %s\n", args[0], args[1])
			return nil
		},
	}
	add.Flags().BoolVar(&def.IncludeSubFolders, "include-sub-folders", false, "also sync sub-folders")
	add.Flags().BoolVar(&def.DeleteAssetsNotInSource, "delete-missing", false, "delete destination files missing from the source")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every sync definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			if err := a.repo.SaveSyncAssetsConfiguration(nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sync definitions cleared.")
			return nil
		},
	}

	cmd.AddCommand(list, add, clearCmd)
	return cmd
}

func newRecentCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Manage recent target paths",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recent target paths, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			for _, p := range a.repo.GetRecentTargetPaths() {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <path>",
		Short: "Move a path to the front of the recent target paths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			return a.repo.UpdateTargetPathToRecent(args[0])
		},
	}

	cmd.AddCommand(list, add)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			info := startup.GetBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "catalogctl %s (commit %s, built %s, %s %s/%s)\n",
				info.Version, info.Commit, info.BuildTime, info.GoVersion, info.OS, info.Arch)
		},
	}
}
