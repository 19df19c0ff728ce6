package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"qualityportal/internal/util"
	"qualityportal/pkg/domain"
	"qualityportal/services/portal/internal/upload"
)

var (
	importChapter    int
	importSubchapter string
	importUser       string
)

var importCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Upload local files into a chapter or subchapter",
	Long: `import runs the same validation and upload steps as the web dropzones.
Files with an unsupported type or over the size limit are reported and
skipped; the rest are stored one at a time.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runImport(cmd, args))
	},
}

func init() {
	importCmd.Flags().IntVar(&importChapter, "chapter", 0, "chapter number (1-21)")
	importCmd.Flags().StringVar(&importSubchapter, "subchapter", "", "subchapter code, e.g. 3.2")
	importCmd.Flags().StringVar(&importUser, "as", "cli", "user id recorded as uploader")
	_ = importCmd.MarkFlagRequired("chapter")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	scope, err := a.Catalog.Scope(importChapter, importSubchapter)
	if err != nil {
		return err
	}
	files, err := localFiles(args)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Validando archivos..."),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	report := func(p upload.Progress) {
		bar.Describe(p.Message)
		_ = bar.Set(int(p.Percent))
	}
	batch := a.Uploads.Run(ctx, util.NewID(), scope, domain.User{ID: importUser}, files, report)
	_ = bar.Finish()

	out := cmd.OutOrStdout()
	for _, r := range batch.Results {
		if r.Success {
			fmt.Fprintf(out, "  ok    %s -> %s\n", r.FileName, r.Document.ID)
			continue
		}
		fmt.Fprintf(out, "  fail  %s: %s\n", r.FileName, r.Error)
	}
	fmt.Fprintf(out, "%d uploaded, %d failed\n", batch.Uploaded, batch.Failed)
	if batch.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", batch.Failed, len(files))
	}
	return nil
}

// localFiles describes paths as upload files. Directories are rejected.
func localFiles(paths []string) ([]domain.UploadFile, error) {
	files := make([]domain.UploadFile, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", path)
		}
		files = append(files, domain.UploadFile{
			Name: filepath.Base(path),
			Size: info.Size(),
			Open: func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}
	return files, nil
}
