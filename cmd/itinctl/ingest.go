package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pkordes/itinerary/internal/app"
	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/service"
)

func ingestCmd() *cobra.Command {
	var (
		user, file, source, subject string
		skipPast                    bool
	)
	cmd := &cobra.Command{
		Use:     "ingest",
		Short:   "extract reservations from a text document",
		Long:    `ingest sends the text of a booking confirmation through extraction and stores the reservations it finds for the given user. Use --file - to read standard input.`,
		Example: `itinctl ingest --user 6f1c2a9e-4b3d-4c5e-9f70-1a2b3c4d5e6f --file ticket.txt --source pdf_upload`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := uuid.Parse(user)
			if err != nil {
				return fmt.Errorf("--user: %w", err)
			}
			src, err := parseSource(source)
			if err != nil {
				return err
			}
			text, err := readDocument(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if subject == "" && file != "-" {
				subject = filepath.Base(file)
			}

			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			a, err := app.New(e.cfg, e.pool, e.log)
			if err != nil {
				return err
			}

			res, err := a.Ingest.Ingest(cmd.Context(), owner, service.Document{
				Subject:  subject,
				Text:     text,
				Source:   src,
				SkipPast: skipPast,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "owner user id")
	cmd.Flags().StringVar(&file, "file", "", "text file to ingest, or - for stdin")
	cmd.Flags().StringVar(&source, "source", string(domain.SourcePDFUpload), "source recorded on new reservations: manual, pdf_upload or other_automatic")
	cmd.Flags().StringVar(&subject, "subject", "", "document subject; defaults to the file name")
	cmd.Flags().BoolVar(&skipPast, "skip-past", false, "drop reservations that start before today")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func parseSource(s string) (domain.Source, error) {
	switch src := domain.Source(s); src {
	case domain.SourceManual, domain.SourcePDFUpload, domain.SourceOtherAutomatic:
		return src, nil
	}
	return "", fmt.Errorf("--source: unsupported source %q", s)
}

// readDocument reads the document text. PDFs must be converted to text
// first; extraction works on text only.
func readDocument(path string, stdin io.Reader) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "", fmt.Errorf("%s: convert the PDF to text first (for example with pdftotext)", path)
	}
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", fmt.Errorf("read document: %s is empty", path)
	}
	return string(b), nil
}
