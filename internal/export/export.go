// Package export downloads analysis reports as PDF and stores them.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/productlogik/plk/internal/logging"
	"go.uber.org/zap"
)

// ErrNotPDF is returned when exported bytes are not a readable PDF.
var ErrNotPDF = errors.New("export is not a valid PDF document")

// minPDFSize is below any document the reader can parse.
const minPDFSize = 100

// Validate checks that data is a PDF and returns its page count.
func Validate(data []byte) (pages int, err error) {
	if len(data) < minPDFSize || !bytes.HasPrefix(data, []byte("%PDF-")) {
		return 0, ErrNotPDF
	}

	defer func() {
		if r := recover(); r != nil {
			pages = 0
			err = fmt.Errorf("%w: %v", ErrNotPDF, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	n := r.NumPage()
	if n == 0 {
		return 0, fmt.Errorf("%w: no pages", ErrNotPDF)
	}
	return n, nil
}

// DefaultFilename names the report of an uploaded file.
func DefaultFilename(uploadFilename string) string {
	base := filepath.Base(uploadFilename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "report"
	}
	return base + "-analysis.pdf"
}

// Sink stores an exported report.
type Sink interface {
	// Write stores data under name and returns where it ended up.
	Write(ctx context.Context, name string, data []byte) (string, error)
}

// Downloader fetches report bytes. *api.Client satisfies it.
type Downloader interface {
	ExportAnalysis(ctx context.Context, uploadID string) ([]byte, error)
}

// Result describes a stored report.
type Result struct {
	Location string
	Pages    int
	Bytes    int
}

// Exporter downloads, validates and stores reports.
type Exporter struct {
	downloader Downloader
	sink       Sink
	logger     *logging.Logger
}

// NewExporter creates an Exporter writing to sink.
func NewExporter(d Downloader, sink Sink, logger *logging.Logger) *Exporter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Exporter{downloader: d, sink: sink, logger: logger}
}

// Export stores the report of uploadID under name. Nothing is written when
// the download is not a valid PDF.
func (e *Exporter) Export(ctx context.Context, uploadID, name string) (*Result, error) {
	ctx = logging.WithUploadID(logging.WithOperation(ctx, "export"), uploadID)

	data, err := e.downloader.ExportAnalysis(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	pages, err := Validate(data)
	if err != nil {
		e.logger.Warn(ctx, "rejected export", zap.Int("bytes", len(data)), zap.Error(err))
		return nil, err
	}
	loc, err := e.sink.Write(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store export: %w", err)
	}

	e.logger.Info(ctx, "export stored",
		zap.String("location", loc),
		zap.Int("pages", pages),
		zap.Int("bytes", len(data)))
	return &Result{Location: loc, Pages: pages, Bytes: len(data)}, nil
}
