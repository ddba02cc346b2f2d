package ratings

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
)

// CSVSource reads ratings from a CSV file with a header row. The file is
// re-read on every Load.
type CSVSource struct {
	path string
	log  logger.Logger
}

// NewCSVSource creates a CSV source.
func NewCSVSource(path string, log logger.Logger) *CSVSource {
	if log == nil {
		log = logger.Nop()
	}
	return &CSVSource{path: path, log: log}
}

// Load implements Source.
func (s *CSVSource) Load(ctx context.Context, cols model.Columns) ([]model.Rating, error) {
	if err := cols.Validate(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open ratings csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	out, err := ReadCSV(ctx, f, cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	s.log.Debug(ctx, "ratings loaded", logger.Int("rows", len(out)), logger.String("path", s.path))
	return out, nil
}

// Close implements Source.
func (s *CSVSource) Close() error { return nil }

// ReadCSV parses ratings from r. Rows with an empty user, item or rating are
// skipped.
func ReadCSV(ctx context.Context, r io.Reader, cols model.Columns) ([]model.Rating, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for n, name := range header {
		index[strings.TrimSpace(name)] = n
	}
	pos := [3]int{}
	for n, name := range []string{cols.User, cols.Item, cols.Rating} {
		p, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		pos[n] = p
	}

	var out []model.Rating
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		u, i, v := strings.TrimSpace(rec[pos[0]]), strings.TrimSpace(rec[pos[1]]), strings.TrimSpace(rec[pos[2]])
		if u == "" || i == "" || v == "" {
			continue
		}
		val, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: rating %q", ErrBadRow, line, v)
		}
		out = append(out, model.Rating{User: u, Item: i, Value: val})
	}
	return out, nil
}
