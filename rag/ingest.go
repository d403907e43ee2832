package rag

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"nomadmatch/database"
	apperrors "nomadmatch/errors"

	"go.uber.org/zap"
)

// descriptionColumns are trimmed to a few sentences before embedding; long
// prose drowns out the structured attributes in the vector.
var descriptionColumns = map[string]bool{
	"description": true,
	"summary":     true,
	"notes":       true,
}

// IngestResult reports what an ingest run stored.
type IngestResult struct {
	Source    string `json:"filename"`
	Rows      int    `json:"rows"`
	Processed int    `json:"chunks_processed"`
	Skipped   int    `json:"skipped"`
}

// IngestCSV embeds every data row of a city CSV and upserts it into the
// index. The first row is the header; header names become metadata keys.
// Rows whose content is unchanged since a previous ingest are skipped.
func (s *Store) IngestCSV(ctx context.Context, r io.Reader, source string) (IngestResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return IngestResult{}, apperrors.WrapError(apperrors.ErrInvalidInput, "CSV is empty")
		}
		return IngestResult{}, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "failed to read CSV header: %v", err)
	}
	columns := normalizeHeader(header)

	result := IngestResult{Source: source}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "failed to read CSV row %d: %v", result.Rows+2, err)
		}
		if isBlankRecord(record) {
			continue
		}
		result.Rows++

		metadata := rowMetadata(columns, record)
		content := s.rowContent(columns, record)
		hash := hashContent(content)

		exists, err := s.index.CityDocumentExists(ctx, hash)
		if err != nil {
			return result, err
		}
		if exists {
			result.Skipped++
			continue
		}

		embedding, err := s.embedder.Embed(ctx, truncateRunes(content, s.opts.MaxEmbeddingChars))
		if err != nil {
			return result, apperrors.Collaborator("embedding model", err)
		}

		metadata["source"] = source
		if _, err := s.index.UpsertCityDocument(ctx, database.CityRecord{
			Content:     content,
			Metadata:    metadata,
			ContentHash: hash,
			Source:      source,
			Embedding:   embedding,
		}); err != nil {
			return result, err
		}
		result.Processed++
	}

	if result.Rows == 0 {
		return result, apperrors.WrapError(apperrors.ErrInvalidInput, "CSV has no data rows")
	}

	s.logger.Info("City CSV ingested",
		zap.String("source", source),
		zap.Int("rows", result.Rows),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// IngestFile ingests a CSV from disk.
func (s *Store) IngestFile(ctx context.Context, path string) (IngestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return s.IngestCSV(ctx, f, filepath.Base(path))
}

// SeedIfEmpty ingests path when the collection holds no documents and the
// file exists. It reports whether an ingest ran.
func (s *Store) SeedIfEmpty(ctx context.Context, path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	stats, err := s.index.GetCityStats(ctx)
	if err != nil {
		return false, err
	}
	if stats.TotalDocs > 0 {
		return false, nil
	}

	s.logger.Info("City collection is empty, seeding from CSV", zap.String("path", path))
	if _, err := s.IngestFile(ctx, path); err != nil {
		return false, err
	}
	return true, nil
}

func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		name = strings.Join(strings.Fields(name), "_")
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		columns[i] = name
	}
	return columns
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// rowMetadata maps header names to cell values. Numeric cells are stored as
// numbers, empty cells are omitted.
func rowMetadata(columns, record []string) map[string]any {
	meta := make(map[string]any, len(columns))
	for i, col := range columns {
		if i >= len(record) {
			break
		}
		value := strings.TrimSpace(record[i])
		if value == "" {
			continue
		}
		if n, err := strconv.ParseFloat(value, 64); err == nil && !descriptionColumns[col] {
			meta[col] = n
			continue
		}
		meta[col] = value
	}
	return meta
}

// rowContent renders a row as "column: value" lines, the text that gets
// embedded and later handed to the advice model.
func (s *Store) rowContent(columns, record []string) string {
	var b strings.Builder
	for i, col := range columns {
		if i >= len(record) {
			break
		}
		value := strings.TrimSpace(record[i])
		if value == "" {
			continue
		}
		if descriptionColumns[col] {
			value = firstSentences(s.splitter, value, s.opts.MaxDescriptionSentences)
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(col)
		b.WriteString(": ")
		b.WriteString(value)
	}
	return b.String()
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
