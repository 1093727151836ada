// package formatter provides functions to export list data to various formats (CSV, Markdown, plain text, YAML, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/desertthunder/listx/internal/models"
	"github.com/desertthunder/listx/internal/shared"
)

// Supported export formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
	FormatYAML     = "yaml"
)

// Formats lists every supported export format.
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText, FormatYAML}

// ParseFormat normalizes a format name. "md" and "text" are accepted as aliases.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case FormatJSON, FormatCSV, FormatMarkdown, FormatText, FormatYAML:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "text":
		return FormatText, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q (want one of %s)", shared.ErrInvalidFlag, s, strings.Join(Formats, ", "))
	}
}

const dateLayout = "2006-01-02"

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// BaseName returns a filesystem-safe name for a list: its id followed by a slug of its name.
func BaseName(list models.List) string {
	slug := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(list.Name), "-"), "-")
	if slug == "" {
		return strconv.FormatInt(list.ID, 10)
	}
	return fmt.Sprintf("%d-%s", list.ID, slug)
}

// ExportToCSV converts a list to CSV format with columns: ID, Title, Notes, Done, Created, Director, Year
func ExportToCSV(export *models.ListItems) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Notes", "Done", "Created", "Director", "Year"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range export.Items {
		var director, year string
		if movie, ok := models.ParseExtras(export.List.Category, item.CustomFields).(models.MovieExtras); ok {
			director, year = movie.Director, movie.ReleaseYear
		}

		record := []string{
			strconv.FormatInt(item.ID, 10),
			item.Title,
			item.NotesOrEmpty(),
			strconv.FormatBool(item.Done),
			item.CreatedAt.Format(time.RFC3339),
			director,
			year,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a list to a Markdown checklist
func ExportToMarkdown(export *models.ListItems) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", export.List.Name))
	buf.WriteString(fmt.Sprintf("**Category**: %s\n", export.List.Category))
	buf.WriteString(fmt.Sprintf("**Created**: %s\n", export.List.CreatedAt.Format(dateLayout)))
	buf.WriteString(fmt.Sprintf("**Items**: %d (%d done)\n\n", len(export.Items), doneCount(export.Items)))

	buf.WriteString("## Items\n\n")
	for _, item := range export.Items {
		buf.WriteString(fmt.Sprintf("- %s %s", shared.DoneMark(item.Done), item.Title))
		if summary := models.ParseExtras(export.List.Category, item.CustomFields).Summary(); summary != "" {
			buf.WriteString(fmt.Sprintf(" _(%s)_", summary))
		}
		buf.WriteString("\n")
		if notes := item.NotesOrEmpty(); notes != "" {
			buf.WriteString(fmt.Sprintf("  > %s\n", strings.ReplaceAll(notes, "\n", "\n  > ")))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a list to plain text format
func ExportToText(export *models.ListItems) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("List: %s\n", export.List.Name))
	buf.WriteString(fmt.Sprintf("Category: %s\n", export.List.Category))
	buf.WriteString(fmt.Sprintf("Items: %d\n\n", len(export.Items)))

	for i, item := range export.Items {
		buf.WriteString(fmt.Sprintf("%d. %s %s", i+1, shared.DoneMark(item.Done), item.Title))
		if summary := models.ParseExtras(export.List.Category, item.CustomFields).Summary(); summary != "" {
			buf.WriteString(fmt.Sprintf(" - %s", summary))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

type yamlItem struct {
	ID          int64  `yaml:"id"`
	Title       string `yaml:"title"`
	Notes       string `yaml:"notes,omitempty"`
	Done        bool   `yaml:"done"`
	Created     string `yaml:"created"`
	Director    string `yaml:"director,omitempty"`
	ReleaseYear string `yaml:"release_year,omitempty"`
}

type yamlList struct {
	ID       int64      `yaml:"id"`
	Name     string     `yaml:"name"`
	Category string     `yaml:"category"`
	Created  string     `yaml:"created"`
	Items    []yamlItem `yaml:"items"`
}

// ExportToYAML converts a list to YAML with movie fields decoded inline
func ExportToYAML(export *models.ListItems) ([]byte, error) {
	doc := yamlList{
		ID:       export.List.ID,
		Name:     export.List.Name,
		Category: export.List.Category,
		Created:  export.List.CreatedAt.Format(time.RFC3339),
		Items:    make([]yamlItem, 0, len(export.Items)),
	}
	for _, item := range export.Items {
		yi := yamlItem{
			ID:      item.ID,
			Title:   item.Title,
			Notes:   item.NotesOrEmpty(),
			Done:    item.Done,
			Created: item.CreatedAt.Format(time.RFC3339),
		}
		if movie, ok := models.ParseExtras(export.List.Category, item.CustomFields).(models.MovieExtras); ok {
			yi.Director, yi.ReleaseYear = movie.Director, movie.ReleaseYear
		}
		doc.Items = append(doc.Items, yi)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToJSON converts a list to the same record shape the backup document uses
func ExportToJSON(export *models.ListItems) ([]byte, error) {
	return shared.MarshalJSON(models.NewBackupList(export.List, export.Items), true)
}

// ToMetadataJSON generates a JSON representation of list metadata (without items)
func ToMetadataJSON(list models.List) ([]byte, error) {
	return shared.MarshalJSON(list, true)
}

func doneCount(items []models.Item) int {
	n := 0
	for _, item := range items {
		if item.Done {
			n++
		}
	}
	return n
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	ItemsFile    string
	MetadataFile string
}

// WriteCSVExport exports a list to CSV format with accompanying metadata JSON file.
//
// Defaults to [BaseName] as the base filename & creates {base}_items.csv and {base}_metadata.json
func WriteCSVExport(export *models.ListItems, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = BaseName(export.List)
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	itemsFile := baseFilepath + "_items.csv"
	if err := os.WriteFile(itemsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export.List)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		ItemsFile:    itemsFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
}

// WriteMarkdownExport exports a list to Markdown format in a dedicated directory.
//
// Directory name defaults to [BaseName]. Creates {dir}/README.md
func WriteMarkdownExport(export *models.ListItems, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = BaseName(export.List)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return &MarkdownExportResult{Directory: outputDir, Files: []string{mdFile}}, nil
}

// WriteTextExport exports a list to plain text format.
//
// Defaults to {base}_items.txt as the filename.
func WriteTextExport(export *models.ListItems, path string) (string, error) {
	if path == "" {
		path = BaseName(export.List) + "_items.txt"
	}
	return writeExport(export, path, ExportToText, "text")
}

// WriteYAMLExport exports a list to YAML. Defaults to {base}.yaml as the filename.
func WriteYAMLExport(export *models.ListItems, path string) (string, error) {
	if path == "" {
		path = BaseName(export.List) + ".yaml"
	}
	return writeExport(export, path, ExportToYAML, "YAML")
}

// WriteJSONExport exports a list to JSON. Defaults to {base}.json as the filename.
func WriteJSONExport(export *models.ListItems, path string) (string, error) {
	if path == "" {
		path = BaseName(export.List) + ".json"
	}
	return writeExport(export, path, ExportToJSON, "JSON")
}

func writeExport(export *models.ListItems, path string, render func(*models.ListItems) ([]byte, error), kind string) (string, error) {
	data, err := render(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", kind, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", kind, err)
	}

	return path, nil
}
