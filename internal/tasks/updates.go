package tasks

import (
	"fmt"

	"github.com/desertthunder/listx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or HTTP layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ReadSnapshot Phase = iota
	WriteBackup
	ConfirmImport
	ImportList
	ExportList
)

func (p Phase) String() string {
	switch p {
	case ReadSnapshot:
		return "read_snapshot"
	case WriteBackup:
		return "write_document"
	case ConfirmImport:
		return "confirm_import"
	case ImportList:
		return "import_list"
	case ExportList:
		return "export_list"
	default:
		return ""
	}
}

func readSnapshotUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReadSnapshot,
		Step:    1,
		Total:   1,
		Message: "Reading lists and items...",
	}
}

func writeDocumentUpdate(lists, items int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteBackup,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing backup (%d lists, %d items)...", lists, items),
	}
}

func confirmImportUpdate(p Preview) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ConfirmImport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Waiting for confirmation to import %d lists (%d items)...", p.Lists, p.Items),
		Data:    p,
	}
}

func importListUpdate(step, total int, l models.BackupList, merged bool) ProgressUpdate {
	verb := "Creating"
	if merged {
		verb = "Merging into"
	}
	return ProgressUpdate{
		Phase:   ImportList,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s (%d items)...", step, total, verb, l.ListName, len(l.Items)),
	}
}

func exportingListUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportList,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportList,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportList,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
