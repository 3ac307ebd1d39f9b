package biz

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/helpdesk-x/internal/model"
	"github.com/kart-io/helpdesk-x/pkg/errors"
)

// Flat text export format, one block per entry:
//
//	[KB_ID: KB...]
//	Use Case: ...
//	Required Info:
//	- operating system
//	- vpn client version
//	Questions:
//	- Which operating system are you on?
//	Solution Steps:
//	1. ...
//	2. ...
//	--------------------------------------------------
//
// The file opens with a fixed banner. Solution steps run until the entry
// separator line, so they may span multiple lines.
const (
	exportBanner    = "==================================================\nIT HELPDESK KNOWLEDGE BASE\n==================================================\n\n"
	entrySeparator  = "--------------------------------------------------"
	fieldKBID       = "[KB_ID: "
	fieldUseCase    = "Use Case: "
	fieldRequired   = "Required Info:"
	fieldQuestions  = "Questions:"
	fieldSolution   = "Solution Steps:"
	listItemPrefix  = "- "
	exportFileMode  = 0o644
	exportTempGlob  = ".kb-export-*"
)

// ExportFile owns the flat text rendition of the knowledge base. All
// methods hold an internal lock, callers get atomic whole-file semantics.
type ExportFile struct {
	mu   sync.Mutex
	path string

	// lastLocalWrite lets the change watcher tell our own writes apart from
	// external edits. Unix nanos.
	lastLocalWrite atomic.Int64
}

// LastLocalWrite returns when this process last wrote the file.
func (f *ExportFile) LastLocalWrite() time.Time {
	return time.Unix(0, f.lastLocalWrite.Load())
}

func (f *ExportFile) markLocalWrite() {
	f.lastLocalWrite.Store(time.Now().UnixNano())
}

// FileStatus reports the on-disk state of the export.
type FileStatus struct {
	Path       string    `json:"path"`
	Exists     bool      `json:"exists"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
	EntryCount int       `json:"entry_count"`
}

// NewExportFile creates an export handle for path. The file itself is
// created lazily on first write.
func NewExportFile(path string) *ExportFile {
	return &ExportFile{path: path}
}

// Path returns the export file location.
func (f *ExportFile) Path() string {
	return f.path
}

// Append adds one entry block to the end of the file, writing the banner
// first when the file does not exist yet.
func (f *ExportFile) Append(entry *model.KBEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, statErr := os.Stat(f.path)
	fresh := os.IsNotExist(statErr)

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, exportFileMode)
	if err != nil {
		return errors.ErrExportFile.WithCause(err)
	}
	defer file.Close()

	var b strings.Builder
	if fresh {
		b.WriteString(exportBanner)
	}
	renderEntry(&b, entry)

	if _, err := file.WriteString(b.String()); err != nil {
		return errors.ErrExportFile.WithCause(err)
	}
	f.markLocalWrite()
	return file.Sync()
}

// Remove rewrites the file without the entry for kbID. Removing an id that
// is not present leaves the file untouched and succeeds, retries after a
// partial failure must be idempotent.
func (f *ExportFile) Remove(kbID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.parseLocked()
	if err != nil {
		return err
	}

	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.KBID == kbID {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return nil
	}
	return f.writeAllLocked(kept)
}

// WriteAll atomically replaces the file with the given entries.
func (f *ExportFile) WriteAll(entries []*model.KBEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeAllLocked(entries)
}

func (f *ExportFile) writeAllLocked(entries []*model.KBEntry) error {
	var b strings.Builder
	b.WriteString(exportBanner)
	for _, e := range entries {
		renderEntry(&b, e)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, exportTempGlob)
	if err != nil {
		return errors.ErrExportFile.WithCause(err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.ErrExportFile.WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.ErrExportFile.WithCause(err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return errors.ErrExportFile.WithCause(err)
	}
	f.markLocalWrite()
	return nil
}

// Parse reads the file back into entries. A missing file parses as empty,
// the export is recovery ground truth and starts out blank.
func (f *ExportFile) Parse() ([]*model.KBEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parseLocked()
}

func (f *ExportFile) parseLocked() ([]*model.KBEntry, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.ErrExportFile.WithCause(err)
	}
	defer file.Close()

	var (
		entries []*model.KBEntry
		current *model.KBEntry
		section string
		steps   []string
	)

	flush := func() {
		if current == nil {
			return
		}
		current.SolutionSteps = strings.TrimRight(strings.Join(steps, "\n"), "\n")
		entries = append(entries, current)
		current, section, steps = nil, "", nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, fieldKBID) && strings.HasSuffix(line, "]"):
			flush()
			current = &model.KBEntry{
				KBID: strings.TrimSuffix(strings.TrimPrefix(line, fieldKBID), "]"),
			}
		case current == nil:
			// Banner or noise between entries.
		case line == entrySeparator:
			flush()
		case strings.HasPrefix(line, fieldUseCase):
			current.UseCase = strings.TrimPrefix(line, fieldUseCase)
			section = ""
		case line == fieldRequired:
			section = "required"
		case line == fieldQuestions:
			section = "questions"
		case line == fieldSolution:
			section = "solution"
		case section == "solution":
			steps = append(steps, line)
		case strings.HasPrefix(line, listItemPrefix):
			item := strings.TrimPrefix(line, listItemPrefix)
			switch section {
			case "required":
				current.RequiredInfo = append(current.RequiredInfo, item)
			case "questions":
				current.Questions = append(current.Questions, item)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.ErrExportFile.WithCause(err)
	}
	flush()

	return entries, nil
}

// Status stats the file and counts its entries.
func (f *ExportFile) Status() (*FileStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	status := &FileStatus{Path: f.path}
	info, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return status, nil
		}
		return nil, errors.ErrExportFile.WithCause(err)
	}

	status.Exists = true
	status.SizeBytes = info.Size()
	status.ModifiedAt = info.ModTime()

	entries, err := f.parseLocked()
	if err != nil {
		return nil, err
	}
	status.EntryCount = len(entries)
	return status, nil
}

func renderEntry(b *strings.Builder, entry *model.KBEntry) {
	fmt.Fprintf(b, "%s%s]\n", fieldKBID, entry.KBID)
	fmt.Fprintf(b, "%s%s\n", fieldUseCase, entry.UseCase)
	b.WriteString(fieldRequired + "\n")
	for _, item := range entry.RequiredInfo {
		b.WriteString(listItemPrefix + item + "\n")
	}
	if len(entry.Questions) > 0 {
		b.WriteString(fieldQuestions + "\n")
		for _, q := range entry.Questions {
			b.WriteString(listItemPrefix + q + "\n")
		}
	}
	b.WriteString(fieldSolution + "\n")
	if entry.SolutionSteps != "" {
		b.WriteString(strings.TrimRight(entry.SolutionSteps, "\n") + "\n")
	}
	b.WriteString(entrySeparator + "\n\n")
}
