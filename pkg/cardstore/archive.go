package cardstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/mholt/archiver/v3"
	"github.com/sirupsen/logrus"

	"github.com/calvinalkan/cardstore/pkg/fs"
)

// Archive layout: a manifest at the root plus a flat directory of payloads
// named "<attachment id>_<original basename>".
const (
	manifestName       = "folder.json"
	archiveFilesDir    = "files"
	manifestVersion    = 1
	defaultImportTitle = "New Folder"

	// maxArchiveDepth bounds manifest nesting on import.
	maxArchiveDepth = 128
)

type manifest struct {
	Version int `json:"version"`
	manifestNode
}

type manifestNode struct {
	Folder      manifestFolder       `json:"folder"`
	Attachments []manifestAttachment `json:"attachments"`
	Subfolders  []manifestNode       `json:"subfolders"`
}

type manifestFolder struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Kind        Kind       `json:"kind"`
	LabelColor  string     `json:"label_color,omitempty"`
	ColumnID    int64      `json:"column_id"`
	ParentID    *int64     `json:"parent_id"`
	Attributes  Attributes `json:"attributes"`
}

type manifestAttachment struct {
	ID           int64  `json:"id"`
	FileName     string `json:"file_name"`
	RemoteURL    string `json:"remote_url,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	SizeBytes    int64  `json:"size_bytes"`
	HasLocalFile bool   `json:"has_local_file"`

	// ExportedFile is the payload's name under files/, empty when the
	// payload was not exported.
	ExportedFile string `json:"exported_file,omitempty"`

	localPath string
}

// Export writes the folder card, its attachments and all descendant folder
// cards to a zip archive at destPath. The archive appears at destPath only
// once complete. Attachments whose local file is missing are exported as
// metadata only and counted in [ExportResult.MissingFiles].
func (s *Store) Export(ctx context.Context, folderID int64, destPath string) (ExportResult, error) {
	const op = "export"

	var res ExportResult

	q, err := s.reader()
	if err != nil {
		return res, wrap(op, "card", folderID, err)
	}

	root, err := gatherFolder(ctx, q, folderID, 0)
	if err != nil {
		return res, wrap(op, "card", folderID, err)
	}

	staging, err := s.fs.MkdirTemp(s.tempDir, "cardstore-export-*")
	if err != nil {
		return res, wrap(op, "card", folderID, ioFailure(fmt.Errorf("create staging dir: %w", err)))
	}

	defer func() { _ = s.fs.RemoveAll(staging) }()

	err = s.fs.MkdirAll(filepath.Join(staging, archiveFilesDir), dirPerms)
	if err != nil {
		return res, wrap(op, "card", folderID, ioFailure(err))
	}

	err = s.stagePayloads(ctx, staging, &root, &res)
	if err != nil {
		return ExportResult{}, wrap(op, "card", folderID, err)
	}

	data, err := json.MarshalIndent(manifest{Version: manifestVersion, manifestNode: root}, "", "  ")
	if err != nil {
		return ExportResult{}, wrap(op, "card", folderID, fmt.Errorf("encode manifest: %w", err))
	}

	err = s.fs.WriteFileAtomic(filepath.Join(staging, manifestName), bytes.NewReader(data))
	if err != nil {
		return ExportResult{}, wrap(op, "card", folderID, ioFailure(fmt.Errorf("write manifest: %w", err)))
	}

	err = s.publishZip(staging, destPath)
	if err != nil {
		return ExportResult{}, wrap(op, "card", folderID, err)
	}

	return res, nil
}

// gatherFolder collects the manifest node for a card and its folder-kind
// descendants.
func gatherFolder(ctx context.Context, q querier, id int64, depth int) (manifestNode, error) {
	if depth >= maxTreeDepth {
		return manifestNode{}, fmt.Errorf("%w: tree deeper than %d levels", ErrStorage, maxTreeDepth)
	}

	card, err := getCard(ctx, q, id)
	if err != nil {
		return manifestNode{}, err
	}

	node := manifestNode{
		Folder: manifestFolder{
			ID:          card.ID,
			Title:       card.Title,
			Description: card.Description,
			Kind:        card.Kind,
			LabelColor:  card.LabelColor,
			ColumnID:    card.ColumnID,
			ParentID:    card.ParentID,
			Attributes:  card.Attributes,
		},
		Attachments: []manifestAttachment{},
		Subfolders:  []manifestNode{},
	}

	attachments, err := listAttachments(ctx, q, id)
	if err != nil {
		return manifestNode{}, err
	}

	for _, a := range attachments {
		node.Attachments = append(node.Attachments, manifestAttachment{
			ID:           a.ID,
			FileName:     a.FileName,
			RemoteURL:    a.RemoteURL,
			MimeType:     a.MimeType,
			SizeBytes:    a.SizeBytes,
			HasLocalFile: a.LocalPath != "",
			localPath:    a.LocalPath,
		})
	}

	kids, err := children(ctx, q, id)
	if err != nil {
		return manifestNode{}, err
	}

	for _, kid := range kids {
		if kid.Kind != KindFolder {
			continue
		}

		sub, err := gatherFolder(ctx, q, kid.ID, depth+1)
		if err != nil {
			return manifestNode{}, err
		}

		node.Subfolders = append(node.Subfolders, sub)
	}

	return node, nil
}

// stagePayloads copies every present attachment file of the tree into
// staging/files and records its exported name in the manifest.
func (s *Store) stagePayloads(ctx context.Context, staging string, node *manifestNode, res *ExportResult) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	res.Folders++

	for i := range node.Attachments {
		entry := &node.Attachments[i]
		res.Attachments++

		src := entry.localPath
		if src == "" {
			continue
		}

		exists, err := s.fs.Exists(src)
		if err != nil {
			return ioFailure(fmt.Errorf("stat %s: %w", src, err))
		}

		if !exists {
			res.MissingFiles++

			continue
		}

		name := fmt.Sprintf("%d_%s", entry.ID, filepath.Base(src))

		_, err = fs.CopyFile(s.fs, src, filepath.Join(staging, archiveFilesDir, name))
		if err != nil {
			return ioFailure(fmt.Errorf("stage %s: %w", src, err))
		}

		entry.ExportedFile = name
	}

	for i := range node.Subfolders {
		err = s.stagePayloads(ctx, staging, &node.Subfolders[i], res)
		if err != nil {
			return err
		}
	}

	return nil
}

// publishZip streams the staging directory into a zip written atomically
// to destPath.
func (s *Store) publishZip(staging, destPath string) error {
	names := []string{manifestName}

	err := s.fs.MkdirAll(filepath.Dir(destPath), dirPerms)
	if err != nil {
		return ioFailure(fmt.Errorf("create archive directory: %w", err))
	}

	entries, err := s.fs.ReadDir(filepath.Join(staging, archiveFilesDir))
	if err != nil {
		return ioFailure(fmt.Errorf("read staging dir: %w", err))
	}

	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, archiveFilesDir+"/"+entry.Name())
		}
	}

	pr, pw := io.Pipe()
	done := make(chan struct{})

	go func() {
		defer close(done)

		pw.CloseWithError(s.writeZip(pw, staging, names))
	}()

	err = s.fs.WriteFileAtomic(destPath, pr)
	_ = pr.CloseWithError(io.ErrClosedPipe)

	<-done

	if err != nil {
		return ioFailure(fmt.Errorf("write archive %s: %w", destPath, err))
	}

	return nil
}

func (s *Store) writeZip(w io.Writer, staging string, names []string) error {
	z := archiver.NewZip()

	err := z.Create(w)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}

	for _, name := range names {
		err = s.addZipEntry(z, filepath.Join(staging, filepath.FromSlash(name)), name)
		if err != nil {
			_ = z.Close()

			return err
		}
	}

	err = z.Close()
	if err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}

	return nil
}

func (s *Store) addZipEntry(z *archiver.Zip, src, name string) error {
	f, err := s.fs.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	err = z.Write(archiver.File{
		FileInfo: archiver.FileInfo{
			FileInfo:   info,
			CustomName: name,
		},
		ReadCloser: f,
	})
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}

	return nil
}

// Import recreates an exported folder tree as a new subfolder of parentID.
// New ids are assigned and every folder lands in the parent's column. The
// whole tree is created in one transaction. Attachments whose payload is
// absent from the archive or cannot be copied are recreated as metadata
// only; see [ImportResult.MetadataOnly]. A missing or unreadable manifest
// fails the import. The staging directory is always removed.
func (s *Store) Import(ctx context.Context, parentID int64, srcPath string) (ImportResult, error) {
	const op = "import"

	info, err := s.fs.Stat(srcPath)
	if err != nil {
		return ImportResult{}, wrap(op, "card", parentID, fmt.Errorf("archive %s: %w", srcPath, err))
	}

	if !info.Mode().IsRegular() {
		return ImportResult{}, wrap(op, "card", parentID, invalid("archive %s is not a regular file", srcPath))
	}

	q, err := s.reader()
	if err != nil {
		return ImportResult{}, wrap(op, "card", parentID, err)
	}

	parent, err := getCard(ctx, q, parentID)
	if err != nil {
		return ImportResult{}, wrap(op, "card", parentID, err)
	}

	if parent.ColumnID <= 0 {
		return ImportResult{}, wrap(op, "card", parentID, invalid("parent card %d has no column", parentID))
	}

	staging, err := s.fs.MkdirTemp(s.tempDir, "cardstore-import-*")
	if err != nil {
		return ImportResult{}, wrap(op, "card", parentID, ioFailure(fmt.Errorf("create staging dir: %w", err)))
	}

	defer func() { _ = s.fs.RemoveAll(staging) }()

	err = s.extractZip(srcPath, info.Size(), staging)
	if err != nil {
		return ImportResult{}, wrap(op, "card", parentID, err)
	}

	m, err := s.readManifest(staging)
	if err != nil {
		return ImportResult{}, wrap(op, "card", parentID, err)
	}

	err = checkManifestDepth(m.manifestNode, 0)
	if err != nil {
		return ImportResult{}, wrap(op, "card", parentID, err)
	}

	imp := &importer{store: s, staging: staging, columnID: parent.ColumnID}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		rootID, err := imp.restore(ctx, tx, m.manifestNode, parentID)
		if err != nil {
			return err
		}

		imp.res.RootID = rootID

		return nil
	})
	if err != nil {
		for _, copied := range imp.copied {
			_ = s.fs.Remove(copied)
		}

		return ImportResult{}, wrap(op, "card", parentID, err)
	}

	return imp.res, nil
}

// extractZip unpacks the manifest and payload entries into staging. Entries
// outside the archive layout are skipped.
func (s *Store) extractZip(srcPath string, size int64, staging string) error {
	f, err := s.fs.Open(srcPath)
	if err != nil {
		return ioFailure(fmt.Errorf("open archive: %w", err))
	}
	defer f.Close()

	var in io.Reader = f

	if _, ok := f.(io.ReaderAt); !ok {
		data, readErr := io.ReadAll(f)
		if readErr != nil {
			return ioFailure(fmt.Errorf("read archive: %w", readErr))
		}

		in = bytes.NewReader(data)
		size = int64(len(data))
	}

	z := archiver.NewZip()

	err = z.Open(in, size)
	if err != nil {
		return invalid("malformed archive: %v", err)
	}
	defer z.Close()

	err = s.fs.MkdirAll(filepath.Join(staging, archiveFilesDir), dirPerms)
	if err != nil {
		return ioFailure(err)
	}

	for {
		entry, err := z.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return invalid("malformed archive: %v", err)
		}

		err = s.extractEntry(entry, staging)

		_ = entry.Close()

		if err != nil {
			return err
		}
	}
}

func (s *Store) extractEntry(entry archiver.File, staging string) error {
	if entry.IsDir() {
		return nil
	}

	header, ok := entry.Header.(zip.FileHeader)
	if !ok {
		return invalid("malformed archive: unexpected entry header %T", entry.Header)
	}

	name, ok := archiveEntryPath(header.Name)
	if !ok {
		s.log.WithField("entry", header.Name).Debug("cardstore: skipping unexpected archive entry")

		return nil
	}

	err := s.fs.WriteFileAtomic(filepath.Join(staging, filepath.FromSlash(name)), entry)
	if err != nil {
		return ioFailure(fmt.Errorf("extract %s: %w", name, err))
	}

	return nil
}

// archiveEntryPath accepts only "folder.json" and "files/<name>".
func archiveEntryPath(name string) (string, bool) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))

	if clean == manifestName {
		return clean, true
	}

	dir, base := path.Split(clean)
	if dir != archiveFilesDir+"/" || !safeBaseName(base) {
		return "", false
	}

	return clean, true
}

func safeBaseName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func (s *Store) readManifest(staging string) (manifest, error) {
	data, err := s.fs.ReadFile(filepath.Join(staging, manifestName))
	if errors.Is(err, os.ErrNotExist) {
		return manifest{}, invalid("archive has no %s", manifestName)
	}

	if err != nil {
		return manifest{}, ioFailure(fmt.Errorf("read manifest: %w", err))
	}

	var m manifest

	err = json.Unmarshal(data, &m)
	if err != nil {
		return manifest{}, invalid("unreadable %s: %v", manifestName, err)
	}

	if m.Version > manifestVersion {
		return manifest{}, invalid("manifest version %d is newer than supported version %d", m.Version, manifestVersion)
	}

	return m, nil
}

func checkManifestDepth(node manifestNode, depth int) error {
	if depth >= maxArchiveDepth {
		return invalid("archive nests deeper than %d folders", maxArchiveDepth)
	}

	for _, sub := range node.Subfolders {
		err := checkManifestDepth(sub, depth+1)
		if err != nil {
			return err
		}
	}

	return nil
}

type importer struct {
	store    *Store
	staging  string
	columnID int64
	copied   []string
	res      ImportResult
}

func (imp *importer) restore(ctx context.Context, tx *sql.Tx, node manifestNode, parentID int64) (int64, error) {
	err := ctx.Err()
	if err != nil {
		return 0, err
	}

	title := node.Folder.Title
	if strings.TrimSpace(title) == "" {
		title = defaultImportTitle
	}

	attrs := node.Folder.Attributes
	if attrs.validate() != nil {
		imp.store.log.WithField("title", title).Warn("cardstore: dropping non-scalar attributes from archive")

		attrs = nil
	}

	id, err := imp.store.insertCard(ctx, tx, NewCard{
		ColumnID:    imp.columnID,
		Title:       title,
		Description: node.Folder.Description,
		Kind:        KindFolder,
		LabelColor:  node.Folder.LabelColor,
		ParentID:    int64Ptr(parentID),
		Attributes:  attrs,
	})
	if err != nil {
		return 0, err
	}

	imp.res.Folders++

	for _, entry := range node.Attachments {
		err = imp.restoreAttachment(ctx, tx, id, entry)
		if err != nil {
			return 0, err
		}
	}

	for _, sub := range node.Subfolders {
		_, err = imp.restore(ctx, tx, sub, id)
		if err != nil {
			return 0, err
		}
	}

	return id, nil
}

func (imp *importer) restoreAttachment(ctx context.Context, tx *sql.Tx, cardID int64, entry manifestAttachment) error {
	s := imp.store

	fileName := entry.FileName
	if strings.TrimSpace(fileName) == "" {
		fileName = entry.ExportedFile
	}

	if strings.TrimSpace(fileName) == "" {
		fileName = fmt.Sprintf("attachment-%d", entry.ID)
	}

	in := NewAttachment{
		CardID:    cardID,
		FileName:  fileName,
		RemoteURL: entry.RemoteURL,
		MimeType:  entry.MimeType,
		SizeBytes: max(entry.SizeBytes, 0),
	}

	log := s.log.WithFields(logrus.Fields{"card_id": cardID, "file": fileName})

	copied, err := imp.copyPayload(ctx, tx, cardID, entry)
	if err != nil && !errors.Is(err, ErrIO) {
		return err
	}

	switch {
	case err != nil:
		log.WithError(err).Warn("cardstore: attachment payload not restored")

		imp.res.MetadataOnly++
	case copied != "":
		in.LocalPath = copied

		size, mimeType := s.describeFile(copied)
		in.SizeBytes = size

		if in.MimeType == "" {
			in.MimeType = mimeType
		}
	case entry.HasLocalFile:
		log.Warn("cardstore: attachment payload missing from archive")

		imp.res.MetadataOnly++
	}

	_, err = s.insertAttachment(ctx, tx, in)
	if err != nil {
		return err
	}

	imp.res.Attachments++

	return nil
}

// copyPayload copies the staged payload of entry into the card's storage
// directory. It returns "" without error when the archive has no payload
// for entry.
func (imp *importer) copyPayload(ctx context.Context, tx *sql.Tx, cardID int64, entry manifestAttachment) (string, error) {
	if entry.ExportedFile == "" || !safeBaseName(entry.ExportedFile) {
		return "", nil
	}

	staged := filepath.Join(imp.staging, archiveFilesDir, entry.ExportedFile)

	exists, err := imp.store.fs.Exists(staged)
	if err != nil {
		return "", ioFailure(err)
	}

	if !exists {
		return "", nil
	}

	dir, err := imp.store.cardStoragePath(ctx, tx, cardID)
	if err != nil {
		return "", err
	}

	name := entry.FileName
	if !safeBaseName(name) {
		name = entry.ExportedFile
	}

	copied, err := imp.store.storeFileAs(dir, staged, name)
	if err != nil {
		return "", err
	}

	imp.copied = append(imp.copied, copied)

	return copied, nil
}
