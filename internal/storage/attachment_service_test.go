package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/quillwiki/quill/internal/entity"
)

func TestUpsertPageFileCreatesRevisionAndAttachment(t *testing.T) {
	db, cache := newTestDB(t)
	pages := NewRevisionService(db, cache)
	files := NewAttachmentService(db, cache)
	ctx := context.Background()

	page := savePage(t, pages, &entity.Page{Name: "Manual", Body: "see diagram"})
	fileID, err := files.UpsertPageFile(ctx, FileUpload{
		PageID: page.ID,
		Name:   "diagram.png",
		Data:   []byte("png bytes"),
	}, "tester")
	if err != nil {
		t.Fatalf("UpsertPageFile failed: %v", err)
	}
	if fileID.IsZero() {
		t.Fatal("expected a generated file id")
	}

	att, err := files.GetFileAttachment(ctx, page.Navigation, "diagram.png")
	if err != nil {
		t.Fatal(err)
	}
	if att == nil {
		t.Fatal("attachment not found at current page revision")
	}
	if att.Revision != 1 {
		t.Errorf("file revision = %d, want 1", att.Revision)
	}
	if !bytes.Equal(att.Data, []byte("png bytes")) {
		t.Error("payload mismatch")
	}
	if att.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", att.ContentType)
	}
}

func TestUpsertPageFileIdenticalBytesIsNoOp(t *testing.T) {
	db, cache := newTestDB(t)
	pages := NewRevisionService(db, cache)
	files := NewAttachmentService(db, cache)
	ctx := context.Background()

	page := savePage(t, pages, &entity.Page{Name: "Idempotent", Body: "x"})
	up := FileUpload{PageID: page.ID, Name: "data.bin", Data: []byte("payload")}
	if _, err := files.UpsertPageFile(ctx, up, "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := files.UpsertPageFile(ctx, up, "tester"); err != nil {
		t.Fatal(err)
	}

	var revisions, attachments int
	db.Conn().QueryRow("SELECT COUNT(*) FROM page_file_revisions").Scan(&revisions)
	db.Conn().QueryRow("SELECT COUNT(*) FROM page_revision_attachments").Scan(&attachments)
	if revisions != 1 {
		t.Errorf("file revisions = %d, want 1", revisions)
	}
	if attachments != 1 {
		t.Errorf("attachment rows = %d, want 1", attachments)
	}
}

func TestUpsertPageFileChangedBytesSupersedes(t *testing.T) {
	db, cache := newTestDB(t)
	pages := NewRevisionService(db, cache)
	files := NewAttachmentService(db, cache)
	ctx := context.Background()

	page := savePage(t, pages, &entity.Page{Name: "Evolving", Body: "x"})
	up := FileUpload{PageID: page.ID, Name: "notes.txt", Data: []byte("v1")}
	if _, err := files.UpsertPageFile(ctx, up, "tester"); err != nil {
		t.Fatal(err)
	}
	up.Data = []byte("v2")
	if _, err := files.UpsertPageFile(ctx, up, "tester"); err != nil {
		t.Fatal(err)
	}

	// Two file revisions exist, but the current page revision links only
	// the newest; the superseded row is gone.
	var revisions, attachments, fileRev int
	db.Conn().QueryRow("SELECT COUNT(*) FROM page_file_revisions").Scan(&revisions)
	db.Conn().QueryRow("SELECT COUNT(*) FROM page_revision_attachments").Scan(&attachments)
	db.Conn().QueryRow("SELECT file_revision FROM page_revision_attachments").Scan(&fileRev)
	if revisions != 2 {
		t.Errorf("file revisions = %d, want 2", revisions)
	}
	if attachments != 1 {
		t.Errorf("attachment rows = %d, want 1", attachments)
	}
	if fileRev != 2 {
		t.Errorf("attached file revision = %d, want 2", fileRev)
	}

	att, err := files.GetFileAttachment(ctx, page.Navigation, "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(att.Data) != "v2" {
		t.Errorf("payload = %q, want v2", att.Data)
	}
}

func TestSavePageCarriesAttachmentsForward(t *testing.T) {
	db, cache := newTestDB(t)
	pages := NewRevisionService(db, cache)
	files := NewAttachmentService(db, cache)
	ctx := context.Background()

	page := savePage(t, pages, &entity.Page{Name: "Illustrated", Body: "v1"})
	if _, err := files.UpsertPageFile(ctx, FileUpload{
		PageID: page.ID, Name: "fig.png", Data: []byte("img")}, "tester"); err != nil {
		t.Fatal(err)
	}

	// A pure content edit must not drop the attachment.
	savePage(t, pages, &entity.Page{ID: page.ID, Name: "Illustrated", Navigation: page.Navigation, Body: "v2"})

	attached, err := files.ListPageFilesByRevision(ctx, page.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(attached) != 1 || attached[0].Name != "fig.png" {
		t.Fatalf("attachments at revision 2 = %v, want fig.png", attached)
	}

	// And the older page revision still sees the file too.
	attached, err = files.ListPageFilesByRevision(ctx, page.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(attached) != 1 {
		t.Errorf("attachments at revision 1 = %d, want 1", len(attached))
	}
}

func TestGetFileAttachmentByRevision(t *testing.T) {
	db, cache := newTestDB(t)
	pages := NewRevisionService(db, cache)
	files := NewAttachmentService(db, cache)
	ctx := context.Background()

	page := savePage(t, pages, &entity.Page{Name: "Versioned", Body: "v1"})
	if _, err := files.UpsertPageFile(ctx, FileUpload{
		PageID: page.ID, Name: "doc.txt", Data: []byte("old")}, "tester"); err != nil {
		t.Fatal(err)
	}
	savePage(t, pages, &entity.Page{ID: page.ID, Name: "Versioned", Navigation: page.Navigation, Body: "v2"})
	if _, err := files.UpsertPageFile(ctx, FileUpload{
		PageID: page.ID, Name: "doc.txt", Data: []byte("new")}, "tester"); err != nil {
		t.Fatal(err)
	}

	old, err := files.GetFileAttachmentByRevision(ctx, page.Navigation, "doc.txt", 1)
	if err != nil {
		t.Fatal(err)
	}
	if old == nil || string(old.Data) != "old" {
		t.Fatalf("revision 1 attachment = %v, want old payload", old)
	}
	cur, err := files.GetFileAttachment(ctx, page.Navigation, "doc.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(cur.Data) != "new" {
		t.Errorf("current payload = %q, want new", cur.Data)
	}
}

func TestUpsertPageFileUnknownPage(t *testing.T) {
	db, cache := newTestDB(t)
	files := NewAttachmentService(db, cache)

	_, err := files.UpsertPageFile(context.Background(), FileUpload{
		PageID: 42, Name: "x.txt", Data: []byte("x")}, "tester")
	if !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("upload to unknown page = %v, want ErrNotFound", err)
	}
}

func TestOrphanDetectionAndPurge(t *testing.T) {
	db, cache := newTestDB(t)
	pages := NewRevisionService(db, cache)
	files := NewAttachmentService(db, cache)
	ctx := context.Background()

	page := savePage(t, pages, &entity.Page{Name: "Cluttered", Body: "x"})
	fileID, err := files.UpsertPageFile(ctx, FileUpload{
		PageID: page.ID, Name: "blob.bin", Data: []byte("v1")}, "tester")
	if err != nil {
		t.Fatal(err)
	}
	// Superseding the only attachment orphans revision 1.
	if _, err := files.UpsertPageFile(ctx, FileUpload{
		PageID: page.ID, Name: "blob.bin", Data: []byte("v2")}, "tester"); err != nil {
		t.Fatal(err)
	}

	orphans, err := files.ListOrphanedFileRevisions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 1 || orphans[0].Revision != 1 {
		t.Fatalf("orphans = %v, want revision 1 of blob.bin", orphans)
	}

	if err := files.PurgeOrphanedFileRevision(ctx, fileID, 1); err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	// Revision 2 is still attached; purging it must refuse.
	if err := files.PurgeOrphanedFileRevision(ctx, fileID, 2); !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("purging attached revision = %v, want ErrNotFound", err)
	}
	att, err := files.GetFileAttachment(ctx, page.Navigation, "blob.bin")
	if err != nil {
		t.Fatal(err)
	}
	if att == nil || string(att.Data) != "v2" {
		t.Error("attached revision must survive the purge")
	}
}

func TestDetachAndBulkPurge(t *testing.T) {
	db, cache := newTestDB(t)
	pages := NewRevisionService(db, cache)
	files := NewAttachmentService(db, cache)
	ctx := context.Background()

	page := savePage(t, pages, &entity.Page{Name: "Cleanup", Body: "x"})
	fileID, err := files.UpsertPageFile(ctx, FileUpload{
		PageID: page.ID, Name: "old.zip", Data: []byte("zip")}, "tester")
	if err != nil {
		t.Fatal(err)
	}

	if err := files.DetachFile(ctx, page.ID, fileID, 1); err != nil {
		t.Fatalf("DetachFile failed: %v", err)
	}
	if err := files.DetachFile(ctx, page.ID, fileID, 1); !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("double detach = %v, want ErrNotFound", err)
	}

	// Detached, the file drops out of the current revision's listing but is
	// still a file of the page until purged.
	attached, err := files.ListPageFilesByRevision(ctx, page.ID, page.Revision)
	if err != nil {
		t.Fatal(err)
	}
	if len(attached) != 0 {
		t.Errorf("attached files after detach = %v, want none", attached)
	}
	all, err := files.ListPageFiles(ctx, page.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("page files after detach = %d, want 1", len(all))
	}

	purged, err := files.PurgeOrphanedFileRevisions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
	// The file row is gone with its last revision.
	remaining, err := files.ListPageFiles(ctx, page.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Errorf("files after purge = %v, want none", remaining)
	}
}
