// Package entity defines the row types shared by the storage packages.
//
// Everything here maps one-to-one onto a persisted table. The stores in
// internal/storage own all write access; these types carry no behavior
// beyond small conveniences.
package entity

import (
	"time"

	"github.com/maruel/ksid"
)

// Page is the live page row. Revision always equals the highest revision
// number present in page_revisions once at least one revision exists; a page
// with Revision == 0 is the transient state between creation and first save.
type Page struct {
	ID           ksid.ID   `json:"id"`
	Name         string    `json:"name"`
	Navigation   string    `json:"navigation"`
	Namespace    string    `json:"namespace,omitempty"`
	Description  string    `json:"description,omitempty"`
	Revision     int       `json:"revision"`
	CreatedBy    string    `json:"created_by"`
	CreatedDate  time.Time `json:"created_date"`
	ModifiedBy   string    `json:"modified_by"`
	ModifiedDate time.Time `json:"modified_date"`

	// Transient save inputs, not columns of the page row itself.
	Body          string `json:"body,omitempty"`
	ChangeSummary string `json:"change_summary,omitempty"`
}

// PageRevision is an immutable snapshot of a page at one revision number.
// Rows are append-only; they are created, or moved to the archive, never
// updated in place.
type PageRevision struct {
	PageID        ksid.ID   `json:"page_id"`
	Revision      int       `json:"revision"`
	Name          string    `json:"name"`
	Navigation    string    `json:"navigation"`
	Namespace     string    `json:"namespace,omitempty"`
	Description   string    `json:"description,omitempty"`
	Body          string    `json:"body"`
	DataHash      uint32    `json:"data_hash"`
	ChangeSummary string    `json:"change_summary,omitempty"`
	ModifiedBy    string    `json:"modified_by"`
	ModifiedDate  time.Time `json:"modified_date"`
}

// PageFile is the live file row for one attached file of a page.
// Navigation is unique within the owning page.
type PageFile struct {
	ID          ksid.ID   `json:"id"`
	PageID      ksid.ID   `json:"page_id"`
	Name        string    `json:"name"`
	Navigation  string    `json:"navigation"`
	Revision    int       `json:"revision"`
	CreatedDate time.Time `json:"created_date"`
}

// PageFileRevision is an immutable snapshot of a file's binary content.
type PageFileRevision struct {
	PageFileID  ksid.ID   `json:"page_file_id"`
	Revision    int       `json:"revision"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Data        []byte    `json:"-"`
	DataHash    uint32    `json:"data_hash"`
	CreatedBy   string    `json:"created_by"`
	CreatedDate time.Time `json:"created_date"`
}

// PageRevisionAttachment links one file revision to one page revision.
// For a fixed page revision at most one row exists per (PageID, PageFileID).
type PageRevisionAttachment struct {
	PageID       ksid.ID `json:"page_id"`
	PageFileID   ksid.ID `json:"page_file_id"`
	PageRevision int     `json:"page_revision"`
	FileRevision int     `json:"file_revision"`
}

// PageReference is one outgoing link from a page, keyed by the target's
// navigation string. ReferencesPageID is zero while the target page does not
// exist; such rows are the "missing page" signal.
type PageReference struct {
	ID                       int64   `json:"id"`
	PageID                   ksid.ID `json:"page_id"`
	ReferencesPageNavigation string  `json:"references_page_navigation"`
	ReferencesPageID         ksid.ID `json:"references_page_id,omitempty"`
}

// PageToken is one weighted search token of a page. Weight accumulates the
// contributions of every content field the token appears in.
type PageToken struct {
	PageID      ksid.ID `json:"page_id"`
	Token       string  `json:"token"`
	PhoneticKey string  `json:"phonetic_key"`
	Weight      float64 `json:"weight"`
}

// DeletedPage is the archived shadow of a Page row. A page is either live or
// archived, never both.
type DeletedPage struct {
	Page
	DeletedBy   string    `json:"deleted_by"`
	DeletedDate time.Time `json:"deleted_date"`
}

// DeletedPageRevision is the archived shadow of a PageRevision row.
type DeletedPageRevision struct {
	PageRevision
	DeletedBy   string    `json:"deleted_by"`
	DeletedDate time.Time `json:"deleted_date"`
}

// PageComment is one user comment on a page.
type PageComment struct {
	ID          int64     `json:"id"`
	PageID      ksid.ID   `json:"page_id"`
	UserID      string    `json:"user_id"`
	Body        string    `json:"body"`
	CreatedDate time.Time `json:"created_date"`
}

// PageSearchResult is one scored row returned by the search index, joined
// back to page metadata for display.
type PageSearchResult struct {
	PageID       ksid.ID   `json:"page_id"`
	Name         string    `json:"name"`
	Navigation   string    `json:"navigation"`
	Namespace    string    `json:"namespace,omitempty"`
	Description  string    `json:"description,omitempty"`
	Match        float64   `json:"match"`
	Weight       float64   `json:"weight"`
	Score        float64   `json:"score"`
	ModifiedDate time.Time `json:"modified_date"`
}

// MissingPage is one unresolved reference target with the number of pages
// linking to it.
type MissingPage struct {
	Navigation string `json:"navigation"`
	Referrers  int    `json:"referrers"`
}

// OrphanedFileRevision identifies a file revision no attachment row points at.
type OrphanedFileRevision struct {
	PageFileID ksid.ID `json:"page_file_id"`
	PageID     ksid.ID `json:"page_id"`
	FileName   string  `json:"file_name"`
	Revision   int     `json:"revision"`
	Size       int64   `json:"size"`
}
