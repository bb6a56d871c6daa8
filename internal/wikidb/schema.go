package wikidb

// Revision rows deliberately carry no foreign key to pages: archiving a page
// removes the live row while its revisions stay addressable until they are
// archived per-revision.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS pages (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	navigation TEXT NOT NULL UNIQUE,
	namespace TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	revision INTEGER NOT NULL DEFAULT 0,
	created_by TEXT NOT NULL DEFAULT '',
	created_date INTEGER NOT NULL,
	modified_by TEXT NOT NULL DEFAULT '',
	modified_date INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS page_revisions (
	page_id TEXT NOT NULL,
	revision INTEGER NOT NULL,
	name TEXT NOT NULL,
	navigation TEXT NOT NULL,
	namespace TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL,
	data_hash INTEGER NOT NULL,
	change_summary TEXT NOT NULL DEFAULT '',
	modified_by TEXT NOT NULL DEFAULT '',
	modified_date INTEGER NOT NULL,
	PRIMARY KEY (page_id, revision)
);

CREATE TABLE IF NOT EXISTS page_files (
	id TEXT PRIMARY KEY,
	page_id TEXT NOT NULL,
	name TEXT NOT NULL,
	navigation TEXT NOT NULL,
	revision INTEGER NOT NULL DEFAULT 0,
	created_date INTEGER NOT NULL,
	UNIQUE (page_id, navigation)
);

CREATE TABLE IF NOT EXISTS page_file_revisions (
	page_file_id TEXT NOT NULL,
	revision INTEGER NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL,
	data BLOB NOT NULL,
	data_hash INTEGER NOT NULL,
	created_by TEXT NOT NULL DEFAULT '',
	created_date INTEGER NOT NULL,
	PRIMARY KEY (page_file_id, revision)
);

CREATE TABLE IF NOT EXISTS page_revision_attachments (
	page_id TEXT NOT NULL,
	page_file_id TEXT NOT NULL,
	page_revision INTEGER NOT NULL,
	file_revision INTEGER NOT NULL,
	PRIMARY KEY (page_id, page_file_id, page_revision)
);

CREATE TABLE IF NOT EXISTS page_references (
	id INTEGER PRIMARY KEY,
	page_id TEXT NOT NULL,
	references_page_navigation TEXT NOT NULL,
	references_page_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_page_references_target
	ON page_references(references_page_navigation);

CREATE TABLE IF NOT EXISTS page_tokens (
	id INTEGER PRIMARY KEY,
	page_id TEXT NOT NULL,
	token TEXT NOT NULL,
	phonetic_key TEXT NOT NULL,
	weight REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_page_tokens_token ON page_tokens(token);
CREATE INDEX IF NOT EXISTS idx_page_tokens_phonetic ON page_tokens(phonetic_key);
CREATE INDEX IF NOT EXISTS idx_page_tokens_page ON page_tokens(page_id);

CREATE TABLE IF NOT EXISTS deleted_pages (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	navigation TEXT NOT NULL,
	namespace TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	revision INTEGER NOT NULL,
	created_by TEXT NOT NULL DEFAULT '',
	created_date INTEGER NOT NULL,
	modified_by TEXT NOT NULL DEFAULT '',
	modified_date INTEGER NOT NULL,
	deleted_by TEXT NOT NULL DEFAULT '',
	deleted_date INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS deleted_page_revisions (
	page_id TEXT NOT NULL,
	revision INTEGER NOT NULL,
	name TEXT NOT NULL,
	navigation TEXT NOT NULL,
	namespace TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL,
	data_hash INTEGER NOT NULL,
	change_summary TEXT NOT NULL DEFAULT '',
	modified_by TEXT NOT NULL DEFAULT '',
	modified_date INTEGER NOT NULL,
	deleted_by TEXT NOT NULL DEFAULT '',
	deleted_date INTEGER NOT NULL,
	PRIMARY KEY (page_id, revision)
);

CREATE TABLE IF NOT EXISTS page_tags (
	page_id TEXT NOT NULL,
	tag TEXT NOT NULL,
	PRIMARY KEY (page_id, tag)
);

CREATE TABLE IF NOT EXISTS page_processing_instructions (
	page_id TEXT NOT NULL,
	instruction TEXT NOT NULL,
	PRIMARY KEY (page_id, instruction)
);

CREATE TABLE IF NOT EXISTS page_comments (
	id INTEGER PRIMARY KEY,
	page_id TEXT NOT NULL,
	user_id TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL,
	created_date INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_page_comments_page ON page_comments(page_id);

CREATE TABLE IF NOT EXISTS page_statistics (
	page_id TEXT PRIMARY KEY,
	hit_count INTEGER NOT NULL DEFAULT 0,
	last_viewed INTEGER NOT NULL DEFAULT 0
);
`
