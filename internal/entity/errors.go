package entity

import "errors"

var (
	// ErrNotFound is returned by mutations that target a row that must
	// exist (revert, restore, purge, detach). Read paths do not use it;
	// they return a nil row or an empty slice on a miss.
	ErrNotFound = errors.New("not found")

	// ErrNavigationTaken is returned when a save would duplicate a
	// globally unique navigation key.
	ErrNavigationTaken = errors.New("navigation already in use")

	// ErrPageArchived is returned when a mutation targets a page that has
	// been moved to the deletion archive.
	ErrPageArchived = errors.New("page is archived")
)
