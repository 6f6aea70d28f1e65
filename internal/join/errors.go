package join

import "errors"

var (
	// ErrAnchorEmpty is wrapped in a source.InputError when the anchor
	// stream has no valid group at all.
	ErrAnchorEmpty = errors.New("anchor stream has no valid groups")

	// ErrInvalidOptions is wrapped by every options validation error.
	ErrInvalidOptions = errors.New("invalid join options")

	// ErrNotPrepared is returned by Process before a successful Prepare.
	ErrNotPrepared = errors.New("engine: Process called before Prepare")
)
