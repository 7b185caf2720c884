package bot

import "errors"

var (
	// ErrNoToken indicates an operation was attempted before a bot token was
	// set. Call SetToken first.
	ErrNoToken = errors.New("no token found, use SetToken to add a token first")

	// ErrNoClientIDs indicates a send was attempted with no resolvable
	// recipients. Call AddClients or Register first.
	ErrNoClientIDs = errors.New("no client ids found, use AddClients to add a client first")
)
