package domain

import "errors"

// ErrNotConnected is returned by registry sends when no open handle
// exists for the addressed identity and role.
var ErrNotConnected = errors.New("no open connection for robot id")
