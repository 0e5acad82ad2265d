package database

import "errors"

// ErrNoJobAvailable is returned by ClaimNext when nothing is claimable.
var ErrNoJobAvailable = errors.New("no publish job available")

// ErrLeaseLost is returned when a job was reclaimed by another worker
// after its lease expired.
var ErrLeaseLost = errors.New("publish job lease lost")
