package detour

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

type DtStatus uint32

const (
	// High level status.
	DT_FAILURE     DtStatus = 1 << 31 // Operation failed.
	DT_SUCCESS     DtStatus = 1 << 30 // Operation succeed.
	DT_IN_PROGRESS DtStatus = 1 << 29 // Operation still in progress.

	// Detail information for status.
	DT_STATUS_DETAIL_MASK DtStatus = 0x0ffffff
	DT_WRONG_MAGIC        DtStatus = 1 << 0 // Input data is not recognized.
	DT_WRONG_VERSION      DtStatus = 1 << 1 // Input data is in wrong version.
	DT_OUT_OF_MEMORY      DtStatus = 1 << 2 // Operation ran out of memory.
	DT_INVALID_PARAM      DtStatus = 1 << 3 // An input parameter was invalid.
	DT_BUFFER_TOO_SMALL   DtStatus = 1 << 4 // Result buffer for the query was too small to store all results.
	DT_OUT_OF_NODES       DtStatus = 1 << 5 // Query ran out of nodes during search.
	DT_PARTIAL_RESULT     DtStatus = 1 << 6 // Query did not reach the end location, returning best guess.
	DT_ALREADY_OCCUPIED   DtStatus = 1 << 7 // A tile has already been assigned to the given x,y coordinate
	DT_STALE_REF          DtStatus = 1 << 8 // A polygon or tile reference no longer resolves.
	DT_QUERY_ABANDONED    DtStatus = 1 << 9 // An unfinished sliced query was discarded.
)

var (
	ErrFailure         = errors.New("detour: operation failed")
	ErrWrongMagic      = fmt.Errorf("%w: wrong magic", ErrFailure)
	ErrWrongVersion    = fmt.Errorf("%w: wrong version", ErrFailure)
	ErrOutOfMemory     = fmt.Errorf("%w: out of memory", ErrFailure)
	ErrInvalidParam    = fmt.Errorf("%w: invalid param", ErrFailure)
	ErrBufferTooSmall  = fmt.Errorf("%w: buffer too small", ErrFailure)
	ErrOutOfNodes      = fmt.Errorf("%w: out of nodes", ErrFailure)
	ErrAlreadyOccupied = fmt.Errorf("%w: tile location already occupied", ErrFailure)
	ErrStaleRef        = fmt.Errorf("%w: stale reference", ErrFailure)
	ErrQueryAbandoned  = fmt.Errorf("%w: query abandoned", ErrFailure)
)

var statusDetailErrors = []struct {
	detail DtStatus
	err    error
}{
	{DT_WRONG_MAGIC, ErrWrongMagic},
	{DT_WRONG_VERSION, ErrWrongVersion},
	{DT_OUT_OF_MEMORY, ErrOutOfMemory},
	{DT_INVALID_PARAM, ErrInvalidParam},
	{DT_BUFFER_TOO_SMALL, ErrBufferTooSmall},
	{DT_OUT_OF_NODES, ErrOutOfNodes},
	{DT_ALREADY_OCCUPIED, ErrAlreadyOccupied},
	{DT_STALE_REF, ErrStaleRef},
	{DT_QUERY_ABANDONED, ErrQueryAbandoned},
}

// Returns true of status is success.
func (status DtStatus) Succeed() bool {
	return (status & DT_SUCCESS) != 0
}

// Returns true of status is failure.
func (status DtStatus) Failed() bool {
	return (status & DT_FAILURE) != 0
}

// Returns true of status is in progress.
func (status DtStatus) InProgress() bool {
	return (status & DT_IN_PROGRESS) != 0
}

// Returns true if specific detail is set.
func (status DtStatus) Detail(detail DtStatus) bool {
	return (status & detail & DT_STATUS_DETAIL_MASK) != 0
}

// Err converts a failed status into an error. Successful and in-progress
// statuses return nil, partial results included.
func (status DtStatus) Err() error {
	if !status.Failed() {
		return nil
	}
	var err error
	for _, d := range statusDetailErrors {
		if status.Detail(d.detail) {
			err = multierr.Append(err, d.err)
		}
	}
	if err == nil {
		return ErrFailure
	}
	return err
}

func (status DtStatus) String() string {
	var s string
	switch {
	case status.Failed():
		s = "failure"
	case status.InProgress():
		s = "in_progress"
	case status.Succeed():
		s = "success"
	default:
		s = "none"
	}
	if d := status & DT_STATUS_DETAIL_MASK; d != 0 {
		s = fmt.Sprintf("%s|0x%x", s, uint32(d))
	}
	return s
}
