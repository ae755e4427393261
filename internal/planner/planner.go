package planner

import (
	replicaerrors "github.com/input-output-hk/catalyst-forge-libs/replica/errors"
)

// Part describes one contiguous byte range of a planned upload.
type Part struct {
	// Number is the 1-based part number; numbers are contiguous
	Number int32

	// Start is the offset of the first byte of the part
	Start int64

	// End is the offset of the last byte of the part (inclusive)
	End int64
}

// Len returns the part length in bytes.
func (p Part) Len() int64 {
	return p.End - p.Start + 1
}

// Plan splits totalSize bytes into contiguous, non-overlapping parts whose
// lengths sum to totalSize. The nominal part size is totalSize divided by
// targetCount, clamped to [minPart, maxPart]; the final part absorbs the
// division remainder. Objects no larger than minPart yield a single part.
//
// Returns:
//   - []Part: the ordered plan, part numbers starting at 1
//   - error: ErrInvalidInput when the size or bounds are unusable
func Plan(totalSize, minPart, maxPart int64, targetCount int) ([]Part, error) {
	if totalSize <= 0 {
		return nil, replicaerrors.NewError("plan", replicaerrors.ErrInvalidInput).
			WithMessage("total size must be positive")
	}
	if minPart <= 0 || maxPart < minPart {
		return nil, replicaerrors.NewError("plan", replicaerrors.ErrInvalidInput).
			WithMessage("part size bounds must satisfy 0 < min <= max")
	}
	if targetCount <= 0 {
		return nil, replicaerrors.NewError("plan", replicaerrors.ErrInvalidInput).
			WithMessage("target part count must be positive")
	}

	if totalSize <= minPart {
		return []Part{{Number: 1, Start: 0, End: totalSize - 1}}, nil
	}

	partSize := totalSize / int64(targetCount)
	if partSize < minPart {
		partSize = minPart
	}
	if partSize > maxPart {
		partSize = maxPart
	}

	count := totalSize / partSize
	parts := make([]Part, 0, count)
	var start int64
	for i := int64(1); i <= count; i++ {
		end := start + partSize - 1
		if i == count {
			// Final part absorbs the remainder.
			end = totalSize - 1
		}
		parts = append(parts, Part{Number: int32(i), Start: start, End: end})
		start = end + 1
	}
	return parts, nil
}
