package lineitem

import (
	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/domain/inventory"
)

// CheckDuplicate fails with DUPLICATE_LINE when candidate is already used by a line other
// than the one at excluding. Pass -1 to check against every line.
// Only lines of one document are compared; a blank candidate never conflicts.
func CheckDuplicate(candidate inventory.BatchKey, lines []Line, excluding int) error {
	candidate = candidate.Normalize()
	if candidate.ItemID == "" {
		return nil
	}

	for i, line := range lines {
		if i == excluding || line.IsBlank() {
			continue
		}
		if line.Key().Normalize() == candidate {
			return apperror.NewDuplicateLine(candidate.ItemID, candidate.BatchNo, i)
		}
	}
	return nil
}
