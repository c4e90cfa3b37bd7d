package helpers

import (
	"runtime/debug"

	"quote-broadcaster/src/logger"
)

const fallbackMemoryLimitMB = 512

// MemoryLimitMB returns the soft heap limit for the process: 75% of physical
// RAM, never below 512MB unless the host itself has less.
func MemoryLimitMB(totalMB int) int {
	if totalMB <= 0 {
		return fallbackMemoryLimitMB
	}

	limit := int(float64(totalMB) * 0.75)
	if limit < fallbackMemoryLimitMB {
		if totalMB < fallbackMemoryLimitMB {
			return totalMB
		}
		return fallbackMemoryLimitMB
	}
	return limit
}

// ApplyMemoryLimit sets the runtime soft memory limit from the host's RAM.
func ApplyMemoryLimit(log *logger.Logger) int {
	totalMB := TotalSystemMemoryMB()
	limit := MemoryLimitMB(totalMB)
	if totalMB == 0 && log != nil {
		log.Warning("Could not determine system memory. Defaulting to %dMB.", limit)
	}

	debug.SetMemoryLimit(int64(limit) << 20)
	if log != nil {
		log.Debug("Soft memory limit set to %dMB", limit)
	}
	return limit
}
