package order

import (
	"fmt"
	"time"
)

// GenerateCode builds the human-readable order code from the pickup slot
// timestamp and the persisted numeric id. The id must already exist, so
// code generation is always the second phase of the write.
func GenerateCode(slotStartUTC time.Time, orderID int) string {
	return fmt.Sprintf("ORD-%s-%06d", slotStartUTC.UTC().Format("200601021504"), orderID)
}
