package protocol

import "fmt"

// Client-facing rejection messages. Clients branch on these strings,
// so they are wire contract, not log copy.
const (
	MsgInvalidPayload = "Invalid payload"
	MsgOccupied       = "Space already occupied"
	MsgTooClose       = "Too close to other player's voxels"
	MsgNoSupport      = "Voxel can be placed at ground level or adjacent to your other voxels"
	MsgNextToFlag     = "Voxels cannot be placed next to a flag"
	MsgTooFarFromFlag = "You must have at least one voxel no farther than 5 spaces from flag"
	MsgUnknownType    = "Unknown request type"
	MsgStorageFailure = "Storage temporarily unavailable"
)

func MsgRateLimited(perMinute int) string {
	return fmt.Sprintf("Rate limit exceeded: max %d requests per minute", perMinute)
}
