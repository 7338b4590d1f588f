package protocol

import "turg.world/internal/sim/world"

// range args (client -> server)
type RangeArgs struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Range int `json:"range"`
}

// update args (client -> server). Owner and Name are accepted in the
// payload for wire compatibility but never trusted: the session loop
// overwrites Owner with the authenticated color and drops Name.
type UpdateArgs struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
	Owner string `json:"owner"`
	Name  string `json:"name,omitempty"`
}

// userColor event data
type UserColor struct {
	Color string `json:"color"`
}

// userLogin / userLogout event data
type UserPresence struct {
	Name string `json:"name"`
}

// flagCaptured event data
type FlagCaptured struct {
	User string `json:"user"`
	Flag string `json:"flag"`
}

// error event data
type ErrorPayload struct {
	Message  string        `json:"message"`
	Conflict []world.Voxel `json:"conflict,omitempty"`
}
