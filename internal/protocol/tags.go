// Package protocol implements the typed message catalogue exchanged over
// framed connections (package wire) and the per-channel
// next_expected_message state machines that enforce the handshake order
// spec'd for master<->worker and worker<->peer channels.
package protocol

// Tag identifies a message's payload shape. The wire value is the first
// payload byte (see package wire).
type Tag byte

const (
	Join                    Tag = 0x00
	JoinAck                 Tag = 0x01
	ListeningForNeighbour   Tag = 0x02
	RightNeighbourDiscover  Tag = 0x03
	NeighboursSet           Tag = 0x04
	NeighbourRequest        Tag = 0x05
	NeighbourRequestAck     Tag = 0x06
	SetUniverseParameters   Tag = 0x07
	UniverseParametersSet   Tag = 0x08
	SetRobots               Tag = 0x09
	RobotsSet               Tag = 0x0A
	StartSimulation         Tag = 0x0B
	GhostStrip              Tag = 0x0C
	AddRobots               Tag = 0x0D
	FrameFinished           Tag = 0x0E
	FrameFinishedWithStats  Tag = 0x0F
	FinalPositions          Tag = 0x10
)

// IPAddressLength is the fixed, NUL-padded textual length of the address
// field carried by RIGHT_NEIGHBOUR_DISCOVER. 64 bytes comfortably holds
// the longest textual "host:port" form (including IPv6 + brackets).
const IPAddressLength = 64

func (t Tag) String() string {
	switch t {
	case Join:
		return "JOIN"
	case JoinAck:
		return "JOIN_ACK"
	case ListeningForNeighbour:
		return "LISTENING_FOR_NEIGHBOUR"
	case RightNeighbourDiscover:
		return "RIGHT_NEIGHBOUR_DISCOVER"
	case NeighboursSet:
		return "NEIGHBOURS_SET"
	case NeighbourRequest:
		return "NEIGHBOUR_REQUEST"
	case NeighbourRequestAck:
		return "NEIGHBOUR_REQUEST_ACK"
	case SetUniverseParameters:
		return "SET_UNIVERSE_PARAMETERS"
	case UniverseParametersSet:
		return "UNIVERSE_PARAMETERS_SET"
	case SetRobots:
		return "SET_ROBOTS"
	case RobotsSet:
		return "ROBOTS_SET"
	case StartSimulation:
		return "START_SIMULATION"
	case GhostStrip:
		return "GHOST_STRIP"
	case AddRobots:
		return "ADD_ROBOTS"
	case FrameFinished:
		return "FRAME_FINISHED"
	case FrameFinishedWithStats:
		return "FRAME_FINISHED_WITH_STATS"
	case FinalPositions:
		return "FINAL_POSITIONS"
	default:
		return "UNKNOWN"
	}
}
